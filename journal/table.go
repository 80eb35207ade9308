package journal

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleFaint  = styleCell.Faint(true)
)

// Table renders recs as a table, one row per record.
func Table(recs []Record) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("id", "time", "player", "event").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case col < 2:
				return styleFaint
			}
			return styleCell
		})

	for _, r := range recs {
		t.Row(
			strconv.FormatInt(ID(r), 10),
			r.Time().Local().Format(time.DateTime),
			MetaOf(r).Player,
			r.Summary(),
		)
	}
	return t.Render()
}
