package playfield

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ghthor/blokwish/blokfall"
)

const (
	DebugBlock   = "╺╸"
	DefaultBlock = "  "
	DefaultEmpty = "  "
	ShadowBlock  = "··"
)

var (
	// https://github.com/fidian/ansi?tab=readme-ov-file#--color-codes
	PieceStyles = map[blokfall.PieceType]lipgloss.Style{
		blokfall.I: blockStyle(51),
		blokfall.J: blockStyle(33),
		blokfall.L: blockStyle(214),
		blokfall.O: blockStyle(226),
		blokfall.S: blockStyle(46),
		blokfall.T: blockStyle(129),
		blokfall.Z: blockStyle(196),
	}

	StyleShadow = lipgloss.NewStyle().Faint(true)

	StyleBoard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder())

	StylePanel = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Padding(0, 1).
			Align(lipgloss.Center).
			Bold(true)

	StyleLabel  = lipgloss.NewStyle().Faint(true).PaddingRight(1)
	StyleValue  = lipgloss.NewStyle().PaddingLeft(1)
	StyleNotice = lipgloss.NewStyle().Faint(true)
)

func blockStyle(c int) lipgloss.Style {
	return lipgloss.NewStyle().Background(lipgloss.ANSIColor(c))
}

func (m *Model) View() string {
	b := &m.b
	b.Reset()

	m.ViewTo(b)
	return b.String()
}

func (m *Model) ViewTo(w io.Writer) {
	board := m.boardView()
	if panel := m.panelView(); panel != "" {
		m.overlay.Foreground = teaString(StylePanel.Render(panel))
		m.overlay.Background = teaString(board)
		board = m.overlay.View()
	}

	m.table.Data(sidePanel{m})
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, board, m.table.Render()))

	if m.notice != "" {
		fmt.Fprintln(w, StyleNotice.Render(m.notice))
	}

	if m.cmdLine.Focused() {
		fmt.Fprint(w, m.cmdLine.View())
	} else {
		fmt.Fprint(w, m.help.View(m.keys))
	}
}

func (m *Model) boardView() string {
	var b strings.Builder
	for i, row := range m.grid.Cells {
		for _, c := range row {
			b.WriteString(m.cellView(c))
		}
		if i+1 < len(m.grid.Cells) {
			b.WriteByte('\n')
		}
	}
	return StyleBoard.Render(b.String())
}

func (m *Model) cellView(c blokfall.Cell) string {
	if t, ok := c.Piece(); ok {
		filled := DefaultBlock
		if m.debug {
			filled = DebugBlock
		}
		return PieceStyles[t].Render(filled)
	}
	if c == blokfall.Shadow {
		return StyleShadow.Render(ShadowBlock)
	}
	return DefaultEmpty
}

func (m *Model) panelView() string {
	switch m.status {
	case blokfall.Init:
		return "BLOKWISH\n\nenter to start"
	case blokfall.GameOver:
		return fmt.Sprintf("GAME OVER\n\n%d %s\nenter to retry",
			m.stats.Lines, plural(m.stats.Lines, "line", "lines"))
	}
	return ""
}

func newSideTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderRow(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == colLabel {
				return StyleLabel
			}
			return StyleValue
		})
}

const (
	rowPlayer = iota
	rowStatus
	rowPieces
	rowLines
	rowInputs
	rowCount
)

const (
	colLabel = iota
	colValue
	colCount
)

type sidePanel struct {
	m *Model
}

var _ table.Data = sidePanel{}

func (p sidePanel) At(row, col int) string {
	if col == colLabel {
		switch row {
		case rowPlayer:
			return "player"
		case rowStatus:
			return "status"
		case rowPieces:
			return "pieces"
		case rowLines:
			return "lines"
		case rowInputs:
			return "inputs"
		}
		return ""
	}

	switch row {
	case rowPlayer:
		return p.m.Player
	case rowStatus:
		return p.m.status.String()
	case rowPieces:
		return strconv.Itoa(p.m.stats.Pieces)
	case rowLines:
		return strconv.Itoa(p.m.stats.Lines)
	case rowInputs:
		var b strings.Builder
		for c := range p.m.inputs.All() {
			b.WriteRune(CommandRune[c])
		}
		return b.String()
	}
	return ""
}

func (sidePanel) Rows() int    { return rowCount }
func (sidePanel) Columns() int { return colCount }

// teaString lets a rendered string take part in an overlay.
type teaString string

func (s teaString) Init() tea.Cmd                       { return nil }
func (s teaString) Update(tea.Msg) (tea.Model, tea.Cmd) { return s, nil }
func (s teaString) View() string                        { return string(s) }
