package playfield

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ghthor/blokwish/blokfall"
)

func formatToggle(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func (m *Model) SetupCmdPalette(additionalCmds ...Cmd) {
	cmds := make([]Cmd, 0, 4+len(additionalCmds))

	cmds = append(cmds, Cmd{
		Use:   "help",
		Short: "Show this help.",
		Run: func(cmd *Cmd, args []string) tea.Cmd {
			m.notice = m.cmdPalette.Usage()
			return nil
		},
	})

	cmds = append(cmds, Cmd{
		Use:     "start",
		Short:   "Start a new game, abandoning the current one.",
		Aliases: []string{"restart"},
		Run: func(cmd *Cmd, args []string) tea.Cmd {
			m.Apply(blokfall.StartGame)
			return nil
		},
	})

	cmds = append(cmds, Cmd{
		Use:     "exit",
		Short:   "Exit the game, ctrl+c will also exit.",
		Aliases: []string{"quit", "q"},
		Run: func(cmd *Cmd, args []string) tea.Cmd {
			return tea.Quit
		},
	})

	cmds = append(cmds, Cmd{
		Use:    "debug",
		Short:  "Toggle debugging mode.",
		Hidden: true,
		Run: func(cmd *Cmd, args []string) tea.Cmd {
			m.debug = !m.debug
			m.cmdPalette.ShowHidden(m.debug)
			m.notice = "Debug is toggled " + formatToggle(m.debug)
			return nil
		},
	})

	cmds = append(cmds, additionalCmds...)

	m.cmdPalette = NewCmdPalette("/", cmds...)
}
