package playfield

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ghthor/blokwish/blokfall"
)

type KeyMap struct {
	Left    key.Binding
	Right   key.Binding
	Down    key.Binding
	Rotate  key.Binding
	Drop    key.Binding
	Start   key.Binding
	CmdLine key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Rotate: key.NewBinding(
			key.WithKeys("up", "k", "x"),
			key.WithHelp("↑/k/x", "rotate"),
		),
		Drop: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "hard drop"),
		),
		Start: key.NewBinding(
			key.WithKeys("enter", "s"),
			key.WithHelp("enter/s", "start"),
		),
		CmdLine: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "command"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Rotate, k.Drop, k.Help}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Down},
		{k.Rotate, k.Drop, k.Start},
		{k.CmdLine, k.Help, k.Quit},
	}
}

// Decode maps a key press to a game command.
func (k KeyMap) Decode(msg tea.KeyMsg) blokfall.Command {
	switch {
	case key.Matches(msg, k.Left):
		return blokfall.MoveLeft
	case key.Matches(msg, k.Right):
		return blokfall.MoveRight
	case key.Matches(msg, k.Down):
		return blokfall.MoveDown
	case key.Matches(msg, k.Rotate):
		return blokfall.Rotate
	case key.Matches(msg, k.Drop):
		return blokfall.HardDrop
	case key.Matches(msg, k.Start):
		return blokfall.StartGame
	}
	return blokfall.CommandNone
}

var CommandRune = map[blokfall.Command]rune{
	blokfall.CommandNone: ' ',
	blokfall.MoveLeft:    '←',
	blokfall.MoveRight:   '→',
	blokfall.MoveDown:    '↓',
	blokfall.Rotate:      '↻',
	blokfall.HardDrop:    '⤓',
	blokfall.StartGame:   '▶',
}
