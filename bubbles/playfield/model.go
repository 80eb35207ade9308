// Package playfield is the terminal front end of a blokfall game: it decodes
// key presses into commands, drives gravity with tea.Tick and renders the
// board, side panel and command line with lipgloss.
package playfield

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ghthor/blokwish/blokfall"
	"github.com/ghthor/blokwish/unsafering"
	overlay "github.com/rmhubbert/bubbletea-overlay"
)

// InputHistory is how many recent commands the side panel shows.
const InputHistory = 10

type Model struct {
	Player string

	Width, Height int

	game  *blokfall.Game
	clock *Clock

	keys       KeyMap
	help       help.Model
	cmdLine    textinput.Model
	cmdPalette CmdPalette

	grid   *blokfall.Grid
	status blokfall.Status
	stats  blokfall.Stats
	inputs *unsafering.Buffer[blokfall.Command]

	notice string

	b       strings.Builder
	table   *table.Table
	overlay *overlay.Model

	debug bool

	closeOnce   sync.Once
	unsubscribe []func()
}

var _ tea.Model = &Model{}

// New creates a game for player driven by a tea.Tick clock. Any WithClock in
// opts is overridden.
func New(player string, opts ...blokfall.Option) (*Model, error) {
	clock := &Clock{}
	g, err := blokfall.New(slices.Concat(opts, []blokfall.Option{blokfall.WithClock(clock)})...)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	m := &Model{
		Player: player,

		game:  g,
		clock: clock,

		keys:   DefaultKeyMap(),
		help:   help.New(),
		inputs: unsafering.New[blokfall.Command](InputHistory),

		table:   newSideTable(),
		overlay: overlay.New(nil, nil, overlay.Center, overlay.Center, 0, 0),
	}

	m.cmdLine = textinput.New()
	m.cmdLine.Prompt = "> "
	m.cmdLine.Placeholder = "/help"
	m.cmdLine.ShowSuggestions = true
	m.SetupCmdPalette()

	m.unsubscribe = append(m.unsubscribe,
		g.SubscribeGrid(func(grid *blokfall.Grid) { m.grid = grid }),
		g.SubscribeStatus(func(s blokfall.Status) { m.status = s }),
		g.SubscribeEvents(m.onEvent),
	)
	return m, nil
}

// Game is the game this model is playing. It must only be used from the
// program's event loop.
func (m *Model) Game() *blokfall.Game {
	return m.game
}

func (m *Model) Status() blokfall.Status {
	return m.status
}

// Close detaches the model from its game. It may be called from any
// goroutine, and more than once.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		for _, fn := range m.unsubscribe {
			fn()
		}
	})
}

func (m *Model) Init() tea.Cmd {
	return m.clock.Cmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.UpdatePlayfield(msg)
}

func (m *Model) UpdatePlayfield(msg tea.Msg) (*Model, tea.Cmd) {
	cmds := make([]tea.Cmd, 0, 2)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case TickMsg:
		m.clock.Update(msg)

	case blokfall.Command:
		m.Apply(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.cmdLine.Focused() {
			cmds = append(cmds, m.updateCmdLine(msg))
		} else {
			cmds = append(cmds, m.updateKeys(msg))
		}
	}

	cmds = append(cmds, m.clock.Cmd())
	return m, tea.Batch(cmds...)
}

// Apply records cmd in the input history and hands it to the game.
func (m *Model) Apply(cmd blokfall.Command) {
	if cmd == blokfall.CommandNone {
		return
	}
	m.inputs.Push(cmd)
	if cmd == blokfall.StartGame {
		m.notice = ""
	}
	m.game.Apply(cmd)
}

func (m *Model) updateKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil

	case key.Matches(msg, m.keys.CmdLine):
		m.cmdLine.SetValue(m.cmdPalette.Leader())
		m.cmdLine.CursorEnd()
		m.cmdLine.SetSuggestions(m.cmdPalette.Suggestions())
		return m.cmdLine.Focus()
	}

	cmd := m.keys.Decode(msg)
	if cmd == blokfall.StartGame && m.status == blokfall.Playing {
		// restarting a running game takes /start
		return nil
	}
	m.Apply(cmd)
	return nil
}

func (m *Model) updateCmdLine(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		cmd := m.Execute(m.cmdLine.Value())
		m.closeCmdLine()
		return cmd

	case tea.KeyEsc:
		m.closeCmdLine()
		return nil
	}

	var cmd tea.Cmd
	m.cmdLine, cmd = m.cmdLine.Update(msg)
	return cmd
}

func (m *Model) closeCmdLine() {
	m.cmdLine.Reset()
	m.cmdLine.SetSuggestions(nil)
	m.cmdLine.Blur()
}

// Execute runs a command line such as "/start".
func (m *Model) Execute(line string) tea.Cmd {
	cmd, args, ok := m.cmdPalette.Parse(line)
	if !ok {
		return nil
	}
	if cmd == nil {
		m.notice = fmt.Sprintf("unknown command: %s%s, try %shelp",
			m.cmdPalette.Leader(), args[0], m.cmdPalette.Leader())
		return nil
	}
	return cmd.Run(cmd, args)
}

func (m *Model) onEvent(e blokfall.Event) {
	m.stats = e.Stats

	switch e.Kind {
	case blokfall.EventLanded:
		if e.Lines > 0 {
			m.notice = fmt.Sprintf("%d %s cleared", e.Lines, plural(e.Lines, "line", "lines"))
		}
	case blokfall.EventOver:
		m.notice = ""
	}
}

func (m *Model) SetSize(w, h int) {
	m.Width = w
	m.Height = h
	m.help.Width = w
	m.cmdLine.Width = max(0, w-len(m.cmdLine.Prompt)-1)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
