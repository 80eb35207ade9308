package playfield

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
)

type Cmd struct {
	// Use is a short use description. The first word is the command name.
	Use string

	Aliases []string

	// Short is displayed by /help
	Short string

	Hidden bool

	Run func(cmd *Cmd, args []string) tea.Cmd
}

func (c Cmd) Name() string {
	name, _, _ := strings.Cut(c.Use, " ")
	return name
}

type CmdPalette struct {
	leader string

	cmds    map[string]Cmd
	aliases map[string]string

	showHidden bool

	suggestions []string
}

func NewCmdPalette(leader string, cmds ...Cmd) CmdPalette {
	p := CmdPalette{
		leader:  leader,
		cmds:    make(map[string]Cmd, len(cmds)),
		aliases: make(map[string]string),
	}

	for _, cmd := range cmds {
		p.cmds[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases {
			p.aliases[alias] = cmd.Name()
		}
	}
	p.updateSuggestions()
	return p
}

func (p *CmdPalette) updateSuggestions() {
	p.suggestions = p.suggestions[:0]
	for _, name := range slices.Sorted(maps.Keys(p.cmds)) {
		if p.cmds[name].Hidden && !p.showHidden {
			continue
		}
		p.suggestions = append(p.suggestions, p.leader+name)
	}
}

func (p *CmdPalette) ShowHidden(b bool) {
	p.showHidden = b
	p.updateSuggestions()
}

func (p CmdPalette) Leader() string { return p.leader }

func (p CmdPalette) Find(name string) *Cmd {
	if c, ok := p.cmds[name]; ok {
		return &c
	}
	if c, ok := p.cmds[p.aliases[name]]; ok {
		return &c
	}
	return nil
}

// Parse splits a command line into the matching command and its arguments,
// args[0] being the name as typed. ok is false when line is not a command.
func (p CmdPalette) Parse(line string) (cmd *Cmd, args []string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), p.leader)
	if !found {
		return nil, nil, false
	}
	args = strings.Fields(rest)
	if len(args) == 0 {
		return nil, nil, false
	}
	return p.Find(args[0]), args, true
}

func (p CmdPalette) Usage() string {
	var b strings.Builder

	fmt.Fprintln(&b, "-> Available commands:")
	p.writeCmds(&b, false)

	if p.showHidden {
		fmt.Fprintln(&b, "\n-> Hidden commands:")
		p.writeCmds(&b, true)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (p CmdPalette) writeCmds(b *strings.Builder, hidden bool) {
	t := tabwriter.NewWriter(b, 1, 1, 2, ' ', 0)
	for _, name := range slices.Sorted(maps.Keys(p.cmds)) {
		cmd := p.cmds[name]
		if cmd.Hidden != hidden {
			continue
		}

		fmt.Fprintf(t, "%s%s\t- %s", p.leader, cmd.Use, cmd.Short)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(t, " (aliases: %s)", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Fprintln(t, "\t")
	}
	t.Flush()
}

func (p CmdPalette) Suggestions() []string {
	return p.suggestions
}
