package playfield

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ghthor/blokwish/blokfall"
)

// TickMsg is delivered by the tea.Tick armed by a Clock. Seq identifies the
// schedule that armed it, a stopped or replaced schedule never fires.
type TickMsg struct {
	time.Time
	Seq int64
}

// Clock implements blokfall.Clock on top of tea.Tick. The game schedules
// through Every while the model is updating, the model then collects the
// pending tick with Cmd and hands TickMsg values back to Update.
type Clock struct {
	seq   int64
	d     time.Duration
	fn    func()
	armed bool
}

var _ blokfall.Clock = &Clock{}

func (c *Clock) Every(d time.Duration, fn func()) blokfall.Timer {
	c.seq++
	c.d, c.fn = d, fn
	c.armed = true
	return clockTimer{c, c.seq}
}

// Cmd returns the tick the current schedule is waiting on, or nil if one is
// already in flight or nothing is scheduled.
func (c *Clock) Cmd() tea.Cmd {
	if !c.armed {
		return nil
	}
	c.armed = false
	return NewTick(c.d, c.seq)
}

// Update fires the scheduled func if msg belongs to the current schedule.
func (c *Clock) Update(msg TickMsg) {
	if msg.Seq != c.seq || c.fn == nil {
		// Tick was canceled
		return
	}
	c.armed = true
	c.fn()
}

func NewTick(d time.Duration, seq int64) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickMsg{t, seq} })
}

type clockTimer struct {
	c   *Clock
	seq int64
}

func (t clockTimer) Stop() {
	if t.c.seq != t.seq {
		return
	}
	t.c.seq++
	t.c.fn = nil
	t.c.armed = false
}
