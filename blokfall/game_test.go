package blokfall

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) Every(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) running() []*fakeTimer {
	var live []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	return live
}

// fire delivers one tick from every running timer.
func (c *fakeClock) fire() {
	for _, t := range c.running() {
		t.fn()
	}
}

type recorder struct {
	grids    []*Grid
	statuses []Status
	events   []Event
}

func (r *recorder) lastGrid() string {
	return r.grids[len(r.grids)-1].String()
}

func newTestGame(t *testing.T, rows, cols int, pieces ...PieceType) (*Game, *fakeClock, *recorder) {
	t.Helper()

	clock := &fakeClock{}
	g, err := New(
		WithSize(rows, cols),
		WithClock(clock),
		WithPieces(SequencePieces(pieces...)),
		WithInterval(100*time.Millisecond),
		WithLogger(log.New(io.Discard)),
	)
	require.NoError(t, err)

	rec := &recorder{}
	g.SubscribeGrid(func(g *Grid) { rec.grids = append(rec.grids, g) })
	g.SubscribeStatus(func(s Status) { rec.statuses = append(rec.statuses, s) })
	g.SubscribeEvents(func(e Event) { rec.events = append(rec.events, e) })
	return g, clock, rec
}

// fill occupies cells of the running game's grid from a layout, leaving the
// active piece alone, and redraws its shadow.
func fill(t *testing.T, g *Game, layout string) {
	t.Helper()
	src := mustParseGrid(t, layout)
	require.Equal(t, g.grid.Rows, src.Rows)
	require.Equal(t, g.grid.Cols, src.Cols)

	for i, row := range src.Cells {
		for j, c := range row {
			if _, ok := c.Piece(); ok {
				g.grid.Set(Point{i, j}, c)
			}
		}
	}
	if p, ok := g.Piece(); ok {
		g.grid.UpdateShadow(p)
	}
}

func TestNew(t *testing.T) {
	g, err := New()
	require.NoError(t, err)
	assert.Equal(t, Init, g.Status())
	assert.Equal(t, DefaultRows, g.Grid().Rows)
	assert.Equal(t, DefaultCols, g.Grid().Cols)
	assert.Equal(t, LoopTime, g.Interval())
	_, ok := g.Piece()
	assert.False(t, ok)

	_, err = New(WithSize(3, 10))
	require.ErrorIs(t, err, ErrGridTooSmall)
	_, err = New(WithSize(20, 2))
	require.ErrorIs(t, err, ErrGridTooSmall)
	_, err = New(WithInterval(0))
	require.Error(t, err)
}

func TestSubscribeReplays(t *testing.T) {
	g, _, rec := newTestGame(t, 6, 4, O)
	require.Equal(t, []Status{Init}, rec.statuses)
	require.Len(t, rec.grids, 1)
	assert.Equal(t, NewGrid(6, 4).String(), rec.lastGrid())

	var late []Status
	unsubscribe := g.SubscribeStatus(func(s Status) { late = append(late, s) })
	g.Start()
	unsubscribe()
	g.grid.Reset()
	g.Start()

	assert.Equal(t, []Status{Init, Playing}, late)
	assert.Equal(t, []Status{Init, Playing, Playing}, rec.statuses)
}

func TestUnsubscribeFromAnotherGoroutine(t *testing.T) {
	g, _, _ := newTestGame(t, DefaultRows, DefaultCols, T, O)

	var unsubscribe []func()
	for range 8 {
		unsubscribe = append(unsubscribe,
			g.SubscribeGrid(func(*Grid) {}),
			g.SubscribeEvents(func(Event) {}),
		)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	g.Start()
	for range 20 {
		g.Apply(HardDrop)
	}
	<-done

	// only the test recorder is left
	assert.Equal(t, 1, g.gridSubs.len())
	assert.Equal(t, 1, g.eventSubs.len())
}

func TestSpawn(t *testing.T) {
	t.Run("every piece fits the smallest grid", func(t *testing.T) {
		for _, pt := range PieceTypes {
			g, clock, rec := newTestGame(t, MinRows, MinCols, pt)
			g.Start()

			assert.Equal(t, Playing, g.Status(), pt.String())
			p, ok := g.Piece()
			require.True(t, ok)
			assert.Equal(t, Piece{pt, Point{0, 1}, 0}, p)
			assert.Len(t, clock.running(), 1)
			assert.Equal(t, []Status{Init, Playing}, rec.statuses)

			for _, pos := range p.Positions() {
				assert.Equal(t, Occupied(pt), g.grid.At(pos))
			}
		}
	})

	t.Run("spawn column", func(t *testing.T) {
		g, _, _ := newTestGame(t, DefaultRows, DefaultCols, T)
		g.Start()
		p, _ := g.Piece()
		assert.Equal(t, Point{0, 4}, p.Anchor)
	})

	t.Run("blocked spawn ends the game", func(t *testing.T) {
		g, clock, rec := newTestGame(t, MinRows, MinCols, O)
		g.Start()
		require.Len(t, clock.running(), 1)

		full := NewGrid(MinRows, MinCols)
		for i := range full.Rows {
			for j := range full.Cols {
				full.Set(Point{i, j}, Occupied(Z))
			}
		}
		g.grid.Replace(full)
		g.spawn()
		g.flush()

		assert.Equal(t, GameOver, g.Status())
		assert.Equal(t, []Status{Init, Playing, GameOver}, rec.statuses)
		assert.Empty(t, clock.running())
		_, ok := g.Piece()
		assert.False(t, ok)
		assert.Equal(t, EventOver, rec.events[len(rec.events)-1].Kind)

		before := g.grid.String()
		grids := len(rec.grids)
		clock.fire()
		g.Tick()
		g.Apply(MoveLeft)
		g.Apply(Rotate)
		g.Apply(HardDrop)
		assert.Equal(t, before, g.grid.String())
		assert.Len(t, rec.grids, grids)
	})

	t.Run("blocked spawn is drawn a row higher", func(t *testing.T) {
		g, _, _ := newTestGame(t, 6, 10, T, T)
		g.Start()
		g.grid.Reset()
		// only the stem of the next T is blocked
		g.grid.Set(Point{1, 4}, Occupied(I))
		g.spawn()

		assert.Equal(t, GameOver, g.Status())
		assert.Equal(t, Occupied(T), g.grid.At(Point{0, 4}))
		assert.Equal(t, Empty, g.grid.At(Point{0, 3}))
		assert.Equal(t, Empty, g.grid.At(Point{0, 5}))
	})

	t.Run("raised placement is skipped when taken", func(t *testing.T) {
		g, _, _ := newTestGame(t, 6, 10, T, T)
		g.Start()
		g.grid.Reset()
		g.grid.Set(Point{0, 4}, Occupied(I))
		before := g.grid.String()
		g.spawn()

		assert.Equal(t, GameOver, g.Status())
		assert.Equal(t, before, g.grid.String())
	})
}

func TestMoveCommands(t *testing.T) {
	t.Run("left at the wall is a no-op", func(t *testing.T) {
		g, _, rec := newTestGame(t, MinRows, MinCols, T)
		g.Start()
		before, _ := g.Piece()
		grid := g.grid.String()
		grids := len(rec.grids)

		g.Apply(MoveLeft)

		after, _ := g.Piece()
		assert.Equal(t, before, after)
		assert.Equal(t, grid, g.grid.String())
		assert.Len(t, rec.grids, grids, "no-op must not publish")
	})

	t.Run("moves and publishes", func(t *testing.T) {
		g, _, rec := newTestGame(t, 6, 4, O)
		g.Start()

		g.Apply(MoveRight)
		assert.Equal(t, strip(`
..OO
..OO
....
....
..++
..++
`), rec.lastGrid())

		g.Apply(MoveDown)
		p, _ := g.Piece()
		assert.Equal(t, Point{1, 2}, p.Anchor)
	})

	t.Run("manual down at the floor does not land", func(t *testing.T) {
		g, _, rec := newTestGame(t, MinRows, MinCols, O, T)
		g.Start()
		g.Apply(MoveDown)
		g.Apply(MoveDown)
		p, _ := g.Piece()
		require.Equal(t, Point{2, 1}, p.Anchor)

		g.Apply(MoveDown)
		after, _ := g.Piece()
		assert.Equal(t, p, after)
		assert.Equal(t, 1, g.Stats().Pieces)
		for _, e := range rec.events {
			assert.NotEqual(t, EventLanded, e.Kind)
		}
	})

	t.Run("rotation blocked by a neighbour", func(t *testing.T) {
		g, _, _ := newTestGame(t, 6, 5, T)
		g.Start()
		g.Apply(MoveDown)
		p, _ := g.Piece()
		require.Equal(t, Piece{T, Point{1, 2}, 0}, p)

		fill(t, g, `
..Z..
.....
.....
.....
.....
.....
`)
		before := g.grid.String()
		g.Apply(Rotate)

		after, _ := g.Piece()
		assert.Equal(t, p, after)
		assert.Equal(t, before, g.grid.String())
	})

	t.Run("rotation wider than the grid is a no-op", func(t *testing.T) {
		g, _, rec := newTestGame(t, MinRows, MinCols, I)
		g.Start()
		before, _ := g.Piece()
		grid := g.grid.String()
		grids := len(rec.grids)

		require.NotPanics(t, func() { g.Apply(Rotate) })

		after, _ := g.Piece()
		assert.Equal(t, before, after)
		assert.Equal(t, grid, g.grid.String())
		assert.Len(t, rec.grids, grids)
		assert.Equal(t, Playing, g.Status())
	})

	t.Run("rotation commits", func(t *testing.T) {
		g, _, _ := newTestGame(t, 6, 5, T)
		g.Start()
		g.Apply(MoveDown)
		g.Apply(Rotate)

		p, _ := g.Piece()
		assert.Equal(t, Piece{T, Point{1, 2}, 1}, p)
	})

	t.Run("ignored before start", func(t *testing.T) {
		g, clock, rec := newTestGame(t, 6, 4, O)
		for _, cmd := range []Command{MoveLeft, MoveRight, MoveDown, Rotate, HardDrop, CommandNone} {
			g.Apply(cmd)
		}
		g.Tick()
		assert.Equal(t, Init, g.Status())
		assert.Len(t, rec.grids, 1)
		assert.Empty(t, clock.timers)
	})
}

func TestTick(t *testing.T) {
	g, clock, rec := newTestGame(t, MinRows, MinCols, O, I)
	g.Start()

	clock.fire()
	p, _ := g.Piece()
	assert.Equal(t, Point{1, 1}, p.Anchor)
	clock.fire()
	p, _ = g.Piece()
	assert.Equal(t, Point{2, 1}, p.Anchor)

	// resting on the floor, the next tick lands it and spawns the I which no
	// longer fits
	clock.fire()
	assert.Equal(t, GameOver, g.Status())
	assert.Empty(t, clock.running())

	kinds := make([]EventKind, 0, len(rec.events))
	for _, e := range rec.events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventStarted, EventSpawned, EventLanded, EventOver}, kinds)
	assert.Equal(t, strip(`
...
...
.OO
.OO
`), rec.lastGrid())
}

func TestHardDrop(t *testing.T) {
	t.Run("empty grid", func(t *testing.T) {
		g, clock, rec := newTestGame(t, DefaultRows, DefaultCols, O, T)
		g.Start()
		first := clock.running()[0]

		g.Apply(HardDrop)

		assert.Equal(t, Playing, g.Status())
		grid := g.Grid()
		for _, pt := range (Piece{O, Point{18, 4}, 0}).Positions() {
			assert.Equal(t, Occupied(O), grid.At(pt))
		}

		p, ok := g.Piece()
		require.True(t, ok)
		assert.Equal(t, Piece{T, Point{0, 4}, 0}, p)

		assert.True(t, first.stopped, "hard drop restarts the gravity timer")
		require.Len(t, clock.running(), 1)
		assert.Equal(t, 100*time.Millisecond, clock.running()[0].d)

		landed := rec.events[len(rec.events)-2]
		assert.Equal(t, EventLanded, landed.Kind)
		assert.Equal(t, Piece{O, Point{18, 4}, 0}, landed.Piece)
		assert.Equal(t, EventSpawned, rec.events[len(rec.events)-1].Kind)
	})

	t.Run("completes a line", func(t *testing.T) {
		g, clock, rec := newTestGame(t, 6, 3, I, O)
		g.Start()
		fill(t, g, `
...
...
...
...
J..
J.J
`)
		g.Apply(HardDrop)

		assert.Equal(t, strip(`
.OO
.OO
.++
.I.
.I.
JI.
`), rec.lastGrid())
		assert.Equal(t, Stats{Pieces: 2, Lines: 1}, g.Stats())
		assert.Len(t, clock.running(), 1)

		var landed Event
		for _, e := range rec.events {
			if e.Kind == EventLanded {
				landed = e
			}
		}
		assert.Equal(t, 1, landed.Lines)
	})

	t.Run("game over keeps the timer stopped", func(t *testing.T) {
		g, clock, _ := newTestGame(t, MinRows, MinCols, I)
		g.Start()
		g.Apply(HardDrop)

		assert.Equal(t, GameOver, g.Status())
		assert.Empty(t, clock.running())
	})
}

func TestRestart(t *testing.T) {
	g, clock, rec := newTestGame(t, MinRows, MinCols, I)
	g.Start()
	g.Apply(HardDrop)
	require.Equal(t, GameOver, g.Status())

	g.Apply(StartGame)
	assert.Equal(t, Playing, g.Status())
	assert.Equal(t, Stats{Pieces: 1}, g.Stats())
	assert.Len(t, clock.running(), 1)
	assert.Equal(t, []Status{Init, Playing, GameOver, Playing}, rec.statuses)
	assert.Equal(t, strip(`
.I.
.I.
.I.
.I.
`), rec.lastGrid())

	g.Apply(StartGame)
	assert.Len(t, clock.running(), 1, "at most one gravity timer")
}
