// Package blokfall implements the rules of a falling block puzzle: the grid,
// the active piece, collision and rotation legality, the landing shadow, line
// clearing and the Init/Playing/GameOver lifecycle.
//
// A Game has no internal locking. Commands, and the ticks delivered by its
// Clock, must all arrive on one event loop, one at a time. Only unsubscribing
// an observer is safe from another goroutine.
package blokfall

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultRows = 20
	DefaultCols = 10

	MinRows = 4
	MinCols = 3
)

var ErrGridTooSmall = errors.New("grid too small")

type Status int

const (
	Init Status = iota
	Playing
	GameOver
)

func (s Status) String() string {
	switch s {
	case Init:
		return "init"
	case Playing:
		return "playing"
	case GameOver:
		return "game over"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Command is a decoded player input.
type Command int

const (
	CommandNone Command = iota
	MoveLeft
	MoveRight
	MoveDown
	Rotate
	HardDrop
	StartGame
)

func (c Command) String() string {
	switch c {
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	case MoveDown:
		return "down"
	case Rotate:
		return "rotate"
	case HardDrop:
		return "drop"
	case StartGame:
		return "start"
	default:
		return "none"
	}
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventSpawned
	EventLanded
	EventOver
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventSpawned:
		return "spawned"
	case EventLanded:
		return "landed"
	case EventOver:
		return "over"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event describes a lifecycle step of the game. Piece is set for spawned and
// landed events, Lines only for landings.
type Event struct {
	Kind  EventKind
	Piece Piece
	Lines int
	Stats Stats
}

// Stats counts what happened since the last start.
type Stats struct {
	Pieces int
	Lines  int
}

type Option func(*Game) error

func WithSize(rows, cols int) Option {
	return func(g *Game) error {
		if rows < MinRows || cols < MinCols {
			return fmt.Errorf("%w: %dx%d, minimum is %dx%d", ErrGridTooSmall, rows, cols, MinRows, MinCols)
		}
		g.grid = NewGrid(rows, cols)
		return nil
	}
}

func WithInterval(d time.Duration) Option {
	return func(g *Game) error {
		if d <= 0 {
			return fmt.Errorf("tick interval must be positive: %s", d)
		}
		g.interval = d
		return nil
	}
}

func WithClock(c Clock) Option {
	return func(g *Game) error {
		g.clock = c
		return nil
	}
}

func WithPieces(src PieceSource) Option {
	return func(g *Game) error {
		g.pieces = src
		return nil
	}
}

func WithLogger(l *log.Logger) Option {
	return func(g *Game) error {
		g.log = l
		return nil
	}
}

type Game struct {
	grid   *Grid
	piece  Piece
	active bool
	status Status
	stats  Stats

	interval time.Duration
	clock    Clock
	timer    Timer
	pieces   PieceSource

	log *log.Logger

	// dirty is set by every grid mutation and cleared when observers are
	// notified at the end of a command.
	dirty bool

	gridSubs   observers[*Grid]
	statusSubs observers[Status]
	eventSubs  observers[Event]
}

func New(opts ...Option) (*Game, error) {
	g := &Game{
		grid:     NewGrid(DefaultRows, DefaultCols),
		interval: LoopTime,
		clock:    manualClock{},
		pieces:   RandomPieces(nil),
		log:      log.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Game) Status() Status { return g.status }

func (g *Game) Stats() Stats { return g.stats }

func (g *Game) Interval() time.Duration { return g.interval }

// Piece returns the active piece, ok is false before the first spawn and
// after the game is over.
func (g *Game) Piece() (p Piece, ok bool) {
	return g.piece, g.active
}

// Grid returns a copy of the current grid.
func (g *Game) Grid() *Grid {
	return g.grid.Clone()
}

// SubscribeGrid calls fn with a copy of the grid now and after every command
// that changes it. The returned func removes the subscription.
func (g *Game) SubscribeGrid(fn func(*Grid)) (unsubscribe func()) {
	fn(g.grid.Clone())
	return g.gridSubs.add(fn)
}

// SubscribeStatus calls fn with the current status now and on every
// transition.
func (g *Game) SubscribeStatus(fn func(Status)) (unsubscribe func()) {
	fn(g.status)
	return g.statusSubs.add(fn)
}

// SubscribeEvents calls fn for every lifecycle event from now on.
func (g *Game) SubscribeEvents(fn func(Event)) (unsubscribe func()) {
	return g.eventSubs.add(fn)
}

// Apply dispatches a decoded input. Everything except StartGame is ignored
// unless the game is playing.
func (g *Game) Apply(cmd Command) {
	switch cmd {
	case StartGame:
		g.Start()
	case MoveLeft:
		g.Move(Left)
	case MoveRight:
		g.Move(Right)
	case MoveDown:
		g.Move(Down)
	case Rotate:
		g.Rotate()
	case HardDrop:
		g.HardDrop()
	}
}

// Start resets the grid and begins a new game, replacing any running one.
func (g *Game) Start() {
	g.grid.Reset()
	g.active = false
	g.stats = Stats{}
	g.dirty = true

	g.setStatus(Playing)
	g.restartTimer()
	g.emit(Event{Kind: EventStarted})
	g.log.Debug("game started", "rows", g.grid.Rows, "cols", g.grid.Cols, "interval", g.interval)

	g.spawn()
	g.flush()
}

// Move shifts the active piece Left, Right or Down when nothing is in the way.
// A blocked manual move does not land the piece.
func (g *Game) Move(dir Point) {
	if g.status != Playing || !g.active {
		return
	}
	if dir != Left && dir != Right && dir != Down {
		return
	}
	if g.grid.Ended(g.piece, dir) {
		return
	}

	g.piece = g.grid.Move(g.piece, dir)
	g.dirty = true
	g.flush()
}

func (g *Game) Rotate() {
	if g.status != Playing || !g.active {
		return
	}

	p, ok := g.grid.Rotate(g.piece)
	if !ok {
		return
	}
	g.piece = p
	g.dirty = true
	g.flush()
}

// Tick applies one step of gravity, landing the piece when it cannot fall.
func (g *Game) Tick() {
	if g.status != Playing || !g.active {
		return
	}
	g.gravity()
	g.flush()
}

// HardDrop drops the piece to its shadow, lands it and restarts the gravity
// timer so the next piece gets a full interval.
func (g *Game) HardDrop() {
	if g.status != Playing || !g.active {
		return
	}

	if dist := g.grid.DropDistance(g.piece); dist > 0 {
		g.piece = g.grid.Move(g.piece, Point{Row: dist})
		g.dirty = true
	}
	g.gravity()

	if g.status == Playing {
		g.restartTimer()
	}
	g.flush()
}

func (g *Game) gravity() {
	if g.grid.Ended(g.piece, Down) {
		g.land()
		return
	}
	g.piece = g.grid.Move(g.piece, Down)
	g.dirty = true
}

func (g *Game) land() {
	landed := g.piece
	lines := g.grid.ClearLines()
	g.stats.Lines += lines
	g.dirty = true

	g.emit(Event{Kind: EventLanded, Piece: landed, Lines: lines})
	if lines > 0 {
		g.log.Debug("lines cleared", "lines", lines, "total", g.stats.Lines)
	}

	g.spawn()
}

func (g *Game) spawn() {
	p := Piece{
		Type:   g.pieces.Next(),
		Anchor: Point{Row: 0, Col: (g.grid.Cols - 1) / 2},
	}

	if g.grid.Fits(p) {
		g.piece = g.grid.Move(p, Point{})
		g.active = true
		g.stats.Pieces++
		g.dirty = true
		g.emit(Event{Kind: EventSpawned, Piece: p})
		return
	}

	g.drawBlocked(p)
	g.active = false
	g.stopTimer()
	g.setStatus(GameOver)
	g.emit(Event{Kind: EventOver, Piece: p})
	g.log.Debug("game over", "piece", p.Type, "pieces", g.stats.Pieces, "lines", g.stats.Lines)
}

// drawBlocked paints the piece that failed to spawn one row higher, clipped
// at the top, unless part of that placement is already taken.
func (g *Game) drawBlocked(p Piece) {
	p.Anchor.Row--
	pts := p.Positions()
	for _, pt := range pts {
		if pt.Row < 0 {
			continue
		}
		if !g.grid.InBounds(pt) || g.grid.At(pt) != Empty {
			return
		}
	}

	for _, pt := range pts {
		if pt.Row >= 0 {
			g.grid.Set(pt, Occupied(p.Type))
			g.dirty = true
		}
	}
}

func (g *Game) restartTimer() {
	g.stopTimer()
	g.timer = g.clock.Every(g.interval, g.Tick)
}

func (g *Game) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Game) setStatus(s Status) {
	g.status = s
	g.statusSubs.notify(s)
}

func (g *Game) emit(e Event) {
	e.Stats = g.stats
	g.eventSubs.notify(e)
}

func (g *Game) flush() {
	if !g.dirty {
		return
	}
	g.dirty = false
	if g.gridSubs.len() == 0 {
		return
	}
	g.gridSubs.notify(g.grid.Clone())
}

type observer[T any] struct {
	id int
	fn func(T)
}

type observers[T any] struct {
	mu   sync.Mutex
	next int
	fns  []observer[T]
}

func (o *observers[T]) add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	o.fns = append(o.fns, observer[T]{id, fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.fns = slices.DeleteFunc(o.fns, func(ob observer[T]) bool { return ob.id == id })
	}
}

func (o *observers[T]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.fns)
}

func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	fns := slices.Clone(o.fns)
	o.mu.Unlock()

	for _, ob := range fns {
		ob.fn(v)
	}
}
