package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ghthor/blokwish/blokfall"
	"github.com/golang-cz/ringbuf"
)

// BufferSize is the ring size. Run fails once it falls more than half of it
// behind the writers.
const BufferSize = 1024

// Recorder persists records written by any number of game sessions. Records
// are buffered in a ring and saved by Run.
type Recorder struct {
	mu     sync.Mutex
	closed bool
	stream *ringbuf.RingBuffer[Record]
	sub    *ringbuf.Subscriber[Record]

	store *Store
	log   *log.Logger
	now   func() time.Time
}

// NewRecorder subscribes to the record stream immediately so nothing written
// before Run is started is lost. Cancelling ctx abandons records that have
// not been saved yet, Close lets Run save them first.
func NewRecorder(ctx context.Context, store *Store, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}

	r := &Recorder{
		stream: ringbuf.New[Record](BufferSize),
		store:  store,
		log:    logger,
		now:    time.Now,
	}
	r.sub = r.stream.Subscribe(ctx, &ringbuf.SubscribeOpts{Name: "journal"})
	return r
}

// Run saves records until the recorder is closed and every record written
// before Close is saved, or until the context given to NewRecorder is done.
func (r *Recorder) Run(ctx context.Context) error {
	for rec := range r.sub.Seq {
		saved, err := r.store.Save(ctx, rec)
		if err != nil {
			r.log.Warn("journal save failed", "error", err, "kind", rec.Kind())
			continue
		}
		r.log.Debug("journal", "id", ID(saved), "kind", saved.Kind(), "summary", saved.Summary())
	}

	err := r.sub.Err()
	switch {
	case err == nil,
		errors.Is(err, ringbuf.ErrRingBufferClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return nil
	}
	return fmt.Errorf("journal stream: %w", err)
}

// Write queues records to be saved. It is safe to call from many sessions.
// Records written after Close are dropped.
func (r *Recorder) Write(recs ...Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.log.Debug("journal closed, dropping records", "count", len(recs))
		return
	}
	for _, rec := range recs {
		r.stream.Write(rec)
	}
}

// Close ends the record stream. Run returns once everything written before
// Close has been saved.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.stream.Close()
}

// Attach journals the lifecycle events of g as player. The returned func
// detaches it.
func (r *Recorder) Attach(player string, g *blokfall.Game) (detach func()) {
	grid := g.Grid()
	rows, cols := grid.Rows, grid.Cols

	return g.SubscribeEvents(func(e blokfall.Event) {
		meta := Meta{At: r.now(), Player: player}
		if rec, ok := FromEvent(meta, rows, cols, e); ok {
			r.Write(rec)
		}
	})
}

// FromEvent converts a game event into the record it is journaled as. Only
// starts, landings that cleared lines and game overs are journaled.
func FromEvent(meta Meta, rows, cols int, e blokfall.Event) (Record, bool) {
	switch e.Kind {
	case blokfall.EventStarted:
		return GameStarted{Meta: meta, Rows: rows, Cols: cols}, true
	case blokfall.EventLanded:
		if e.Lines == 0 {
			return nil, false
		}
		return LinesCleared{Meta: meta, Lines: e.Lines, Total: e.Stats.Lines}, true
	case blokfall.EventOver:
		return GameOver{Meta: meta, Pieces: e.Stats.Pieces, Lines: e.Stats.Lines}, true
	}
	return nil, false
}
