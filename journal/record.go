// Package journal keeps a history of finished and running games in sqlite.
// Game sessions write records into a ring buffer and a single Recorder drains
// it into the Store.
package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

type Record interface {
	// Kind tags the payload when encoding. It must stay stable even if the
	// type is renamed or moved.
	Kind() string

	Time() time.Time

	// Summary is a one line description for listings.
	Summary() string

	WithID(int64) Record
}

// Meta is embedded by every record.
type Meta struct {
	ID     int64 `json:"-"`
	At     time.Time
	Player string
}

func (m Meta) Time() time.Time { return m.At }

type GameStarted struct {
	Meta
	Rows, Cols int
}

type LinesCleared struct {
	Meta
	Lines int
	Total int
}

type GameOver struct {
	Meta
	Pieces int
	Lines  int
}

func (GameStarted) Kind() string  { return "game.started" }
func (LinesCleared) Kind() string { return "game.lines" }
func (GameOver) Kind() string     { return "game.over" }

func (r GameStarted) Summary() string {
	return fmt.Sprintf("started a %dx%d game", r.Rows, r.Cols)
}

func (r LinesCleared) Summary() string {
	return fmt.Sprintf("cleared %d, %d total", r.Lines, r.Total)
}

func (r GameOver) Summary() string {
	return fmt.Sprintf("game over after %d pieces and %d lines", r.Pieces, r.Lines)
}

func (r GameStarted) WithID(id int64) Record  { r.ID = id; return r }
func (r LinesCleared) WithID(id int64) Record { r.ID = id; return r }
func (r GameOver) WithID(id int64) Record     { r.ID = id; return r }

// ID reports the store id of a saved record, 0 if it was never saved.
func ID(r Record) int64 {
	return MetaOf(r).ID
}

func MetaOf(r Record) Meta {
	switch r := r.(type) {
	case GameStarted:
		return r.Meta
	case LinesCleared:
		return r.Meta
	case GameOver:
		return r.Meta
	}
	return Meta{At: r.Time()}
}

var decoders = make(map[string]func(data []byte) (Record, error))

func Register[T Record](t T) {
	decoders[t.Kind()] = func(data []byte) (Record, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func init() {
	Register(GameStarted{})
	Register(LinesCleared{})
	Register(GameOver{})
}

type envelope struct {
	Kind    string
	Payload json.RawMessage
}

type envelopeEncode struct {
	Kind    string
	Payload any
}

func Marshal(r Record) ([]byte, error) {
	return json.Marshal(envelopeEncode{
		Kind:    r.Kind(),
		Payload: r,
	})
}

// Unmarshal decodes a record written by Marshal. Its kind must have been
// registered.
func Unmarshal(data []byte) (Record, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}

	d := decoders[e.Kind]
	if d == nil {
		return nil, fmt.Errorf("unregistered journal record kind: %q", e.Kind)
	}
	return d(e.Payload)
}
