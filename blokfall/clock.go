package blokfall

import (
	"math/rand/v2"
	"time"
)

// LoopTime is the default gravity interval.
const LoopTime = 500 * time.Millisecond

// Clock schedules the gravity tick. Every must deliver fn on the same event
// loop that issues the game's commands.
type Clock interface {
	Every(d time.Duration, fn func()) Timer
}

// Timer is a cancelable periodic schedule returned by Clock.Every.
type Timer interface {
	Stop()
}

// manualClock never fires; the owner drives Tick directly.
type manualClock struct{}

func (manualClock) Every(time.Duration, func()) Timer { return manualTimer{} }

type manualTimer struct{}

func (manualTimer) Stop() {}

// PieceSource picks the kind of each spawned piece.
type PieceSource interface {
	Next() PieceType
}

type PieceSourceFunc func() PieceType

func (f PieceSourceFunc) Next() PieceType { return f() }

// RandomPieces picks uniformly from the catalog. A nil r uses the global
// generator.
func RandomPieces(r *rand.Rand) PieceSource {
	return PieceSourceFunc(func() PieceType {
		if r == nil {
			return PieceTypes[rand.IntN(len(PieceTypes))]
		}
		return PieceTypes[r.IntN(len(PieceTypes))]
	})
}

// SequencePieces repeats ts in order.
func SequencePieces(ts ...PieceType) PieceSource {
	i := 0
	return PieceSourceFunc(func() PieceType {
		t := ts[i%len(ts)]
		i++
		return t
	})
}
