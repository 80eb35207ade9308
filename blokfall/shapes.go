package blokfall

import (
	"fmt"
	"strings"
)

type PieceType uint8

const (
	I PieceType = iota
	J
	L
	O
	S
	T
	Z
)

var PieceTypes = []PieceType{I, J, L, O, S, T, Z}

func (t PieceType) String() string {
	if int(t) < len(pieceNames) {
		return pieceNames[t]
	}
	return fmt.Sprintf("PieceType(%d)", uint8(t))
}

var pieceNames = [...]string{"I", "J", "L", "O", "S", "T", "Z"}

// Degree is one of the four clockwise rotation states of a piece.
type Degree uint8

const NumDegrees = 4

func (d Degree) Next() Degree {
	return (d + 1) % NumDegrees
}

var shapes [len(pieceNames)][NumDegrees][]Point

// Shape returns the cell offsets of t at degree d relative to the anchor. The
// returned slice is shared and must not be modified.
func Shape(t PieceType, d Degree) []Point {
	return shapes[t][d%NumDegrees]
}

// Each rotation is drawn with 'X' on the anchor block and 'O' on the others.
// Degree 0 keeps every block in rows [0,3] and columns [-1,1] so a piece can
// always spawn on the top row of the smallest grid.
var visualDefs = map[PieceType][NumDegrees]string{
	I: {`
|X
|O
|O
|O
`, `
|OXOO
`, `
|X
|O
|O
|O
`, `
|OXOO
`},
	J: {`
|OXO
|..O
`, `
|.O
|.X
|OO
`, `
|O..
|OXO
`, `
|OO
|X.
|O.
`},
	L: {`
|OXO
|O..
`, `
|OO
|.X
|.O
`, `
|..O
|OXO
`, `
|O.
|X.
|OO
`},
	O: {`
|XO
|OO
`, `
|XO
|OO
`, `
|XO
|OO
`, `
|XO
|OO
`},
	S: {`
|.XO
|OO.
`, `
|O.
|XO
|.O
`, `
|.XO
|OO.
`, `
|O.
|XO
|.O
`},
	T: {`
|OXO
|.O.
`, `
|.O
|OX
|.O
`, `
|.O.
|OXO
`, `
|O.
|XO
|O.
`},
	Z: {`
|OX.
|.OO
`, `
|.O
|XO
|O.
`, `
|OX.
|.OO
`, `
|.O
|XO
|O.
`},
}

func init() {
	for t, defs := range visualDefs {
		for d, v := range defs {
			p, err := parseVisual(v)
			if err != nil {
				panic(fmt.Sprintf("failed to parse visual for %s degree %d: %v", t, d, err))
			}
			shapes[t][d] = p
		}
	}
}

// parseVisual converts a visual definition into offsets. Only lines starting
// with '|' are read. The 'X' block becomes (0,0) and the others are relative to
// it, rows increasing downward.
func parseVisual(v string) ([]Point, error) {
	lines := make([]string, 0, 4)
	for ln := range strings.SplitSeq(strings.TrimSpace(v), "\n") {
		if !strings.HasPrefix(ln, "|") {
			continue
		}
		lines = append(lines, ln[1:])
	}

	origin, found := Point{}, false
	for i, row := range lines {
		if j := strings.IndexByte(row, 'X'); j >= 0 {
			origin, found = Point{i, j}, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no origin 'X' found")
	}

	pts := make([]Point, 0, 4)
	for i, row := range lines {
		for j, ch := range row {
			if ch == 'O' || ch == 'X' {
				pts = append(pts, Point{Row: i - origin.Row, Col: j - origin.Col})
			}
		}
	}
	return pts, nil
}
