package blokfall

import (
	"fmt"
	"strings"
)

// Cell is the content of one grid square. The zero value is Empty.
type Cell uint8

const (
	Empty Cell = iota
	Shadow

	occupiedBase
)

// Occupied returns the cell value for a square filled by a piece of kind t.
func Occupied(t PieceType) Cell {
	return occupiedBase + Cell(t)
}

// Passable reports whether a piece may move into the cell.
func (c Cell) Passable() bool {
	return c == Empty || c == Shadow
}

// Piece returns the kind occupying the cell, if any.
func (c Cell) Piece() (PieceType, bool) {
	if c < occupiedBase {
		return 0, false
	}
	return PieceType(c - occupiedBase), true
}

func (c Cell) String() string {
	switch c {
	case Empty:
		return "."
	case Shadow:
		return "+"
	}
	t, _ := c.Piece()
	return t.String()
}

type Point struct {
	Row, Col int
}

func (p Point) Add(o Point) Point {
	return Point{p.Row + o.Row, p.Col + o.Col}
}

var (
	Left  = Point{0, -1}
	Right = Point{0, 1}
	Down  = Point{1, 0}
)

// Grid is a fixed size matrix of cells, row 0 at the top.
type Grid struct {
	Rows, Cols int

	Cells [][]Cell
}

func NewGrid(rows, cols int) *Grid {
	cells := make([][]Cell, rows)
	for i := range cells {
		cells[i] = make([]Cell, cols)
	}
	return &Grid{Rows: rows, Cols: cols, Cells: cells}
}

func (g *Grid) InBounds(p Point) bool {
	return p.Row >= 0 && p.Row < g.Rows && p.Col >= 0 && p.Col < g.Cols
}

func (g *Grid) At(p Point) Cell {
	return g.Cells[p.Row][p.Col]
}

// IsPassable panics when p is outside the grid.
func (g *Grid) IsPassable(p Point) bool {
	if !g.InBounds(p) {
		panic(fmt.Sprintf("blokfall: cell %v outside %dx%d grid", p, g.Rows, g.Cols))
	}
	return g.Cells[p.Row][p.Col].Passable()
}

func (g *Grid) Set(p Point, c Cell) {
	g.Cells[p.Row][p.Col] = c
}

// Replace copies every cell of o into g. Both grids must have the same
// dimensions.
func (g *Grid) Replace(o *Grid) {
	if o.Rows != g.Rows || o.Cols != g.Cols {
		panic(fmt.Sprintf("blokfall: replace %dx%d grid with %dx%d", g.Rows, g.Cols, o.Rows, o.Cols))
	}
	for i := range g.Cells {
		copy(g.Cells[i], o.Cells[i])
	}
}

func (g *Grid) ClearShadows() {
	for _, row := range g.Cells {
		for j, c := range row {
			if c == Shadow {
				row[j] = Empty
			}
		}
	}
}

func (g *Grid) Reset() {
	for _, row := range g.Cells {
		clear(row)
	}
}

func (g *Grid) Clone() *Grid {
	c := NewGrid(g.Rows, g.Cols)
	c.Replace(g)
	return c
}

func (g *Grid) String() string {
	var b strings.Builder
	for i, row := range g.Cells {
		for _, c := range row {
			b.WriteString(c.String())
		}
		if i+1 != g.Rows {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ParseGrid builds a grid from the String format: '.' empty, '+' shadow and a
// piece letter for occupied cells. Rows must all have the same width.
func ParseGrid(s string) (*Grid, error) {
	lines := make([]string, 0, 20)
	for ln := range strings.SplitSeq(strings.TrimSpace(s), "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty grid")
	}

	g := NewGrid(len(lines), len(lines[0]))
	for i, ln := range lines {
		if len(ln) != g.Cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(ln), g.Cols)
		}
		for j, ch := range ln {
			c, err := parseCell(ch)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
			g.Cells[i][j] = c
		}
	}
	return g, nil
}

func parseCell(ch rune) (Cell, error) {
	switch ch {
	case '.':
		return Empty, nil
	case '+':
		return Shadow, nil
	}
	for _, t := range PieceTypes {
		if t.String() == string(ch) {
			return Occupied(t), nil
		}
	}
	return Empty, fmt.Errorf("unknown cell %q", ch)
}
