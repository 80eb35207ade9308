package blokfall

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomGrid(r *rand.Rand, rows, cols int) *Grid {
	g := NewGrid(rows, cols)
	for i := range rows {
		for j := range cols {
			switch r.IntN(5) {
			case 0:
				g.Cells[i][j] = Occupied(PieceTypes[r.IntN(len(PieceTypes))])
			case 1:
				g.Cells[i][j] = Shadow
			}
		}
	}
	return g
}

// endedBruteForce lifts the piece off the grid and checks each shifted cell
// against what is left.
func endedBruteForce(g *Grid, p Piece, dir Point) bool {
	lifted := g.Clone()
	for _, pt := range p.Positions() {
		if lifted.InBounds(pt) {
			lifted.Set(pt, Empty)
		}
	}
	for _, pt := range p.Positions() {
		next := pt.Add(dir)
		if next.Row < 0 || next.Row >= g.Rows || next.Col < 0 || next.Col >= g.Cols {
			return true
		}
		if lifted.Cells[next.Row][next.Col] != Empty && lifted.Cells[next.Row][next.Col] != Shadow {
			return true
		}
	}
	return false
}

func TestEnded(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 20 {
		g := randomGrid(r, 8, 6)
		for _, pt := range PieceTypes {
			for d := range Degree(NumDegrees) {
				for row := range g.Rows {
					for col := range g.Cols {
						p := Piece{pt, Point{row, col}, d}
						if !allInBounds(g, p) {
							continue
						}
						for _, dir := range []Point{Left, Right, Down} {
							require.Equal(t, endedBruteForce(g, p, dir), g.Ended(p, dir),
								"%s degree %d at %v moving %v\n%s", pt, d, p.Anchor, dir, g)
						}
					}
				}
			}
		}
	}
}

func allInBounds(g *Grid, p Piece) bool {
	for _, pt := range p.Positions() {
		if !g.InBounds(pt) {
			return false
		}
	}
	return true
}

func TestDropDistance(t *testing.T) {
	t.Run("bounded by the floor", func(t *testing.T) {
		g := NewGrid(DefaultRows, DefaultCols)
		for _, pt := range PieceTypes {
			for d := range Degree(NumDegrees) {
				maxRow := 0
				for _, off := range Shape(pt, d) {
					maxRow = max(maxRow, off.Row)
				}

				for row := range g.Rows {
					p := Piece{pt, Point{row, 4}, d}
					if !allInBounds(g, p) {
						continue
					}
					dist := g.DropDistance(p)
					require.GreaterOrEqual(t, dist, 0)
					require.LessOrEqual(t, row+dist, g.Rows-maxRow-1)
					// nothing in the way on an empty grid
					require.Equal(t, g.Rows-maxRow-1, row+dist, "%s degree %d row %d", pt, d, row)
				}
			}
		}
	})

	t.Run("stops on blocks", func(t *testing.T) {
		g := mustParseGrid(t, `
.T.
...
...
..Z
...
`)
		p := Piece{T, Point{0, 1}, 0}
		// the right arm comes to rest on the Z
		assert.Equal(t, 2, g.DropDistance(p))

		g.Set(Point{1, 0}, Occupied(I))
		assert.Equal(t, 0, g.DropDistance(p))
	})
}

func TestMove(t *testing.T) {
	g := NewGrid(6, 4)
	p := g.Move(Piece{O, Point{0, 1}, 0}, Point{})

	assert.Equal(t, strip(`
.OO.
.OO.
....
....
.++.
.++.
`), g.String())

	p = g.Move(p, Right)
	assert.Equal(t, Point{0, 2}, p.Anchor)
	assert.Equal(t, strip(`
..OO
..OO
....
....
..++
..++
`), g.String())

	p = g.Move(p, Point{Row: g.DropDistance(p)})
	assert.Equal(t, Point{4, 2}, p.Anchor)
	assert.Equal(t, strip(`
....
....
....
....
..OO
..OO
`), g.String())
}

func TestUpdateShadowIdempotent(t *testing.T) {
	g := mustParseGrid(t, `
LLL.
L...
....
....
....
Z...
ZZ..
.Z..
`)
	p := Piece{L, Point{0, 1}, 0}
	g.UpdateShadow(p)
	once := g.String()
	g.UpdateShadow(p)
	assert.Equal(t, once, g.String())
	assert.Equal(t, strip(`
LLL.
L...
....
+++.
+...
Z...
ZZ..
.Z..
`), once)
}

func TestTune(t *testing.T) {
	g := NewGrid(DefaultRows, DefaultCols)

	t.Run("in bounds is untouched", func(t *testing.T) {
		p := Piece{T, Point{5, 5}, 1}
		anchor, pts := g.Tune(p)
		assert.Equal(t, p.Anchor, anchor)
		assert.Equal(t, p.Positions(), pts)
	})

	t.Run("left wall", func(t *testing.T) {
		anchor, pts := g.Tune(Piece{I, Point{5, 0}, 1})
		assert.Equal(t, Point{5, 1}, anchor)
		assert.Equal(t, Piece{I, anchor, 1}.Positions(), pts)
	})

	t.Run("right wall", func(t *testing.T) {
		anchor, _ := g.Tune(Piece{I, Point{5, 9}, 1})
		assert.Equal(t, Point{5, 7}, anchor)
	})

	t.Run("floor", func(t *testing.T) {
		anchor, _ := g.Tune(Piece{I, Point{19, 4}, 0})
		assert.Equal(t, Point{16, 4}, anchor)
	})

	t.Run("corrections add up per cell", func(t *testing.T) {
		// J at degree 3 has two blocks on the row above the anchor
		anchor, _ := g.Tune(Piece{J, Point{0, 5}, 3})
		assert.Equal(t, Point{2, 5}, anchor)

		// J at degree 2 has two blocks left of the anchor column
		anchor, _ = g.Tune(Piece{J, Point{5, 0}, 2})
		assert.Equal(t, Point{5, 2}, anchor)
	})

	t.Run("shapes that do not span panic", func(t *testing.T) {
		narrow := NewGrid(MinRows, MinCols)
		require.False(t, narrow.Spans(I, 1))
		assert.Panics(t, func() { narrow.Tune(Piece{I, Point{1, 1}, 1}) })
	})
}

func TestSpans(t *testing.T) {
	g := NewGrid(MinRows, MinCols)
	for _, pt := range PieceTypes {
		assert.True(t, g.Spans(pt, 0), "%s spawns on the smallest grid", pt)
	}
	assert.False(t, g.Spans(I, 1))
	assert.False(t, g.Spans(I, 3))
	assert.True(t, NewGrid(MinRows, 4).Spans(I, 1))
}

func TestRotate(t *testing.T) {
	t.Run("commits", func(t *testing.T) {
		g := NewGrid(5, 5)
		p := g.Move(Piece{T, Point{1, 2}, 0}, Point{})

		p, ok := g.Rotate(p)
		require.True(t, ok)
		assert.Equal(t, Piece{T, Point{1, 2}, 1}, p)
		assert.Equal(t, strip(`
..T..
.TT..
..T..
.++..
..+..
`), g.String())
	})

	t.Run("tunes off the wall", func(t *testing.T) {
		g := NewGrid(6, 5)
		p := g.Move(Piece{I, Point{0, 0}, 0}, Point{})

		p, ok := g.Rotate(p)
		require.True(t, ok)
		assert.Equal(t, Piece{I, Point{0, 1}, 1}, p)
		for _, pt := range p.Positions() {
			assert.Equal(t, Occupied(I), g.At(pt))
		}
	})

	t.Run("rejected when wider than the grid", func(t *testing.T) {
		g := NewGrid(MinRows, MinCols)
		p := g.Move(Piece{I, Point{0, 1}, 0}, Point{})
		before := g.String()

		got, ok := g.Rotate(p)
		require.False(t, ok)
		assert.Equal(t, p, got)
		assert.Equal(t, before, g.String())
	})

	t.Run("never panics from a placed piece", func(t *testing.T) {
		for _, size := range []Point{{MinRows, MinCols}, {MinRows, 4}, {5, 3}, {DefaultRows, DefaultCols}} {
			for _, pt := range PieceTypes {
				for d := range Degree(NumDegrees) {
					for row := range size.Row {
						for col := range size.Col {
							g := NewGrid(size.Row, size.Col)
							p := Piece{pt, Point{row, col}, d}
							if !allInBounds(g, p) {
								continue
							}
							p = g.Move(p, Point{})

							var (
								got Piece
								ok  bool
							)
							require.NotPanics(t, func() { got, ok = g.Rotate(p) },
								"%s degree %d at %v on %dx%d", pt, d, p.Anchor, g.Rows, g.Cols)
							if ok {
								require.True(t, allInBounds(g, got))
							}
						}
					}
				}
			}
		}
	})

	t.Run("rejected when blocked", func(t *testing.T) {
		g := NewGrid(5, 5)
		p := g.Move(Piece{T, Point{1, 2}, 0}, Point{})
		g.Set(Point{0, 2}, Occupied(O))
		before := g.String()

		got, ok := g.Rotate(p)
		require.False(t, ok)
		assert.Equal(t, p, got)
		assert.Equal(t, before, g.String())
	})
}

func TestFits(t *testing.T) {
	g := mustParseGrid(t, `
....
.+..
..S.
`)
	assert.True(t, g.Fits(Piece{T, Point{0, 1}, 0}))
	assert.False(t, g.Fits(Piece{T, Point{1, 2}, 0}))
	assert.False(t, g.Fits(Piece{T, Point{0, 0}, 0}))
	assert.False(t, g.Fits(Piece{I, Point{0, 0}, 0}))
}

func strip(s string) string {
	return strings.TrimSpace(s)
}
