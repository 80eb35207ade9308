package blokfall

import (
	"fmt"
	"slices"
)

// Piece is the active falling piece.
type Piece struct {
	Type   PieceType
	Anchor Point
	Degree Degree
}

// Positions returns the absolute cells covered by the piece.
func (p Piece) Positions() []Point {
	shape := Shape(p.Type, p.Degree)
	pts := make([]Point, len(shape))
	for i, off := range shape {
		pts[i] = p.Anchor.Add(off)
	}
	return pts
}

// Ended reports whether shifting the piece by dir would leave the grid or run
// into a blocked cell. Cells the piece already covers never block it.
func (g *Grid) Ended(p Piece, dir Point) bool {
	pts := p.Positions()
	for _, pt := range pts {
		next := pt.Add(dir)
		if !g.InBounds(next) {
			return true
		}
		if !slices.Contains(pts, next) && !g.IsPassable(next) {
			return true
		}
	}
	return false
}

// DropDistance is how many rows the piece can fall before it lands.
func (g *Grid) DropDistance(p Piece) int {
	dist := 0
	for !g.Ended(p, Point{Row: dist + 1}) {
		dist++
	}
	return dist
}

// Move shifts the piece by dir and recomputes the shadow. The caller is
// responsible for checking that the move is legal.
func (g *Grid) Move(p Piece, dir Point) Piece {
	pts := p.Positions()
	for _, pt := range pts {
		g.Set(pt, Empty)
	}
	for _, pt := range pts {
		g.Set(pt.Add(dir), Occupied(p.Type))
	}

	p.Anchor = p.Anchor.Add(dir)
	g.UpdateShadow(p)
	return p
}

// Tune pushes the anchor of p back toward the grid until every cell of the
// piece is in bounds. Each out of bounds cell nudges the anchor one step, so a
// pass over a shape with two cells past the same edge moves it by two. Tune
// panics on a shape that does not fit the grid, callers check Spans first.
func (g *Grid) Tune(p Piece) (Point, []Point) {
	var (
		anchor = p.Anchor
		prev   Point
		pts    []Point
	)

	for range g.Rows + g.Cols + len(Shape(p.Type, p.Degree))*NumDegrees {
		prev = anchor
		pts = Piece{p.Type, anchor, p.Degree}.Positions()
		for _, pt := range pts {
			if pt.Row < 0 {
				anchor.Row++
			}
			if pt.Row >= g.Rows {
				anchor.Row--
			}
			if pt.Col < 0 {
				anchor.Col++
			}
			if pt.Col >= g.Cols {
				anchor.Col--
			}
		}
		if anchor == prev {
			return anchor, pts
		}
	}

	panic(fmt.Sprintf("blokfall: tuning %s at degree %d from %v does not converge on %dx%d grid",
		p.Type, p.Degree, p.Anchor, g.Rows, g.Cols))
}

// Spans reports whether the shape of t at degree d is no taller and no wider
// than the grid.
func (g *Grid) Spans(t PieceType, d Degree) bool {
	minRow, maxRow, minCol, maxCol := 0, 0, 0, 0
	for _, off := range Shape(t, d) {
		minRow, maxRow = min(minRow, off.Row), max(maxRow, off.Row)
		minCol, maxCol = min(minCol, off.Col), max(maxCol, off.Col)
	}
	return maxRow-minRow < g.Rows && maxCol-minCol < g.Cols
}

// Rotate turns the piece clockwise. A rotation whose shape is larger than the
// grid, or whose tuned cells would overlap a blocked cell, is rejected and
// reported with ok == false.
func (g *Grid) Rotate(p Piece) (_ Piece, ok bool) {
	next := Piece{Type: p.Type, Anchor: p.Anchor, Degree: p.Degree.Next()}
	if !g.Spans(next.Type, next.Degree) {
		return p, false
	}

	var (
		from        = p.Positions()
		anchor, pts = g.Tune(next)
	)

	for _, pt := range pts {
		if !slices.Contains(from, pt) && !g.IsPassable(pt) {
			return p, false
		}
	}

	for _, pt := range from {
		g.Set(pt, Empty)
	}
	for _, pt := range pts {
		g.Set(pt, Occupied(p.Type))
	}

	next.Anchor = anchor
	g.UpdateShadow(next)
	return next, true
}

// UpdateShadow redraws the landing projection of p.
func (g *Grid) UpdateShadow(p Piece) {
	g.ClearShadows()

	var (
		pts  = p.Positions()
		dist = g.DropDistance(p)
	)
	for _, pt := range pts {
		target := Point{pt.Row + dist, pt.Col}
		if !slices.Contains(pts, target) {
			g.Set(target, Shadow)
		}
	}
}

// Fits reports whether every cell of p is inside the grid and passable.
func (g *Grid) Fits(p Piece) bool {
	for _, pt := range p.Positions() {
		if !g.InBounds(pt) || !g.IsPassable(pt) {
			return false
		}
	}
	return true
}
