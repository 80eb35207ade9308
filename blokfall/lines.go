package blokfall

// ClearLines removes every full row and compacts the grid downward, returning
// how many rows were removed.
//
// Only rows holding at least one block without being full are carried over.
// Rows made up entirely of empty or shadow cells are dropped along with the
// full ones, so any gap rows end up in the padding at the top.
func (g *Grid) ClearLines() int {
	kept := make([][]Cell, 0, g.Rows)
	cleared := 0

	for _, row := range g.Cells {
		blocks := 0
		for _, c := range row {
			if !c.Passable() {
				blocks++
			}
		}

		switch blocks {
		case g.Cols:
			cleared++
		case 0:
		default:
			kept = append(kept, row)
		}
	}

	cells := make([][]Cell, g.Rows)
	pad := g.Rows - len(kept)
	for i := range pad {
		cells[i] = make([]Cell, g.Cols)
	}
	for i, row := range kept {
		cells[pad+i] = row
	}
	g.Cells = cells

	return cleared
}
