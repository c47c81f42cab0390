package geometry

// Grid is a rows x cols matrix of cell states.
type Grid [][]CellState

// NewGrid creates an all-EMPTY grid.
func NewGrid(rows, cols int) Grid {
	grid := make(Grid, rows)
	for r := range grid {
		grid[r] = make([]CellState, cols)
	}
	return grid
}

func (g Grid) Rows() int {
	return len(g)
}

func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Copy returns a deep copy of the grid.
func (g Grid) Copy() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for r := range g {
		out[r] = append([]CellState(nil), g[r]...)
	}
	return out
}

// Set marks the in-bounds cells with state, ignoring any that fall outside.
func (g Grid) Set(cells []Cell, state CellState) {
	rows, cols := g.Rows(), g.Cols()
	for _, c := range cells {
		if InBounds(c, rows, cols) {
			g[c.Row][c.Col] = state
		}
	}
}

// Count returns the number of cells in the given state.
func (g Grid) Count(state CellState) int {
	n := 0
	for r := range g {
		for c := range g[r] {
			if g[r][c] == state {
				n++
			}
		}
	}
	return n
}

// Total returns the number of cells in the grid.
func (g Grid) Total() int {
	return g.Rows() * g.Cols()
}
