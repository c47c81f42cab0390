package geometry

import "fmt"

// CellState is the state of a single grid cell.
type CellState int

const (
	CellEmpty CellState = iota
	CellMine
	CellFilled
	CellExploded
)

const (
	// MinBoardSize is the smallest allowed number of rows or columns
	MinBoardSize = 5
	// MaxBoardSize is the largest allowed number of rows or columns
	MaxBoardSize = 30
)

// Footprint is a binary matrix describing which relative cells a shape occupies.
type Footprint [][]int

// Equal reports whether two footprints are structurally identical.
func (f Footprint) Equal(other Footprint) bool {
	if len(f) != len(other) {
		return false
	}
	for r := range f {
		if len(f[r]) != len(other[r]) {
			return false
		}
		for c := range f[r] {
			if f[r][c] != other[r][c] {
				return false
			}
		}
	}
	return true
}

// Copy returns a deep copy of the footprint.
func (f Footprint) Copy() Footprint {
	if f == nil {
		return nil
	}
	out := make(Footprint, len(f))
	for r := range f {
		out[r] = append([]int(nil), f[r]...)
	}
	return out
}

// Area returns the number of occupied cells.
func (f Footprint) Area() int {
	n := 0
	for r := range f {
		for c := range f[r] {
			if f[r][c] == 1 {
				n++
			}
		}
	}
	return n
}

// Cell is an absolute grid position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellSet is a set of absolute cells.
type CellSet map[Cell]struct{}

// NewCellSet builds a set from a list of cells.
func NewCellSet(cells ...Cell) CellSet {
	set := make(CellSet, len(cells))
	set.Add(cells...)
	return set
}

func (s CellSet) Add(cells ...Cell) {
	for _, c := range cells {
		s[c] = struct{}{}
	}
}

func (s CellSet) Contains(c Cell) bool {
	_, ok := s[c]
	return ok
}

// Occupied returns the absolute cells covered by a footprint anchored at (row, col),
// in row-major order.
func Occupied(footprint Footprint, row, col int) []Cell {
	cells := make([]Cell, 0, footprint.Area())
	for r := range footprint {
		for c := range footprint[r] {
			if footprint[r][c] == 1 {
				cells = append(cells, Cell{Row: row + r, Col: col + c})
			}
		}
	}
	return cells
}

// InBounds reports whether a cell lies within [0, rows) x [0, cols).
func InBounds(c Cell, rows, cols int) bool {
	return c.Row >= 0 && c.Row < rows && c.Col >= 0 && c.Col < cols
}

// ClampBoardSize clamps a board dimension to [MinBoardSize, MaxBoardSize].
func ClampBoardSize(n int) int {
	if n < MinBoardSize {
		return MinBoardSize
	}
	if n > MaxBoardSize {
		return MaxBoardSize
	}
	return n
}

// ErrOutOfBounds is returned when a placement leaves the grid.
type ErrOutOfBounds struct {
	Cell Cell
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("cell (%d, %d) is out of bounds", e.Cell.Row, e.Cell.Col)
}

// ErrCollision is returned when a placement overlaps an occupied cell.
type ErrCollision struct {
	Cell Cell
}

func (e *ErrCollision) Error() string {
	return fmt.Sprintf("cell (%d, %d) is already occupied", e.Cell.Row, e.Cell.Col)
}

// CheckBounds returns ErrOutOfBounds for the first cell outside the grid.
func CheckBounds(cells []Cell, rows, cols int) error {
	for _, c := range cells {
		if !InBounds(c, rows, cols) {
			return &ErrOutOfBounds{Cell: c}
		}
	}
	return nil
}

// ValidateMinePlacement checks a mine placement against the bounds and the cells of the
// other mines. The caller excludes a moved mine's own cells from occupied.
func ValidateMinePlacement(cells []Cell, rows, cols int, occupied CellSet) error {
	if len(cells) == 0 {
		return fmt.Errorf("shape has no cells")
	}
	if err := CheckBounds(cells, rows, cols); err != nil {
		return err
	}
	for _, c := range cells {
		if occupied.Contains(c) {
			return &ErrCollision{Cell: c}
		}
	}
	return nil
}

// ValidateShapePlacement checks a defender placement against the bounds and the grid.
// Only FILLED and EXPLODED cells block; a hidden mine does not.
func ValidateShapePlacement(cells []Cell, grid Grid) error {
	if len(cells) == 0 {
		return fmt.Errorf("shape has no cells")
	}
	if err := CheckBounds(cells, grid.Rows(), grid.Cols()); err != nil {
		return err
	}
	for _, c := range cells {
		switch grid[c.Row][c.Col] {
		case CellFilled, CellExploded:
			return &ErrCollision{Cell: c}
		}
	}
	return nil
}
