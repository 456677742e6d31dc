// Package eikonal solves the discretised eikonal equation |∇u| = cost over a
// dense 2D grid by wavefront propagation.
package eikonal

import "math"

// Cell addresses a grid entry by row and column.
type Cell struct {
	Row int
	Col int
}

// Grid stores one scalar per cell in row-major order.
//
// A cell is blocked when its value is NaN or -Inf, a source when it is exactly
// zero, and unknown when it is +Inf.
type Grid struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewGrid allocates a grid with every cell unknown.
func NewGrid(rows, cols int) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = math.Inf(1)
	}
	return &Grid{Rows: rows, Cols: cols, Values: values}
}

// InBounds reports whether the cell lies on the grid.
func (g *Grid) InBounds(c Cell) bool {
	return g != nil && c.Row >= 0 && c.Col >= 0 && c.Row < g.Rows && c.Col < g.Cols
}

func (g *Grid) index(c Cell) int {
	return c.Row*g.Cols + c.Col
}

// At returns the value stored in c.
func (g *Grid) At(c Cell) float64 {
	return g.Values[g.index(c)]
}

// Set overwrites the value stored in c.
func (g *Grid) Set(c Cell, value float64) {
	g.Values[g.index(c)] = value
}

// Block marks c as permanently excluded from propagation.
func (g *Grid) Block(c Cell) {
	g.Set(c, math.NaN())
}

// SetSource marks c as a zero-cost source.
func (g *Grid) SetSource(c Cell) {
	g.Set(c, 0)
}

// Blocked reports whether c is off the grid or holds the blocked marker.
func (g *Grid) Blocked(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return blocked(g.At(c))
}

func blocked(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, -1)
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	values := make([]float64, len(g.Values))
	copy(values, g.Values)
	return &Grid{Rows: g.Rows, Cols: g.Cols, Values: values}
}
