package eikonal

import (
	"container/heap"
	"math"
)

var axisOffsets = [...]Cell{
	{Row: -1, Col: 0},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
	{Row: 0, Col: 1},
}

// UnitCost is a uniform slowness of one.
func UnitCost(Cell) float64 { return 1 }

type frontCell struct {
	cell  Cell
	value float64
}

// frontQueue is a min-heap on tentative value. Equal values pop in no
// particular order.
type frontQueue []frontCell

func (q frontQueue) Len() int { return len(q) }

func (q frontQueue) Less(i, j int) bool { return q[i].value < q[j].value }

func (q frontQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontQueue) Push(x any) {
	*q = append(*q, x.(frontCell))
}

func (q *frontQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Solve propagates the wavefront from every zero-valued cell and writes the
// resolved arrival values into field in place.
//
// scaleFactor is the grid spacing in the caller's distance units and cost
// returns the slowness of a cell. Cells unreachable from any source keep
// +Inf; blocked cells keep their marker.
//
// The queue holds stale duplicates whenever a cell improves more than once.
// They are discarded on pop once the cell is finalized; a finalized value is
// never revised.
func Solve(field *Grid, scaleFactor float64, cost func(Cell) float64) {
	solve(field, scaleFactor, cost, nil)
}

// solve runs the propagation, reporting each cell to finalized as it is
// fixed.
func solve(field *Grid, scaleFactor float64, cost func(Cell) float64, finalized func(Cell, float64)) {
	if field == nil || len(field.Values) == 0 {
		return
	}
	if !(scaleFactor > 0) {
		panic("eikonal: scale factor must be positive")
	}
	if cost == nil {
		cost = UnitCost
	}

	fixed := make([]bool, len(field.Values))
	front := &frontQueue{}

	for row := 0; row < field.Rows; row++ {
		for col := 0; col < field.Cols; col++ {
			c := Cell{Row: row, Col: col}
			if field.At(c) == 0 {
				*front = append(*front, frontCell{cell: c, value: 0})
			}
		}
	}
	heap.Init(front)

	for front.Len() > 0 {
		current := heap.Pop(front).(frontCell)
		idx := field.index(current.cell)
		if fixed[idx] {
			continue
		}
		fixed[idx] = true
		if finalized != nil {
			finalized(current.cell, field.Values[idx])
		}

		for _, delta := range axisOffsets {
			next := Cell{Row: current.cell.Row + delta.Row, Col: current.cell.Col + delta.Col}
			if !field.InBounds(next) {
				continue
			}
			nextIdx := field.index(next)
			if fixed[nextIdx] || blocked(field.Values[nextIdx]) {
				continue
			}

			candidate := field.update(next, scaleFactor*cost(next))
			if candidate < field.Values[nextIdx] {
				field.Values[nextIdx] = candidate
				heap.Push(front, frontCell{cell: next, value: candidate})
			}
		}
	}
}

// update solves the local upwind quadratic for c given slowness n.
func (g *Grid) update(c Cell, n float64) float64 {
	ux := math.Min(g.neighbor(c, -1, 0), g.neighbor(c, 1, 0))
	uy := math.Min(g.neighbor(c, 0, -1), g.neighbor(c, 0, 1))

	switch {
	case math.IsInf(ux, 1):
		return uy + n
	case math.IsInf(uy, 1):
		return ux + n
	}

	diff := ux - uy
	disc := 2*n*n - diff*diff
	if disc >= 0 {
		return (ux + uy + math.Sqrt(disc)) * 0.5
	}
	return math.Min(ux, uy) + n
}

// neighbor reads the cell offset from c, treating off-grid and blocked cells
// as unreachable.
func (g *Grid) neighbor(c Cell, dRow, dCol int) float64 {
	n := Cell{Row: c.Row + dRow, Col: c.Col + dCol}
	if !g.InBounds(n) {
		return math.Inf(1)
	}
	v := g.At(n)
	if blocked(v) {
		return math.Inf(1)
	}
	return v
}
