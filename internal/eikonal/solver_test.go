package eikonal

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func TestSolveAxisDistances(t *testing.T) {
	const scale = 0.25
	field := NewGrid(21, 21)
	source := Cell{Row: 10, Col: 10}
	field.SetSource(source)

	Solve(field, scale, UnitCost)

	for k := 1; k <= 10; k++ {
		for _, c := range []Cell{
			{Row: source.Row, Col: source.Col + k},
			{Row: source.Row, Col: source.Col - k},
			{Row: source.Row + k, Col: source.Col},
			{Row: source.Row - k, Col: source.Col},
		} {
			want := float64(k) * scale
			if got := field.At(c); math.Abs(got-want) > tolerance {
				t.Fatalf("cell %+v: expected %g, got %g", c, want, got)
			}
		}
	}
}

func TestSolveDiagonalWithinDiscretisation(t *testing.T) {
	field := NewGrid(31, 31)
	field.SetSource(Cell{Row: 15, Col: 15})

	Solve(field, 1, UnitCost)

	got := field.At(Cell{Row: 25, Col: 25})
	exact := 10 * math.Sqrt2
	// first order scheme overestimates off-axis distances
	if got < exact-tolerance || got > exact*1.1 {
		t.Fatalf("diagonal distance out of range: got %g exact %g", got, exact)
	}
}

func TestSolveFinalizedValuesNeverChange(t *testing.T) {
	field := NewGrid(12, 9)
	field.SetSource(Cell{Row: 2, Col: 3})
	field.SetSource(Cell{Row: 9, Col: 7})
	for row := 3; row < 8; row++ {
		field.Block(Cell{Row: row, Col: 4})
	}
	cost := func(c Cell) float64 { return 1 + float64(c.Col%3) }

	recorded := make(map[Cell]float64)
	last := math.Inf(-1)
	solve(field, 0.5, cost, func(c Cell, value float64) {
		if _, seen := recorded[c]; seen {
			t.Fatalf("cell %+v finalized twice", c)
		}
		if value < last-tolerance {
			t.Fatalf("finalization order not monotone: %g after %g", value, last)
		}
		last = value
		recorded[c] = value
	})

	for c, value := range recorded {
		if got := field.At(c); got != value {
			t.Fatalf("cell %+v changed after finalization: %g -> %g", c, value, got)
		}
	}
	if want := 12*9 - 5; len(recorded) != want {
		t.Fatalf("expected %d finalized cells, got %d", want, len(recorded))
	}
}

func TestSolveIsolatedRegionStaysInfinite(t *testing.T) {
	field := NewGrid(5, 5)
	for row := 0; row < 5; row++ {
		field.Block(Cell{Row: row, Col: 2})
	}
	field.SetSource(Cell{Row: 2, Col: 0})

	Solve(field, 1, UnitCost)

	for row := 0; row < 5; row++ {
		if !field.Blocked(Cell{Row: row, Col: 2}) {
			t.Fatalf("blocked cell (%d,2) was overwritten", row)
		}
		for _, col := range []int{3, 4} {
			if v := field.At(Cell{Row: row, Col: col}); !math.IsInf(v, 1) {
				t.Fatalf("cell (%d,%d) should be unreachable, got %g", row, col, v)
			}
		}
		for _, col := range []int{0, 1} {
			if v := field.At(Cell{Row: row, Col: col}); math.IsInf(v, 0) || math.IsNaN(v) {
				t.Fatalf("cell (%d,%d) should be reached, got %g", row, col, v)
			}
		}
	}
}

func TestSolveNegativeInfinityBlocks(t *testing.T) {
	field := NewGrid(3, 3)
	for row := 0; row < 3; row++ {
		field.Set(Cell{Row: row, Col: 1}, math.Inf(-1))
	}
	field.SetSource(Cell{Row: 1, Col: 0})

	Solve(field, 1, UnitCost)

	for row := 0; row < 3; row++ {
		if !field.Blocked(Cell{Row: row, Col: 1}) {
			t.Fatalf("cell (%d,1) should stay blocked", row)
		}
		if v := field.At(Cell{Row: row, Col: 1}); !math.IsInf(v, -1) {
			t.Fatalf("cell (%d,1) marker changed to %g", row, v)
		}
		if v := field.At(Cell{Row: row, Col: 2}); !math.IsInf(v, 1) {
			t.Fatalf("cell (%d,2) should be unreachable, got %g", row, v)
		}
	}
	if v := field.At(Cell{Row: 0, Col: 0}); math.Abs(v-1) > tolerance {
		t.Fatalf("expected 1 next to the source, got %g", v)
	}
}

func TestSolveWithoutSourceLeavesFieldUntouched(t *testing.T) {
	field := NewGrid(3, 4)
	field.Block(Cell{Row: 1, Col: 1})
	before := field.Clone()

	Solve(field, 1, UnitCost)

	for i, v := range field.Values {
		w := before.Values[i]
		if math.IsNaN(w) != math.IsNaN(v) || (!math.IsNaN(w) && w != v) {
			t.Fatalf("value %d changed: %g -> %g", i, w, v)
		}
	}
}

func TestSolveWalledRoom(t *testing.T) {
	field := NewGrid(10, 10)
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			c := Cell{Row: row, Col: col}
			switch {
			case row == 0 || col == 0 || row == 9 || col == 9:
				field.Block(c)
			case row >= 4 && row < 6 && col >= 4 && col < 6:
				field.SetSource(c)
			}
		}
	}

	Solve(field, 0.25, UnitCost)

	for row := 1; row < 9; row++ {
		for col := 1; col < 9; col++ {
			v := field.At(Cell{Row: row, Col: col})
			if math.IsInf(v, 0) || math.IsNaN(v) {
				t.Fatalf("interior cell (%d,%d) unresolved: %g", row, col, v)
			}
		}
	}
	if v := field.At(Cell{Row: 4, Col: 3}); math.Abs(v-0.25) > tolerance {
		t.Fatalf("expected 0.25 next to the source, got %g", v)
	}
	if v := field.At(Cell{Row: 4, Col: 1}); math.Abs(v-0.75) > tolerance {
		t.Fatalf("expected 0.75 three cells from the source, got %g", v)
	}
	if !field.Blocked(Cell{Row: 0, Col: 5}) {
		t.Fatalf("border cell lost its blocked marker")
	}
}

func TestSolveCostScalesArrival(t *testing.T) {
	field := NewGrid(1, 6)
	field.SetSource(Cell{Row: 0, Col: 0})

	Solve(field, 2, func(c Cell) float64 {
		if c.Col >= 3 {
			return 3
		}
		return 1
	})

	want := []float64{0, 2, 4, 10, 16, 22}
	for col, w := range want {
		if got := field.At(Cell{Row: 0, Col: col}); math.Abs(got-w) > tolerance {
			t.Fatalf("col %d: expected %g, got %g", col, w, got)
		}
	}
}

func TestSolvePanicsOnNonPositiveScale(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero scale factor")
		}
	}()
	field := NewGrid(2, 2)
	field.SetSource(Cell{})
	Solve(field, 0, UnitCost)
}
