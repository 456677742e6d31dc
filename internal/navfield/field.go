// Package navfield precomputes arrival-time fields with the eikonal solver and
// exposes them as a crowd.NavigationField, so that pedestrians head around
// obstacles instead of straight at their destination.
package navfield

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/internal/eikonal"
	"github.com/qt2/oxwalk/internal/geom"
)

const (
	// DefaultCellSize is the grid resolution in world units.
	DefaultCellSize = 0.1
	// DefaultClearance is how close a cell centre may get to an obstacle
	// before the cell is treated as blocked.
	DefaultClearance = 0.2
	// seedRadiusFactor scales the cell size into the distance under which a
	// cell is considered part of a destination.
	seedRadiusFactor = 0.75
)

// Config describes the rasterised domain.
type Config struct {
	Min       r2.Vec
	Max       r2.Vec
	CellSize  float64
	Clearance float64
}

// DefaultConfig covers the rectangle [min, max] with the default resolution.
func DefaultConfig(min, max r2.Vec) Config {
	return Config{Min: min, Max: max, CellSize: DefaultCellSize, Clearance: DefaultClearance}
}

func (cfg Config) validate() error {
	if !(cfg.CellSize > 0) {
		return fmt.Errorf("navfield: cell size must be positive, got %g", cfg.CellSize)
	}
	if !(cfg.Max.X > cfg.Min.X) || !(cfg.Max.Y > cfg.Min.Y) {
		return fmt.Errorf("navfield: empty domain %v..%v", cfg.Min, cfg.Max)
	}
	if cfg.Clearance < 0 {
		return fmt.Errorf("navfield: clearance must not be negative, got %g", cfg.Clearance)
	}
	return nil
}

// Stats summarises one solved destination field.
type Stats struct {
	Destination int
	Rows        int
	Cols        int
	Sources     int
	Blocked     int
	Reachable   int
	MaxTime     float64
}

// Field holds one arrival-time grid per destination. Rows run along Y and
// columns along X; cell (row, col) is centred at
// Min + ((col+0.5)·size, (row+0.5)·size).
type Field struct {
	origin   r2.Vec
	cellSize float64
	rows     int
	cols     int
	times    []*eikonal.Grid
	stats    []Stats
}

// ForState builds a field for the obstacles and destinations of s.
func ForState(cfg Config, s *crowd.State) (*Field, error) {
	return Build(cfg, s.Obstacles, s.Destinations)
}

// Build rasterises obstacles, then solves one field per destination with unit
// speed so that values are travel distances in world units.
func Build(cfg Config, obstacles []crowd.Obstacle, destinations []crowd.Destination) (*Field, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cols := int(math.Ceil((cfg.Max.X - cfg.Min.X) / cfg.CellSize))
	rows := int(math.Ceil((cfg.Max.Y - cfg.Min.Y) / cfg.CellSize))
	f := &Field{
		origin:   cfg.Min,
		cellSize: cfg.CellSize,
		rows:     rows,
		cols:     cols,
	}

	base := eikonal.NewGrid(rows, cols)
	blocked := 0
	clearanceSq := cfg.Clearance * cfg.Clearance
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			centre := f.centre(eikonal.Cell{Row: row, Col: col})
			for i := range obstacles {
				if geom.DistanceSquared(centre, obstacles[i].Nearest(centre)) < clearanceSq {
					base.Block(eikonal.Cell{Row: row, Col: col})
					blocked++
					break
				}
			}
		}
	}

	seedRadius := cfg.CellSize * seedRadiusFactor
	seedRadiusSq := seedRadius * seedRadius
	for id := range destinations {
		grid := base.Clone()
		stats := Stats{Destination: id, Rows: rows, Cols: cols, Blocked: blocked}
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				cell := eikonal.Cell{Row: row, Col: col}
				if grid.Blocked(cell) {
					continue
				}
				centre := f.centre(cell)
				if geom.DistanceSquared(centre, destinations[id].Nearest(centre)) <= seedRadiusSq {
					grid.SetSource(cell)
					stats.Sources++
				}
			}
		}

		eikonal.Solve(grid, cfg.CellSize, eikonal.UnitCost)

		for _, v := range grid.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			stats.Reachable++
			if v > stats.MaxTime {
				stats.MaxTime = v
			}
		}
		f.times = append(f.times, grid)
		f.stats = append(f.stats, stats)
	}

	return f, nil
}

// Stats returns the summary for every destination in id order.
func (f *Field) Stats() []Stats {
	out := make([]Stats, len(f.stats))
	copy(out, f.stats)
	return out
}

// ArrivalTime reports the solved travel distance from position to the
// destination. ok is false off-grid, on blocked cells and where the
// destination is unreachable.
func (f *Field) ArrivalTime(destinationID int, position r2.Vec) (float64, bool) {
	grid, cell, ok := f.lookup(destinationID, position)
	if !ok {
		return 0, false
	}
	v := f.value(grid, cell)
	if math.IsInf(v, 1) {
		return 0, false
	}
	return v, true
}

// Direction implements crowd.NavigationField. The heading is the negative
// upwind gradient of the arrival time. Inside blocked or unreachable cells it
// points at the best reachable neighbour so that agents pushed into a wall's
// clearance band find their way out.
func (f *Field) Direction(destinationID int, position r2.Vec) (r2.Vec, bool) {
	grid, cell, ok := f.lookup(destinationID, position)
	if !ok {
		return r2.Vec{}, false
	}

	centre := f.value(grid, cell)
	if math.IsInf(centre, 1) {
		return f.escape(grid, cell)
	}

	gx := f.axisGradient(centre,
		f.value(grid, eikonal.Cell{Row: cell.Row, Col: cell.Col - 1}),
		f.value(grid, eikonal.Cell{Row: cell.Row, Col: cell.Col + 1}))
	gy := f.axisGradient(centre,
		f.value(grid, eikonal.Cell{Row: cell.Row - 1, Col: cell.Col}),
		f.value(grid, eikonal.Cell{Row: cell.Row + 1, Col: cell.Col}))

	gradient := r2.Vec{X: gx, Y: gy}
	length := r2.Norm(gradient)
	if length == 0 {
		// Source cells and plateaus: let the caller aim at the geometry.
		return r2.Vec{}, false
	}
	return r2.Scale(-1/length, gradient), true
}

func (f *Field) axisGradient(centre, lower, upper float64) float64 {
	if math.Min(lower, upper) >= centre {
		return 0
	}
	if lower <= upper {
		return (centre - lower) / f.cellSize
	}
	return (upper - centre) / f.cellSize
}

func (f *Field) escape(grid *eikonal.Grid, cell eikonal.Cell) (r2.Vec, bool) {
	best := math.Inf(1)
	var heading r2.Vec
	for dRow := -1; dRow <= 1; dRow++ {
		for dCol := -1; dCol <= 1; dCol++ {
			if dRow == 0 && dCol == 0 {
				continue
			}
			v := f.value(grid, eikonal.Cell{Row: cell.Row + dRow, Col: cell.Col + dCol})
			if v < best {
				best = v
				heading = r2.Vec{X: float64(dCol), Y: float64(dRow)}
			}
		}
	}
	if math.IsInf(best, 1) {
		return r2.Vec{}, false
	}
	return r2.Scale(1/r2.Norm(heading), heading), true
}

func (f *Field) lookup(destinationID int, position r2.Vec) (*eikonal.Grid, eikonal.Cell, bool) {
	if f == nil || destinationID < 0 || destinationID >= len(f.times) {
		return nil, eikonal.Cell{}, false
	}
	local := r2.Sub(position, f.origin)
	if local.X < 0 || local.Y < 0 {
		return nil, eikonal.Cell{}, false
	}
	cell := eikonal.Cell{Row: int(local.Y / f.cellSize), Col: int(local.X / f.cellSize)}
	grid := f.times[destinationID]
	if !grid.InBounds(cell) {
		return nil, eikonal.Cell{}, false
	}
	return grid, cell, true
}

// value treats off-grid and blocked cells as unreachable.
func (f *Field) value(grid *eikonal.Grid, cell eikonal.Cell) float64 {
	if grid.Blocked(cell) {
		return math.Inf(1)
	}
	return grid.At(cell)
}

func (f *Field) centre(cell eikonal.Cell) r2.Vec {
	return r2.Vec{
		X: f.origin.X + (float64(cell.Col)+0.5)*f.cellSize,
		Y: f.origin.Y + (float64(cell.Row)+0.5)*f.cellSize,
	}
}

var _ crowd.NavigationField = (*Field)(nil)
