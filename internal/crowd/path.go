package crowd

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/geom"
)

// Path is an immutable polyline. A single vertex describes a point target.
type Path struct {
	points []r2.Vec
}

// NewPath copies points into a Path. It panics when points is empty since a
// pathless obstacle or destination is a scenario construction bug.
func NewPath(points ...r2.Vec) Path {
	if len(points) == 0 {
		panic("crowd: path requires at least one point")
	}
	copied := make([]r2.Vec, len(points))
	copy(copied, points)
	return Path{points: copied}
}

// Points returns a copy of the vertices.
func (p Path) Points() []r2.Vec {
	copied := make([]r2.Vec, len(p.points))
	copy(copied, p.points)
	return copied
}

// Len reports the number of vertices.
func (p Path) Len() int { return len(p.points) }

// Nearest projects point onto the polyline.
func (p Path) Nearest(point r2.Vec) r2.Vec {
	return geom.NearestPointOnPath(point, p.points)
}

// Obstacle repels pedestrians.
type Obstacle struct {
	Path
}

// NewObstacle builds an obstacle polyline.
func NewObstacle(points ...r2.Vec) Obstacle {
	return Obstacle{Path: NewPath(points...)}
}

// Destination attracts the pedestrians assigned to it.
type Destination struct {
	Path
}

// NewDestination builds a destination polyline.
func NewDestination(points ...r2.Vec) Destination {
	return Destination{Path: NewPath(points...)}
}
