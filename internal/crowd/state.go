// Package crowd implements the social force pedestrian model.
//
// A State owns every pedestrian, obstacle and destination. Each call to Tick
// advances all active pedestrians by one fixed time step: accelerations are
// first computed for every agent from the pre-tick snapshot, then applied in
// a second pass so that no agent observes another's post-tick state.
package crowd

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// NavigationField supplies goal directions that route around obstacles. It is
// optional; without one the goal term heads straight for the nearest point
// of the destination.
type NavigationField interface {
	// Direction returns the preferred heading at position for agents bound
	// to destinationID. ok is false when the field has no answer there.
	Direction(destinationID int, position r2.Vec) (dir r2.Vec, ok bool)
}

// State is the mutable simulation state advanced by Tick.
type State struct {
	Pedestrians  []Pedestrian
	Obstacles    []Obstacle
	Destinations []Destination
	Params       Params
	Navigation   NavigationField
}

// NewState creates an empty state using params.
func NewState(params Params) *State {
	return &State{Params: params}
}

// AddPedestrian appends p and returns its index. The destination must already
// be registered.
func (s *State) AddPedestrian(p Pedestrian) int {
	if p.DestinationID < 0 || p.DestinationID >= len(s.Destinations) {
		panic(fmt.Sprintf("crowd: pedestrian references unknown destination %d (have %d)", p.DestinationID, len(s.Destinations)))
	}
	if !(p.DesiredSpeed > 0) {
		panic(fmt.Sprintf("crowd: desired speed must be positive, got %g", p.DesiredSpeed))
	}
	s.Pedestrians = append(s.Pedestrians, p)
	return len(s.Pedestrians) - 1
}

// AddObstacle appends an obstacle.
func (s *State) AddObstacle(o Obstacle) {
	s.Obstacles = append(s.Obstacles, o)
}

// AddDestination appends a destination and returns its id.
func (s *State) AddDestination(d Destination) int {
	s.Destinations = append(s.Destinations, d)
	return len(s.Destinations) - 1
}

// Tick advances the state by one time step.
func (s *State) Tick() {
	Tick(s)
}

// ActiveCount reports how many pedestrians are still walking.
func (s *State) ActiveCount() int {
	count := 0
	for i := range s.Pedestrians {
		if s.Pedestrians[i].Active {
			count++
		}
	}
	return count
}

// Snapshot is a read-only copy of a State for renderers and broadcasters.
type Snapshot struct {
	Pedestrians  []Pedestrian
	Obstacles    []Obstacle
	Destinations []Destination
}

// Snapshot copies the pedestrians. Obstacles and destinations are immutable
// and shared.
func (s *State) Snapshot() Snapshot {
	pedestrians := make([]Pedestrian, len(s.Pedestrians))
	copy(pedestrians, s.Pedestrians)
	return Snapshot{
		Pedestrians:  pedestrians,
		Obstacles:    append([]Obstacle(nil), s.Obstacles...),
		Destinations: append([]Destination(nil), s.Destinations...),
	}
}
