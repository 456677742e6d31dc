package crowd

import "gonum.org/v1/gonum/spatial/r2"

// Pedestrian is a single agent. Once Active is false the agent is terminal:
// the integrator neither moves it nor lets it interact with others.
type Pedestrian struct {
	Active        bool
	Position      r2.Vec
	Velocity      r2.Vec
	DesiredSpeed  float64
	DestinationID int
}

// NewPedestrian creates an active agent at rest. desiredSpeed is supplied by
// the caller so that sampling stays outside the integrator.
func NewPedestrian(position r2.Vec, destinationID int, desiredSpeed float64) Pedestrian {
	return Pedestrian{
		Active:        true,
		Position:      position,
		DesiredSpeed:  desiredSpeed,
		DestinationID: destinationID,
	}
}
