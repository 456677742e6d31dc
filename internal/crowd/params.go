package crowd

import "math"

// Params carries the constants of the social force model. The zero value is
// not usable; start from DefaultParams.
type Params struct {
	// TimeStep is the simulated time advanced by one tick.
	TimeStep float64
	// RelaxationTime controls how quickly an agent adapts to its desired
	// velocity.
	RelaxationTime float64
	// InteractionRadius bounds pedestrian and obstacle repulsion.
	InteractionRadius float64
	// RepulsionA and RepulsionB are the strength and range of the
	// pedestrian potential.
	RepulsionA float64
	RepulsionB float64
	// CosFieldOfView is the cosine of the half-angle of sight. Forces from
	// outside it are scaled by RearFactor.
	CosFieldOfView float64
	RearFactor     float64
	// ObstacleStrength and ObstacleRange parameterise wall repulsion.
	ObstacleStrength float64
	ObstacleRange    float64
	// MaxSpeedFactor caps speed relative to the desired speed.
	MaxSpeedFactor float64
	// ArrivalRadius is the distance to the destination below which an agent
	// is deactivated.
	ArrivalRadius float64
}

// Defaults for Params.
const (
	DefaultTimeStep          = 0.1
	DefaultRelaxationTime    = 0.5
	DefaultInteractionRadius = 3.0
	DefaultRepulsionA        = 2.1
	DefaultRepulsionB        = 0.3
	DefaultRearFactor        = 0.5
	DefaultObstacleStrength  = 10.0
	DefaultObstacleRange     = 0.2
	DefaultMaxSpeedFactor    = 1.3
	DefaultArrivalRadius     = 0.2
	DefaultFieldOfViewDeg    = 100.0
)

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		TimeStep:          DefaultTimeStep,
		RelaxationTime:    DefaultRelaxationTime,
		InteractionRadius: DefaultInteractionRadius,
		RepulsionA:        DefaultRepulsionA,
		RepulsionB:        DefaultRepulsionB,
		CosFieldOfView:    math.Cos(DefaultFieldOfViewDeg * math.Pi / 180),
		RearFactor:        DefaultRearFactor,
		ObstacleStrength:  DefaultObstacleStrength,
		ObstacleRange:     DefaultObstacleRange,
		MaxSpeedFactor:    DefaultMaxSpeedFactor,
		ArrivalRadius:     DefaultArrivalRadius,
	}
}
