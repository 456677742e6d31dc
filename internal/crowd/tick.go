package crowd

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/qt2/oxwalk/internal/geom"
)

// Tick advances every active pedestrian in s by one time step.
func Tick(s *State) {
	if s == nil || len(s.Pedestrians) == 0 {
		return
	}
	accelerations := s.computeAccelerations()
	s.applyAccelerations(accelerations)
}

// computeAccelerations evaluates the force sum for each pedestrian against
// the unmodified state. The result is indexed parallel to s.Pedestrians;
// inactive pedestrians get a zero entry.
func (s *State) computeAccelerations() []r2.Vec {
	params := s.Params
	accelerations := make([]r2.Vec, len(s.Pedestrians))

	for i := range s.Pedestrians {
		self := &s.Pedestrians[i]
		if !self.Active {
			continue
		}

		desired := s.desiredDirection(self)
		acceleration := r2.Scale(1/params.RelaxationTime, r2.Sub(r2.Scale(self.DesiredSpeed, desired), self.Velocity))

		for j := range s.Pedestrians {
			if i == j {
				continue
			}
			other := &s.Pedestrians[j]
			if !other.Active {
				continue
			}
			acceleration = r2.Add(acceleration, pedestrianForce(params, self, other, desired))
		}

		for k := range s.Obstacles {
			acceleration = r2.Add(acceleration, obstacleForce(params, self.Position, &s.Obstacles[k]))
		}

		accelerations[i] = acceleration
	}

	return accelerations
}

// applyAccelerations integrates velocity and position and retires
// pedestrians that reached their destination.
func (s *State) applyAccelerations(accelerations []r2.Vec) {
	params := s.Params
	dt := params.TimeStep
	arrivalSq := params.ArrivalRadius * params.ArrivalRadius

	for i := range s.Pedestrians {
		p := &s.Pedestrians[i]
		if !p.Active {
			continue
		}

		previous := p.Velocity
		velocity := r2.Add(previous, r2.Scale(dt, accelerations[i]))
		velocity = geom.ClampLength(velocity, p.DesiredSpeed*params.MaxSpeedFactor)
		p.Velocity = velocity
		p.Position = r2.Add(p.Position, r2.Scale(dt*0.5, r2.Add(velocity, previous)))

		target := s.Destinations[p.DestinationID].Nearest(p.Position)
		if geom.DistanceSquared(target, p.Position) < arrivalSq {
			p.Active = false
		}
	}
}

// desiredDirection is the unit heading of the goal term.
func (s *State) desiredDirection(p *Pedestrian) r2.Vec {
	if s.Navigation != nil {
		if dir, ok := s.Navigation.Direction(p.DestinationID, p.Position); ok {
			return geom.NormalizeOrZero(dir)
		}
	}
	target := s.Destinations[p.DestinationID].Nearest(p.Position)
	return geom.NormalizeOrZero(r2.Sub(target, p.Position))
}

// pedestrianForce is the repulsion other exerts on self using the elliptical
// potential, which anticipates other's next step. Coincident or out of range
// pairs do not interact.
func pedestrianForce(params Params, self, other *Pedestrian, desired r2.Vec) r2.Vec {
	diff := r2.Sub(self.Position, other.Position)
	distance := r2.Norm(diff)
	if distance <= 0 || distance > params.InteractionRadius {
		return r2.Vec{}
	}

	dt := params.TimeStep
	direction := r2.Scale(1/distance, diff)
	step := r2.Scale(dt, other.Velocity)
	t1 := r2.Sub(diff, step)
	t1Length := r2.Norm(t1)
	if t1Length == 0 {
		return r2.Vec{}
	}
	t2 := distance + t1Length

	stepLength := r2.Norm(step)
	b := math.Sqrt(math.Max(t2*t2-stepLength*stepLength, 0)) * 0.5
	if b == 0 {
		return r2.Vec{}
	}

	nablaB := r2.Scale(t2/(4*b), r2.Add(direction, r2.Scale(1/t1Length, t1)))
	force := r2.Scale(params.RepulsionA/params.RepulsionB*math.Exp(-b/params.RepulsionB), nablaB)

	// outside the field of view
	if r2.Dot(desired, r2.Scale(-1, force)) < r2.Norm(force)*params.CosFieldOfView {
		force = r2.Scale(params.RearFactor, force)
	}

	return force
}

// obstacleForce pushes position away from the nearest point of obstacle.
func obstacleForce(params Params, position r2.Vec, obstacle *Obstacle) r2.Vec {
	nearest := obstacle.Nearest(position)
	diff := r2.Sub(position, nearest)
	distance := r2.Norm(diff)
	if distance <= 0 || distance > params.InteractionRadius {
		return r2.Vec{}
	}
	direction := r2.Scale(1/distance, diff)
	magnitude := params.ObstacleStrength * params.ObstacleRange * math.Exp(-distance/params.ObstacleRange)
	return r2.Scale(magnitude, direction)
}
