// Package geom provides the planar projection helpers shared by the crowd
// integrator and the navigation field.
package geom

import "gonum.org/v1/gonum/spatial/r2"

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// DistanceSquared returns the squared distance between two points.
func DistanceSquared(a, b r2.Vec) float64 {
	return r2.Norm2(r2.Sub(a, b))
}

// NormalizeOrZero returns the unit vector colinear to v, or the zero vector
// when v has no length.
func NormalizeOrZero(v r2.Vec) r2.Vec {
	length := r2.Norm(v)
	if length == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/length, v)
}

// ClampLength caps the magnitude of v at max while keeping its direction.
func ClampLength(v r2.Vec, max float64) r2.Vec {
	lengthSq := r2.Norm2(v)
	if lengthSq <= max*max {
		return v
	}
	return r2.Scale(max/r2.Norm(v), v)
}

// NearestPointOnSegment projects point onto the segment a-b. A zero-length
// segment projects every point onto a.
func NearestPointOnSegment(point, a, b r2.Vec) r2.Vec {
	seg := r2.Sub(b, a)
	segLenSq := r2.Norm2(seg)
	if segLenSq == 0 {
		return a
	}
	t := Clamp(r2.Dot(r2.Sub(point, a), seg)/segLenSq, 0, 1)
	return r2.Add(a, r2.Scale(t, seg))
}

// NearestPointOnPath projects point onto the polyline described by path.
// A single vertex path degenerates to that vertex. Zero-length segments are
// skipped; the first vertex is always a candidate.
//
// path must not be empty.
func NearestPointOnPath(point r2.Vec, path []r2.Vec) r2.Vec {
	if len(path) == 0 {
		panic("geom: nearest point on empty path")
	}
	nearest := path[0]
	minDistSq := DistanceSquared(point, nearest)

	for i := 1; i < len(path); i++ {
		p0 := path[i-1]
		p1 := path[i]
		if p0 == p1 {
			continue
		}
		proj := NearestPointOnSegment(point, p0, p1)
		if distSq := DistanceSquared(point, proj); distSq < minDistSq {
			minDistSq = distSq
			nearest = proj
		}
	}

	return nearest
}
