package polyline

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Simplify thins a world-space path for display. Starting from the first
// point it skips ahead while the point after the candidate is still within
// threshold of the last kept point, then keeps the candidate. The first and
// last points are always kept. Paths of two points or fewer are returned as
// a copy.
func Simplify(points []r3.Vec, threshold float64) []r3.Vec {
	n := len(points)
	if n <= 2 {
		return append([]r3.Vec(nil), points...)
	}

	simplified := []r3.Vec{points[0]}
	for i := 0; i < n-1; {
		j := i + 1
		for j < n-1 && r3.Norm(r3.Sub(points[j+1], points[i])) <= threshold {
			j++
		}
		simplified = append(simplified, points[j])
		i = j
	}
	return simplified
}

// Ground drops the height component of v
func Ground(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Z: v.Z}
}

// GroundDistance is the distance between a and b on the XZ plane
func GroundDistance(a, b r3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// ClosestPointOnSegment returns the point of segment ab nearest to p
func ClosestPointOnSegment(p, a, b r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	lengthSq := r3.Dot(ab, ab)
	if lengthSq == 0 {
		return a
	}
	t := r3.Dot(r3.Sub(p, a), ab) / lengthSq
	t = math.Max(0, math.Min(1, t))
	return r3.Add(a, r3.Scale(t, ab))
}

// ClosestPointOnPolyline returns the point of path nearest to p along with
// the index of the segment it lies on. It reports false for an empty path.
func ClosestPointOnPolyline(p r3.Vec, path []r3.Vec) (r3.Vec, int, bool) {
	switch len(path) {
	case 0:
		return r3.Vec{}, 0, false
	case 1:
		return path[0], 0, true
	}

	best := math.Inf(1)
	var closest r3.Vec
	segment := 0
	for i := 0; i+1 < len(path); i++ {
		candidate := ClosestPointOnSegment(p, path[i], path[i+1])
		if d := r3.Norm(r3.Sub(p, candidate)); d < best {
			best = d
			closest = candidate
			segment = i
		}
	}
	return closest, segment, true
}

// DistanceToPolyline is the minimum distance from p to any segment of path.
// An empty path is infinitely far away.
func DistanceToPolyline(p r3.Vec, path []r3.Vec) float64 {
	closest, _, ok := ClosestPointOnPolyline(p, path)
	if !ok {
		return math.Inf(1)
	}
	return r3.Norm(r3.Sub(p, closest))
}

// GroundDistanceToPolyline is DistanceToPolyline measured on the XZ plane
func GroundDistanceToPolyline(p r3.Vec, path []r3.Vec) float64 {
	ground := make([]r3.Vec, len(path))
	for i, v := range path {
		ground[i] = Ground(v)
	}
	return DistanceToPolyline(Ground(p), ground)
}

// Length is the total length of path
func Length(path []r3.Vec) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		total += r3.Norm(r3.Sub(path[i+1], path[i]))
	}
	return total
}
