// Package geometry holds the sampled polylines that perception produces each
// frame (lane lines, road edges) and the interpolation used to compare them.
package geometry

import (
	"sort"
)

// Point is a single (x, y) sample in the vehicle frame. X is longitudinal
// distance ahead of the vehicle, Y is lateral offset, both in metres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is an ordered sequence of samples. Points are not required to be
// sorted by X; callers that need monotonic X use SortedByX.
type Curve []Point

// Empty reports whether the curve has no samples.
func (c Curve) Empty() bool {
	return len(c) == 0
}

// XY splits the curve into parallel x and y slices.
func (c Curve) XY() (xs, ys []float64) {
	xs = make([]float64, len(c))
	ys = make([]float64, len(c))
	for i, p := range c {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}

// SortedByX returns a copy of the curve ordered by ascending X, with points
// that share an X ordered by ascending Y. The order depends only on the point
// values, so any permutation of the same points sorts identically. The
// receiver is left untouched so curves owned by the caller can be shared
// across estimators.
func (c Curve) SortedByX() Curve {
	out := make(Curve, len(c))
	copy(out, c)
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// ResampleAt sorts the curve by X and returns its interpolated Y at each of
// the given positions. Positions outside the curve's X range take the
// nearest endpoint's Y. The curve must not be empty.
func (c Curve) ResampleAt(at []float64) []float64 {
	xs, ys := c.SortedByX().XY()
	out := make([]float64, len(at))
	for i, x := range at {
		out[i] = Interp(x, xs, ys)
	}
	return out
}

// Interp linearly interpolates ys at x over knots xs, which must be sorted
// ascending and non-empty. Queries left of xs[0] return ys[0] and queries
// right of the last knot return the last y. When several knots share the
// same X the rightmost one is used; after SortedByX that is the largest Y.
func Interp(x float64, xs, ys []float64) float64 {
	n := len(xs)
	// j is the last knot with xs[j] <= x.
	j := sort.Search(n, func(i int) bool { return xs[i] > x }) - 1
	if j < 0 {
		return ys[0]
	}
	if j >= n-1 {
		return ys[n-1]
	}
	x0, x1 := xs[j], xs[j+1]
	y0, y1 := ys[j], ys[j+1]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
