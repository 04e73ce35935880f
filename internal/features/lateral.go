// Package features derives control-usable scalars from one frame of
// perception output: the lateral room to the nearest boundary and a
// curvature factor from the predicted yaw rate.
package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lanefeatures/internal/geometry"
)

const opLateral = "lateral distance"

// LateralBreakdown holds both boundary distances for one frame along with the
// smaller of the two.
type LateralBreakdown struct {
	ToReference float64 `json:"to_reference"`
	ToEdge      float64 `json:"to_edge"`
	Distance    float64 `json:"distance"`
}

// NearestIsEdge reports whether the road edge, rather than the reference lane
// line, set Distance.
func (b LateralBreakdown) NearestIsEdge() bool {
	return b.ToEdge < b.ToReference
}

// LateralDistance returns the mean lateral distance from the current lane to
// whichever of the reference lane or road edge is closer.
func LateralDistance(reference, current, edge geometry.Curve) (float64, error) {
	b, err := LateralDistances(reference, current, edge)
	if err != nil {
		return 0, err
	}
	return b.Distance, nil
}

// LateralDistances resamples the reference lane and the road edge at every x
// of the current lane, averages the absolute y gap to each, and returns both
// means with their minimum. Ties resolve to the reference-lane distance.
func LateralDistances(reference, current, edge geometry.Curve) (LateralBreakdown, error) {
	switch {
	case current.Empty():
		return LateralBreakdown{}, domainErr(opLateral, "current lane has no points")
	case reference.Empty():
		return LateralBreakdown{}, domainErr(opLateral, "reference lane has no points")
	case edge.Empty():
		return LateralBreakdown{}, domainErr(opLateral, "road edge has no points")
	}
	for _, c := range []struct {
		name  string
		curve geometry.Curve
	}{{"current lane", current}, {"reference lane", reference}, {"road edge", edge}} {
		if i, ok := firstNonFinite(c.curve); !ok {
			return LateralBreakdown{}, domainErr(opLateral, "%s point %d is not finite (%v, %v)", c.name, i, c.curve[i].X, c.curve[i].Y)
		}
	}

	xs, ys := current.XY()
	toRef := meanAbsGap(ys, reference.ResampleAt(xs))
	toEdge := meanAbsGap(ys, edge.ResampleAt(xs))

	// Finite samples far apart can still overflow the gap.
	if !isFinite(toRef) || !isFinite(toEdge) {
		return LateralBreakdown{}, domainErr(opLateral, "non-finite mean gap (reference %v, edge %v)", toRef, toEdge)
	}

	return LateralBreakdown{
		ToReference: toRef,
		ToEdge:      toEdge,
		Distance:    math.Min(toRef, toEdge),
	}, nil
}

func meanAbsGap(a, b []float64) float64 {
	gap := make([]float64, len(a))
	floats.SubTo(gap, a, b)
	for i, g := range gap {
		gap[i] = math.Abs(g)
	}
	return stat.Mean(gap, nil)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// firstNonFinite returns the index of the first point with a NaN or infinite
// coordinate. ok is true when every point is finite.
func firstNonFinite(c geometry.Curve) (i int, ok bool) {
	for i, p := range c {
		if !isFinite(p.X) || !isFinite(p.Y) {
			return i, false
		}
	}
	return 0, true
}
