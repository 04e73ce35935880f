package monitor

import (
	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

// point is one sample of a series; ok is false where the estimator rejected
// the frame.
type point struct {
	t  float64
	v  float64
	ok bool
}

// series holds the raw and smoothed values of both features, indexed by
// seconds since the first result.
type series struct {
	lateral, smoothedLateral     []point
	curvature, smoothedCurvature []point
}

func buildSeries(results []pipeline.Result) series {
	var s series
	if len(results) == 0 {
		return s
	}
	start := results[0].Timestamp
	for _, r := range results {
		t := r.Timestamp.Sub(start).Seconds()
		d, ok := r.LateralDistance()
		s.lateral = append(s.lateral, point{t, d, ok})
		s.smoothedLateral = append(s.smoothedLateral, fromPtr(t, r.SmoothedLateral))
		s.curvature = append(s.curvature, fromPtr(t, r.Curvature))
		s.smoothedCurvature = append(s.smoothedCurvature, fromPtr(t, r.SmoothedCurvature))
	}
	return s
}

func fromPtr(t float64, v *float64) point {
	if v == nil {
		return point{t: t}
	}
	return point{t, *v, true}
}
