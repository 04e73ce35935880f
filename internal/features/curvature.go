package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const opCurvature = "road curvature"

// RoadCurvature takes the worst predicted lateral acceleration over the model
// horizon, max(|yawRate[i]| * velocity[i]), and normalises it by the square of
// the current ego speed.
//
// egoSpeed must be strictly positive; there is no implicit clamp.
func RoadCurvature(yawRates, velocities []float64, egoSpeed float64) (float64, error) {
	switch {
	case len(yawRates) == 0:
		return 0, domainErr(opCurvature, "no yaw rate samples")
	case len(yawRates) != len(velocities):
		return 0, domainErr(opCurvature, "yaw rate and velocity lengths differ (%d != %d)", len(yawRates), len(velocities))
	case math.IsNaN(egoSpeed) || egoSpeed <= 0:
		return 0, domainErr(opCurvature, "ego speed must be positive, got %v", egoSpeed)
	}

	latAccel := make([]float64, len(yawRates))
	for i, r := range yawRates {
		// floats.Max skips NaN, so corrupt samples must be caught here.
		if !isFinite(r) || !isFinite(velocities[i]) {
			return 0, domainErr(opCurvature, "sample %d is not finite (yaw rate %v, velocity %v)", i, r, velocities[i])
		}
		latAccel[i] = math.Abs(r) * velocities[i]
	}

	k := floats.Max(latAccel) / (egoSpeed * egoSpeed)
	if !isFinite(k) {
		return 0, domainErr(opCurvature, "non-finite result %v for ego speed %v", k, egoSpeed)
	}
	return k, nil
}
