// Package units provides shared constants, validation, and conversion for
// speed units. Everything inside the pipeline is in m/s; conversion happens
// only at the edges (CLI flags, API responses).
package units

import "strings"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

const (
	mpsToMPH = 2.2369362920544
	mpsToKPH = 3.6
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mpsToMPH
	case KMPH, KPH:
		return speedMPS * mpsToKPH
	default:
		return speedMPS
	}
}

// ToMPS converts a speed given in sourceUnits to meters per second.
// Unknown units return the input unchanged.
func ToMPS(speed float64, sourceUnits string) float64 {
	switch sourceUnits {
	case MPH:
		return speed / mpsToMPH
	case KMPH, KPH:
		return speed / mpsToKPH
	default:
		return speed
	}
}

// ConvertPtr converts an optional m/s value, preserving nil.
func ConvertPtr(speedMPS *float64, targetUnits string) *float64 {
	if speedMPS == nil {
		return nil
	}
	v := ConvertSpeed(*speedMPS, targetUnits)
	return &v
}
