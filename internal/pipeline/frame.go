// Package pipeline turns decoded perception frames into smoothed feature
// results. It owns one moving-average filter per smoothed signal and is the
// single writer for that filter state.
package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/lanefeatures/internal/features"
	"github.com/banshee-data/lanefeatures/internal/geometry"
)

// Frame is one tick of model output as it arrives on the wire.
type Frame struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	ReferenceLane geometry.Curve `json:"reference_lane"`
	CurrentLane   geometry.Curve `json:"current_lane"`
	RoadEdge      geometry.Curve `json:"road_edge"`

	// Predicted yaw rate (rad/s) and longitudinal velocity (m/s) over the
	// model horizon, index aligned.
	YawRates   []float64 `json:"yaw_rates"`
	Velocities []float64 `json:"velocities"`

	// VEgo is the current vehicle speed in m/s.
	VEgo float64 `json:"v_ego"`
}

// DecodeFrame parses a single JSON-encoded frame.
func DecodeFrame(payload []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to unmarshal frame: %w", err)
	}
	return f, nil
}

// Result is the feature output for one frame. Raw values are nil when the
// matching estimator rejected the frame, with the reason in the *Err field.
// Smoothed values are only reported for frames whose raw value was accepted.
type Result struct {
	FrameID   string    `json:"frame_id"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	VEgo      float64   `json:"v_ego"`

	Lateral   *features.LateralBreakdown `json:"lateral,omitempty"`
	Curvature *float64                   `json:"curvature,omitempty"`

	SmoothedLateral   *float64 `json:"smoothed_lateral,omitempty"`
	SmoothedCurvature *float64 `json:"smoothed_curvature,omitempty"`

	LateralErr   string `json:"lateral_error,omitempty"`
	CurvatureErr string `json:"curvature_error,omitempty"`

	// FiltersReset is set when a timestamp gap emptied the filters before
	// this frame was added.
	FiltersReset bool `json:"filters_reset,omitempty"`
}

// LateralDistance returns the raw lateral distance, if any.
func (r Result) LateralDistance() (float64, bool) {
	if r.Lateral == nil {
		return 0, false
	}
	return r.Lateral.Distance, true
}

// OK reports whether both estimators accepted the frame.
func (r Result) OK() bool {
	return r.LateralErr == "" && r.CurvatureErr == ""
}
