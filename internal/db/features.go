package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

// FeatureRecord is one stored row of frame_features. Nullable columns are
// pointers so a rejected estimator reads back as nil, not zero.
type FeatureRecord struct {
	FrameID   string    `json:"frame_id"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	VEgo      float64   `json:"v_ego"`

	LateralToReference *float64 `json:"lateral_to_reference,omitempty"`
	LateralToEdge      *float64 `json:"lateral_to_edge,omitempty"`
	LateralDistance    *float64 `json:"lateral_distance,omitempty"`
	Curvature          *float64 `json:"curvature,omitempty"`
	SmoothedLateral    *float64 `json:"smoothed_lateral,omitempty"`
	SmoothedCurvature  *float64 `json:"smoothed_curvature,omitempty"`

	LateralErr   string `json:"lateral_error,omitempty"`
	CurvatureErr string `json:"curvature_error,omitempty"`
	FiltersReset bool   `json:"filters_reset,omitempty"`
}

// RecordResult stores one pipeline result. Its signature matches
// pipeline.Sink so it can be passed to pipeline.Run directly.
func (db *DB) RecordResult(r pipeline.Result) error {
	var toRef, toEdge, dist *float64
	if r.Lateral != nil {
		toRef, toEdge, dist = &r.Lateral.ToReference, &r.Lateral.ToEdge, &r.Lateral.Distance
	}

	_, err := db.Exec(
		`INSERT INTO frame_features (
			frame_id, session_id, seq, ts_unix_nanos, v_ego,
			lateral_to_ref, lateral_to_edge, lateral_distance, curvature,
			smoothed_lateral, smoothed_curvature,
			lateral_error, curvature_error, filters_reset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FrameID, r.SessionID, r.Seq, r.Timestamp.UnixNano(), r.VEgo,
		toRef, toEdge, dist, r.Curvature,
		r.SmoothedLateral, r.SmoothedCurvature,
		nullString(r.LateralErr), nullString(r.CurvatureErr), r.FiltersReset,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame %s: %w", r.FrameID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// RecentFeatures returns up to limit records, newest first.
func (db *DB) RecentFeatures(limit int) ([]FeatureRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := db.Query(`SELECT frame_id, session_id, seq, ts_unix_nanos, v_ego,
			lateral_to_ref, lateral_to_edge, lateral_distance, curvature,
			smoothed_lateral, smoothed_curvature,
			COALESCE(lateral_error, ''), COALESCE(curvature_error, ''), filters_reset
		FROM frame_features ORDER BY ts_unix_nanos DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var records []FeatureRecord
	for rows.Next() {
		var rec FeatureRecord
		var tsNanos int64
		var toRef, toEdge, dist, curv, sLat, sCurv sql.NullFloat64
		if err := rows.Scan(
			&rec.FrameID, &rec.SessionID, &rec.Seq, &tsNanos, &rec.VEgo,
			&toRef, &toEdge, &dist, &curv,
			&sLat, &sCurv,
			&rec.LateralErr, &rec.CurvatureErr, &rec.FiltersReset,
		); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, tsNanos).UTC()
		rec.LateralToReference = nullFloat(toRef)
		rec.LateralToEdge = nullFloat(toEdge)
		rec.LateralDistance = nullFloat(dist)
		rec.Curvature = nullFloat(curv)
		rec.SmoothedLateral = nullFloat(sLat)
		rec.SmoothedCurvature = nullFloat(sCurv)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// SessionStats summarises one session. Mean and max only cover frames whose
// estimator accepted the frame.
type SessionStats struct {
	SessionID       string    `json:"session_id"`
	Frames          int64     `json:"frames"`
	LateralFrames   int64     `json:"lateral_frames"`
	CurvatureFrames int64     `json:"curvature_frames"`
	FilterResets    int64     `json:"filter_resets"`
	MeanLateral     *float64  `json:"mean_lateral,omitempty"`
	MinLateral      *float64  `json:"min_lateral,omitempty"`
	MeanCurvature   *float64  `json:"mean_curvature,omitempty"`
	MaxCurvature    *float64  `json:"max_curvature,omitempty"`
	MeanSpeed       *float64  `json:"mean_speed,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
}

// ErrSessionNotFound is returned by SessionStats for an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStats aggregates the stored frames of sessionID.
func (db *DB) SessionStats(sessionID string) (SessionStats, error) {
	s := SessionStats{SessionID: sessionID}
	var meanLat, minLat, meanCurv, maxCurv, v sql.NullFloat64
	var start, end sql.NullInt64
	err := db.QueryRow(`SELECT
			COUNT(*),
			COUNT(lateral_distance),
			COUNT(curvature),
			COALESCE(SUM(filters_reset), 0),
			AVG(lateral_distance),
			MIN(lateral_distance),
			AVG(curvature),
			MAX(curvature),
			AVG(v_ego),
			MIN(ts_unix_nanos),
			MAX(ts_unix_nanos)
		FROM frame_features WHERE session_id = ?`, sessionID).Scan(
		&s.Frames, &s.LateralFrames, &s.CurvatureFrames, &s.FilterResets,
		&meanLat, &minLat, &meanCurv, &maxCurv, &v, &start, &end,
	)
	if err != nil {
		return SessionStats{}, fmt.Errorf("failed to aggregate session %s: %w", sessionID, err)
	}
	if s.Frames == 0 {
		return SessionStats{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.MeanLateral = nullFloat(meanLat)
	s.MinLateral = nullFloat(minLat)
	s.MeanCurvature = nullFloat(meanCurv)
	s.MaxCurvature = nullFloat(maxCurv)
	s.MeanSpeed = nullFloat(v)
	s.Start = time.Unix(0, start.Int64).UTC()
	s.End = time.Unix(0, end.Int64).UTC()
	return s, nil
}
