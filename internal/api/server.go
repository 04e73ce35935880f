// Package api serves the live and stored feature results over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/lanefeatures/internal/config"
	"github.com/banshee-data/lanefeatures/internal/db"
	"github.com/banshee-data/lanefeatures/internal/httputil"
	"github.com/banshee-data/lanefeatures/internal/monitor"
	"github.com/banshee-data/lanefeatures/internal/pipeline"
	"github.com/banshee-data/lanefeatures/internal/units"
)

const (
	defaultFeatureLimit = 100
	maxFeatureLimit     = 5000
)

type Server struct {
	proc     *pipeline.Processor
	db       *db.DB // nil when results are not persisted
	recorder *monitor.Recorder
	cfg      *config.FeatureConfig
	units    string
}

// NewServer serves results from proc and rec, and stored history from
// database when it is non-nil. Speeds are reported in cfg's speed_units.
func NewServer(proc *pipeline.Processor, database *db.DB, rec *monitor.Recorder, cfg *config.FeatureConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyFeatureConfig()
	}
	return &Server{
		proc:     proc,
		db:       database,
		recorder: rec,
		cfg:      cfg,
		units:    cfg.GetSpeedUnits(),
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/features/latest", s.showLatest)
	mux.HandleFunc("/api/features", s.listFeatures)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}/stats", s.showSessionStats)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/reset", s.resetFilters)
	mux.HandleFunc("/charts/features", s.showCharts)
	return mux
}

// resultAPI is a pipeline.Result with v_ego in the configured units.
type resultAPI struct {
	pipeline.Result
	VEgo  float64 `json:"v_ego"`
	Units string  `json:"units"`
}

func (s *Server) toAPI(r pipeline.Result) resultAPI {
	return resultAPI{Result: r, VEgo: units.ConvertSpeed(r.VEgo, s.units), Units: s.units}
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	latest, ok := s.proc.Latest()
	if !ok {
		httputil.NotFound(w, "no frames processed yet")
		return
	}
	httputil.WriteJSONOK(w, s.toAPI(latest))
}

func (s *Server) listFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "feature log is not enabled")
		return
	}

	limit := defaultFeatureLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxFeatureLimit {
			httputil.BadRequest(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxFeatureLimit))
			return
		}
		limit = parsed
	}

	records, err := s.db.RecentFeatures(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve features: %v", err))
		return
	}
	for i := range records {
		records[i].VEgo = units.ConvertSpeed(records[i].VEgo, s.units)
	}
	if records == nil {
		records = []db.FeatureRecord{}
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "feature log is not enabled")
		return
	}
	sessions, err := s.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showSessionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "feature log is not enabled")
		return
	}

	id := r.PathValue("id")
	if id == "current" {
		id = s.proc.SessionID()
	}
	stats, err := s.db.SessionStats(id)
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve session stats: %v", err))
		return
	}
	stats.MeanSpeed = units.ConvertPtr(stats.MeanSpeed, s.units)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"stats": stats,
		"units": s.units,
	})
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session_id": s.proc.SessionID(),
		"counters":   s.proc.Stats(),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"units":                   s.units,
		"moving_average_window":   s.cfg.GetMovingAverageWindow(),
		"smooth_lateral_distance": s.cfg.GetSmoothLateralDistance(),
		"smooth_curvature":        s.cfg.GetSmoothCurvature(),
		"reset_on_gap":            s.cfg.GetResetOnGap().String(),
		"min_ego_speed_mps":       s.cfg.GetMinEgoSpeedMPS(),
	})
}

func (s *Server) resetFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.proc.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "filters reset"})
}

func (s *Server) showCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.recorder == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "result history is not enabled")
		return
	}

	var buf bytes.Buffer
	if err := monitor.RenderHTML(&buf, s.recorder.Snapshot()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
