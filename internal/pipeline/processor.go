package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lanefeatures/internal/config"
	"github.com/banshee-data/lanefeatures/internal/features"
	"github.com/banshee-data/lanefeatures/internal/filter"
	"github.com/banshee-data/lanefeatures/internal/monitoring"
	"github.com/banshee-data/lanefeatures/internal/timeutil"
)

// Stats counts what the processor has seen since it was created.
type Stats struct {
	Frames          uint64 `json:"frames"`
	DecodeErrors    uint64 `json:"decode_errors"`
	LateralErrors   uint64 `json:"lateral_errors"`
	CurvatureErrors uint64 `json:"curvature_errors"`
	LowSpeedSkips   uint64 `json:"low_speed_skips"`
	FilterResets    uint64 `json:"filter_resets"`
}

// Processor computes features for a stream of frames from one vehicle. The
// filters inside are single-writer, so every method takes mu.
type Processor struct {
	mu sync.Mutex

	clock       timeutil.Clock
	sessionID   string
	minEgoSpeed float64
	resetOnGap  time.Duration

	lateral   *filter.MovingAverage // nil when smoothing is off
	curvature *filter.MovingAverage

	seq    uint64
	lastTS time.Time
	latest *Result
	stats  Stats
}

// NewProcessor builds a Processor from cfg. A nil clock uses the real clock.
func NewProcessor(cfg *config.FeatureConfig, clock timeutil.Clock) (*Processor, error) {
	if cfg == nil {
		cfg = config.EmptyFeatureConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	p := &Processor{
		clock:       clock,
		sessionID:   uuid.NewString(),
		minEgoSpeed: cfg.GetMinEgoSpeedMPS(),
		resetOnGap:  cfg.GetResetOnGap(),
	}

	window := cfg.GetMovingAverageWindow()
	var err error
	if cfg.GetSmoothLateralDistance() {
		if p.lateral, err = filter.New(window); err != nil {
			return nil, err
		}
	}
	if cfg.GetSmoothCurvature() {
		if p.curvature, err = filter.New(window); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SessionID identifies this processor's run in stored results.
func (p *Processor) SessionID() string {
	return p.sessionID
}

// Process computes the features for f and feeds accepted values into their
// filters.
func (p *Processor) Process(f Frame) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = p.clock.Now()
	}

	p.seq++
	p.stats.Frames++
	res := Result{
		FrameID:   f.ID,
		SessionID: p.sessionID,
		Seq:       p.seq,
		Timestamp: f.Timestamp,
		VEgo:      f.VEgo,
	}

	if p.gapExceeded(f.Timestamp) {
		p.resetLocked()
		p.stats.FilterResets++
		res.FiltersReset = true
		monitoring.Logf("frame %s: %v gap since previous frame, filters reset", f.ID, f.Timestamp.Sub(p.lastTS))
	}
	p.lastTS = f.Timestamp

	if b, err := features.LateralDistances(f.ReferenceLane, f.CurrentLane, f.RoadEdge); err != nil {
		p.stats.LateralErrors++
		res.LateralErr = err.Error()
		monitoring.Debugf("frame %s: %v", f.ID, err)
	} else {
		res.Lateral = &b
		res.SmoothedLateral = smooth(p.lateral, b.Distance)
	}

	if p.minEgoSpeed > 0 && f.VEgo < p.minEgoSpeed {
		p.stats.LowSpeedSkips++
		res.CurvatureErr = fmt.Sprintf("skipped: v_ego %.3f m/s below minimum %.3f m/s", f.VEgo, p.minEgoSpeed)
	} else if k, err := features.RoadCurvature(f.YawRates, f.Velocities, f.VEgo); err != nil {
		p.stats.CurvatureErrors++
		res.CurvatureErr = err.Error()
		monitoring.Debugf("frame %s: %v", f.ID, err)
	} else {
		res.Curvature = &k
		res.SmoothedCurvature = smooth(p.curvature, k)
	}

	latest := res
	p.latest = &latest
	return res
}

func smooth(m *filter.MovingAverage, v float64) *float64 {
	if m == nil {
		return nil
	}
	m.Add(v)
	avg, ok := m.Average()
	if !ok {
		return nil
	}
	return &avg
}

// gapExceeded reports whether ts is too far from the previous frame for the
// filter contents to still describe the same stretch of road. Time running
// backwards (a replay restarting) also counts.
func (p *Processor) gapExceeded(ts time.Time) bool {
	if p.resetOnGap <= 0 || p.lastTS.IsZero() {
		return false
	}
	gap := ts.Sub(p.lastTS)
	return gap > p.resetOnGap || gap < 0
}

// Reset empties both filters and forgets the previous timestamp.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	p.lastTS = time.Time{}
}

func (p *Processor) resetLocked() {
	if p.lateral != nil {
		p.lateral.Reset()
	}
	if p.curvature != nil {
		p.curvature.Reset()
	}
}

// Latest returns the most recent result, if any frame has been processed.
func (p *Processor) Latest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Result{}, false
	}
	return *p.latest, true
}

// Stats returns a snapshot of the processor counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Processor) noteDecodeError() {
	p.mu.Lock()
	p.stats.DecodeErrors++
	p.mu.Unlock()
}
