package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/lanefeatures/internal/framesource"
	"github.com/banshee-data/lanefeatures/internal/monitoring"
)

// Sink receives every Result in order. An error from a sink stops Run.
type Sink func(Result) error

// JSONLinesSink writes each Result as one line of JSON to w.
func JSONLinesSink(w io.Writer) Sink {
	enc := json.NewEncoder(w)
	var mu sync.Mutex
	return func(r Result) error {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		return nil
	}
}

// Run streams payloads from src through p and hands each Result to every
// sink. Payloads that fail to decode are logged and skipped. When
// statsInterval is positive, p's counters are logged on that period.
func Run(ctx context.Context, src framesource.Source, p *Processor, statsInterval time.Duration, sinks ...Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if statsInterval > 0 {
		ticker := p.clock.NewTicker(statsInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer ticker.Stop()
			var lastFrames uint64
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C():
					s := p.Stats()
					monitoring.Logf("pipeline: %d frames (+%d), %d decode errors, %d lateral errors, %d curvature errors, %d low-speed skips, %d resets",
						s.Frames, s.Frames-lastFrames, s.DecodeErrors, s.LateralErrors, s.CurvatureErrors, s.LowSpeedSkips, s.FilterResets)
					lastFrames = s.Frames
				}
			}
		}()
	}

	err := src.Stream(ctx, func(payload []byte) error {
		frame, err := DecodeFrame(payload)
		if err != nil {
			p.noteDecodeError()
			monitoring.Logf("dropping frame: %v", err)
			return nil
		}

		res := p.Process(frame)
		for _, sink := range sinks {
			if err := sink(res); err != nil {
				return err
			}
		}
		return nil
	})

	cancel()
	wg.Wait()
	return err
}
