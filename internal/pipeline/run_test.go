package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanefeatures/internal/config"
	"github.com/banshee-data/lanefeatures/internal/framesource"
	"github.com/banshee-data/lanefeatures/internal/geometry"
	"github.com/banshee-data/lanefeatures/internal/monitoring"
)

func frameLine(t *testing.T, f Frame) string {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	return string(b)
}

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(nil)
}

func TestRunDecodesProcessesAndFansOut(t *testing.T) {
	muteLogs(t)
	p, _ := newProcessor(t, nil)

	input := strings.Join([]string{
		frameLine(t, straightFrame(t0, 2, 10)),
		"{not json",
		frameLine(t, straightFrame(t0.Add(50*time.Millisecond), 4, 10)),
	}, "\n")

	var out bytes.Buffer
	var seen []Result
	collect := func(r Result) error {
		seen = append(seen, r)
		return nil
	}

	err := Run(context.Background(), framesource.NewReaderSource(strings.NewReader(input)), p, 0, JSONLinesSink(&out), collect)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, 3.0, *seen[1].SmoothedLateral)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	var decoded Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, 2.0, decoded.Lateral.Distance)
	assert.Equal(t, p.SessionID(), decoded.SessionID)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.DecodeErrors)
}

func TestRunContinuesPastOverflowingFrame(t *testing.T) {
	muteLogs(t)
	p, _ := newProcessor(t, nil)

	huge := straightFrame(t0, 2, 10)
	huge.ReferenceLane = geometry.Curve{{X: 0, Y: -1e308}}
	huge.CurrentLane = geometry.Curve{{X: 0, Y: 1e308}}
	huge.RoadEdge = geometry.Curve{{X: 0, Y: -1e308}}

	input := frameLine(t, huge) + "\n" + frameLine(t, straightFrame(t0.Add(50*time.Millisecond), 2, 10))

	var out bytes.Buffer
	err := Run(context.Background(), framesource.NewReaderSource(strings.NewReader(input)), p, 0, JSONLinesSink(&out))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first, second Result
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Nil(t, first.Lateral)
	assert.Contains(t, first.LateralErr, "non-finite")
	require.NotNil(t, second.SmoothedLateral)
	assert.Equal(t, 2.0, *second.SmoothedLateral)
	assert.Equal(t, uint64(1), p.Stats().LateralErrors)
}

func TestRunStopsOnSinkError(t *testing.T) {
	muteLogs(t)
	p, _ := newProcessor(t, nil)

	input := frameLine(t, straightFrame(t0, 1, 10)) + "\n" + frameLine(t, straightFrame(t0, 1, 10))
	boom := errors.New("disk full")
	var calls int
	err := Run(context.Background(), framesource.NewReaderSource(strings.NewReader(input)), p, 0, func(Result) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

// sourceFunc adapts a function to framesource.Source.
type sourceFunc func(ctx context.Context, emit func([]byte) error) error

func (f sourceFunc) Stream(ctx context.Context, emit func([]byte) error) error { return f(ctx, emit) }

func TestRunLogsStatsOnInterval(t *testing.T) {
	logs := make(chan string, 16)
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(func(format string, v ...interface{}) {
		select {
		case logs <- fmt.Sprintf(format, v...):
		default:
		}
	})

	p, clock := newProcessor(t, &config.FeatureConfig{StatsInterval: ptr("10s")})
	line := []byte(frameLine(t, straightFrame(t0, 1, 10)))

	src := sourceFunc(func(ctx context.Context, emit func([]byte) error) error {
		if err := emit(line); err != nil {
			return err
		}
		clock.Advance(10 * time.Second)
		for {
			select {
			case msg := <-logs:
				if strings.HasPrefix(msg, "pipeline: 1 frames") {
					return nil
				}
			case <-time.After(2 * time.Second):
				return errors.New("no stats line logged")
			}
		}
	})

	require.NoError(t, Run(context.Background(), src, p, 10*time.Second))
}

func TestRunReturnsContextError(t *testing.T) {
	muteLogs(t)
	p, _ := newProcessor(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, framesource.NewReaderSource(strings.NewReader("{}\n")), p, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
