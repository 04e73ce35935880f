package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/lanefeatures/internal/db"
	"github.com/banshee-data/lanefeatures/internal/geometry"
	"github.com/banshee-data/lanefeatures/internal/monitoring"
	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"input", []string{"-input", "frames.jsonl"}, ""},
		{"serial", []string{"-serial", "/dev/ttyUSB0", "-db", "f.db"}, ""},
		{"pcap realtime", []string{"-pcap", "drive.pcap", "-realtime"}, ""},
		{"version only", []string{"-version"}, ""},
		{"no source", []string{"-db", "f.db"}, "exactly one of"},
		{"two sources", []string{"-input", "a", "-pcap", "b"}, "exactly one of"},
		{"realtime without pcap", []string{"-input", "a", "-realtime"}, "-realtime only applies"},
		{"protodelim format", []string{"-input", "a", "-format", "protodelim"}, ""},
		{"unknown format", []string{"-input", "a", "-format", "xml"}, "unknown -format"},
		{"stray args", []string{"-input", "a", "extra"}, "unexpected arguments"},
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags([]string{"-input", "-"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "-", o.input)
	assert.Equal(t, 3000, o.history)
	assert.Equal(t, "json", o.format)
	assert.False(t, o.quiet)
	assert.Empty(t, o.listen)
}

func writeFrames(t *testing.T, n int) string {
	t.Helper()
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		f := pipeline.Frame{
			Timestamp:     t0.Add(time.Duration(i) * 50 * time.Millisecond),
			ReferenceLane: geometry.Curve{{X: 0, Y: 2}, {X: 50, Y: 2}},
			CurrentLane:   geometry.Curve{{X: 0, Y: 0}, {X: 50, Y: 0}},
			RoadEdge:      geometry.Curve{{X: 0, Y: -5}, {X: 50, Y: -5}},
			YawRates:      []float64{0.1, 0.2},
			Velocities:    []float64{10, 20},
			VEgo:          10,
		}
		b, err := json.Marshal(f)
		require.NoError(t, err)
		buf.Write(b)
		buf.WriteByte('\n')
	}
	buf.WriteString("not a frame\n")

	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	monitoring.SetLogger(nil)
}

func TestRunFromFile(t *testing.T) {
	muteLogs(t)
	dir := t.TempDir()
	o := options{
		input:   writeFrames(t, 6),
		dbPath:  filepath.Join(dir, "features.db"),
		plotDir: filepath.Join(dir, "plots"),
		history: 100,
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	var last pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(lines[5]), &last))
	require.NotNil(t, last.SmoothedLateral)
	assert.Equal(t, 2.0, *last.SmoothedLateral)
	assert.InDelta(t, 0.04, *last.SmoothedCurvature, 1e-12)

	database, err := db.NewDB(o.dbPath)
	require.NoError(t, err)
	defer database.Close()

	sessions, err := database.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "file:"+o.input, sessions[0].Source)

	stats, err := database.SessionStats(sessions[0].SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Frames)

	for _, name := range []string{"lateral_distance.png", "curvature.png"} {
		_, err := os.Stat(filepath.Join(o.plotDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunProtoDelimOutput(t *testing.T) {
	muteLogs(t)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), options{input: writeFrames(t, 3), format: "protodelim"}, &out))

	r := bufio.NewReader(&out)
	var seqs []float64
	for {
		s := &structpb.Struct{}
		err := protodelim.UnmarshalFrom(r, s)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		seqs = append(seqs, s.Fields["seq"].GetNumberValue())
	}
	assert.Equal(t, []float64{1, 2, 3}, seqs)
}

func TestRunQuietWithConfig(t *testing.T) {
	muteLogs(t)
	cfgPath := filepath.Join(t.TempDir(), "features.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"moving_average_window": 2, "stats_interval": "0s"}`), 0644))

	var out bytes.Buffer
	err := run(context.Background(), options{input: writeFrames(t, 3), configPath: cfgPath, quiet: true}, &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestRunErrors(t *testing.T) {
	muteLogs(t)

	err := run(context.Background(), options{input: filepath.Join(t.TempDir(), "missing.jsonl")}, io.Discard)
	assert.Error(t, err)

	badCfg := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badCfg, []byte(`{"moving_average_window": 0}`), 0644))
	err = run(context.Background(), options{input: writeFrames(t, 1), configPath: badCfg}, io.Discard)
	assert.ErrorContains(t, err, "failed to load config")
}

func TestRunFailsWhenListenAddressInUse(t *testing.T) {
	muteLogs(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	o := options{input: writeFrames(t, 2), listen: ln.Addr().String(), quiet: true}
	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), o, io.Discard)
	}()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "failed to listen on "+ln.Addr().String())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the listener failed")
	}
}
