// Package monitor keeps a rolling window of pipeline results and renders it
// as PNG time-series plots or an interactive HTML chart page.
package monitor

import (
	"sync"

	"github.com/banshee-data/lanefeatures/internal/pipeline"
)

// DefaultHistory is how many results a Recorder keeps when none is given.
const DefaultHistory = 3000

// Recorder is a bounded result history. Once full, the oldest result is
// overwritten.
type Recorder struct {
	mu    sync.Mutex
	buf   []pipeline.Result
	head  int
	count int
}

// NewRecorder keeps up to capacity results. A non-positive capacity uses
// DefaultHistory.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Recorder{buf: make([]pipeline.Result, capacity)}
}

// Record appends r. It never fails, and has the pipeline.Sink signature.
func (rec *Recorder) Record(r pipeline.Result) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.buf[rec.head] = r
	rec.head = (rec.head + 1) % len(rec.buf)
	if rec.count < len(rec.buf) {
		rec.count++
	}
	return nil
}

// Snapshot returns the held results, oldest first.
func (rec *Recorder) Snapshot() []pipeline.Result {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := make([]pipeline.Result, 0, rec.count)
	start := (rec.head - rec.count + len(rec.buf)) % len(rec.buf)
	for i := 0; i < rec.count; i++ {
		out = append(out, rec.buf[(start+i)%len(rec.buf)])
	}
	return out
}

// Len returns the number of held results.
func (rec *Recorder) Len() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.count
}

// Clear drops all held results.
func (rec *Recorder) Clear() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.head, rec.count = 0, 0
	clear(rec.buf)
}
