// Package filter smooths noisy per-frame scalars before they reach control
// logic.
package filter

import "fmt"

// State describes how full a MovingAverage window is.
type State int

const (
	Empty State = iota
	Filling
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Filling:
		return "filling"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MovingAverage is a fixed-window mean over the most recent samples, backed
// by a ring buffer so Add never shifts memory.
//
// A MovingAverage is not safe for concurrent use. Each instance smooths one
// signal and belongs to a single writer.
type MovingAverage struct {
	buf   []float64
	head  int // index of the oldest sample
	count int
	total float64
}

// New returns an empty MovingAverage over the last window samples.
func New(window int) (*MovingAverage, error) {
	if window < 1 {
		return nil, fmt.Errorf("moving average window must be at least 1, got %d", window)
	}
	return &MovingAverage{buf: make([]float64, window)}, nil
}

// Add appends v, evicting the oldest sample once the window is full.
func (m *MovingAverage) Add(v float64) {
	w := len(m.buf)
	if m.count < w {
		m.buf[(m.head+m.count)%w] = v
		m.count++
		m.total += v
		return
	}

	m.total -= m.buf[m.head]
	m.buf[m.head] = v
	m.total += v
	m.head = (m.head + 1) % w
	if m.head == 0 {
		// Re-sum once per full rotation so rounding error from the running
		// subtract/add pairs cannot accumulate without bound.
		m.total = 0
		for _, x := range m.buf {
			m.total += x
		}
	}
}

// Average returns the mean of the samples in the window. ok is false when no
// samples have been added since construction or the last Reset.
func (m *MovingAverage) Average() (avg float64, ok bool) {
	if m.count == 0 {
		return 0, false
	}
	return m.total / float64(m.count), true
}

// Reset empties the window.
func (m *MovingAverage) Reset() {
	m.head = 0
	m.count = 0
	m.total = 0
}

// Len returns the number of samples currently in the window.
func (m *MovingAverage) Len() int { return m.count }

// Window returns the capacity W.
func (m *MovingAverage) Window() int { return len(m.buf) }

// State reports whether the window is empty, filling, or full.
func (m *MovingAverage) State() State {
	switch {
	case m.count == 0:
		return Empty
	case m.count < len(m.buf):
		return Filling
	default:
		return Full
	}
}

// Values returns a copy of the window contents, oldest first.
func (m *MovingAverage) Values() []float64 {
	out := make([]float64, m.count)
	for i := range out {
		out[i] = m.buf[(m.head+i)%len(m.buf)]
	}
	return out
}
