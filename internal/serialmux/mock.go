package serialmux

import (
	"bytes"
	"io"
	"sync"
)

// MockSerialPort is an in-memory SerialPorter. Bytes passed to Feed become
// readable by the mux; EndInput delivers EOF. Writes are captured.
type MockSerialPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

// NewMockSerialPort returns an open MockSerialPort.
func NewMockSerialPort() *MockSerialPort {
	r, w := io.Pipe()
	return &MockSerialPort{r: r, w: w}
}

// Feed makes data readable from the port. It blocks until the mux reads it.
func (m *MockSerialPort) Feed(data []byte) error {
	_, err := m.w.Write(data)
	return err
}

// EndInput signals EOF to the reader.
func (m *MockSerialPort) EndInput() error {
	return m.w.Close()
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	return m.r.Read(p)
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.written.Write(p)
}

// Close closes both ends of the pipe.
func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.w.Close()
	return m.r.Close()
}

// Closed reports whether Close was called.
func (m *MockSerialPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockOpener returns a SerialPortOpener that hands out port and records the
// path and options it was called with.
func MockOpener(port SerialPorter, gotPath *string, gotOpts *PortOptions) SerialPortOpener {
	return func(path string, opts PortOptions) (SerialPorter, error) {
		if gotPath != nil {
			*gotPath = path
		}
		if gotOpts != nil {
			*gotOpts = opts
		}
		return port, nil
	}
}
