// Package framesource delivers raw frame payloads to the pipeline from files,
// a serial link, or a packet capture.
package framesource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// Source streams raw frame payloads. Stream calls emit once per payload, in
// arrival order, and returns when the input is exhausted (nil), ctx is done,
// or emit returns an error.
type Source interface {
	Stream(ctx context.Context, emit func([]byte) error) error
}

// maxLineBytes bounds a single JSON frame.
const maxLineBytes = 4 * 1024 * 1024

// ReaderSource reads newline-delimited JSON frames from an io.Reader.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource wraps r. Blank lines are skipped.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

func (s *ReaderSource) Stream(ctx context.Context, emit func([]byte) error) error {
	scan := bufio.NewScanner(s.r)
	scan.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scan.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scan.Bytes())
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer, so hand out a copy.
		if err := emit(append([]byte(nil), line...)); err != nil {
			return err
		}
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	return nil
}

// OpenFile returns a ReaderSource over path, or stdin when path is "-". The
// returned closer is a no-op for stdin.
func OpenFile(path string) (*ReaderSource, io.Closer, error) {
	if path == "-" {
		return NewReaderSource(os.Stdin), io.NopCloser(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	return NewReaderSource(f), f, nil
}
