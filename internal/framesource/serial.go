package framesource

import (
	"context"

	"github.com/banshee-data/lanefeatures/internal/serialmux"
)

// SerialSource emits each line arriving on a serial mux as one frame.
type SerialSource struct {
	mux serialmux.SerialMuxInterface
}

// NewSerialSource reads frames from mux. Stream runs the mux's Monitor loop,
// so nothing else should call Monitor on the same mux.
func NewSerialSource(mux serialmux.SerialMuxInterface) *SerialSource {
	return &SerialSource{mux: mux}
}

func (s *SerialSource) Stream(ctx context.Context, emit func([]byte) error) error {
	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitorErr := make(chan error, 1)
	go func() { monitorErr <- s.mux.Monitor(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-monitorErr:
			// The port is done; flush whatever was already delivered.
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						return err
					}
					if emitErr := emit([]byte(line)); emitErr != nil {
						return emitErr
					}
				default:
					return err
				}
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := emit([]byte(line)); err != nil {
				return err
			}
		}
	}
}
