package framesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/lanefeatures/internal/monitoring"
)

// PCAPSource replays frames captured as UDP datagrams. Each UDP payload sent
// to Port is one JSON frame.
type PCAPSource struct {
	Path string
	Port int

	// Realtime paces emission by the gaps between capture timestamps instead
	// of replaying as fast as possible.
	Realtime bool
}

// NewPCAPSource replays UDP payloads for port from the capture at path.
func NewPCAPSource(path string, port int, realtime bool) *PCAPSource {
	return &PCAPSource{Path: path, Port: port, Realtime: realtime}
}

type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// openCapture accepts both classic pcap and pcapng files.
func openCapture(f *os.File) (packetReader, error) {
	r, err := pcapgo.NewReader(f)
	if err == nil {
		return r, nil
	}
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return nil, fmt.Errorf("failed to rewind capture: %w", seekErr)
	}
	ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, fmt.Errorf("not a pcap or pcapng file: %v / %w", err, ngErr)
	}
	return ng, nil
}

func (s *PCAPSource) Stream(ctx context.Context, emit func([]byte) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", s.Path, err)
	}
	defer f.Close()

	reader, err := openCapture(f)
	if err != nil {
		return fmt.Errorf("failed to read PCAP file %s: %w", s.Path, err)
	}

	packets := gopacket.NewPacketSource(reader, reader.LinkType())
	var packetCount, frameCount int
	var lastCapture time.Time
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("PCAP replay stopping due to context cancellation (processed %d packets)", packetCount)
			return err
		}

		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP replay complete: %d packets, %d frames in %v", packetCount, frameCount, time.Since(start))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet %d: %w", packetCount+1, err)
		}
		packetCount++

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || int(udp.DstPort) != s.Port || len(udp.Payload) == 0 {
			continue
		}

		captured := packet.Metadata().Timestamp
		if s.Realtime && !lastCapture.IsZero() {
			if err := sleepCtx(ctx, captured.Sub(lastCapture)); err != nil {
				return err
			}
		}
		lastCapture = captured

		frameCount++
		if err := emit(append([]byte(nil), udp.Payload...)); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
