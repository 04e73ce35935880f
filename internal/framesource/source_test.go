package framesource

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanefeatures/internal/serialmux"
)

func collect(t *testing.T, src Source) ([]string, error) {
	t.Helper()
	var got []string
	err := src.Stream(context.Background(), func(b []byte) error {
		got = append(got, string(b))
		return nil
	})
	return got, err
}

func TestReaderSourceSkipsBlankLines(t *testing.T) {
	src := NewReaderSource(strings.NewReader("{\"id\":\"1\"}\n\n   \n{\"id\":\"2\"}\r\n{\"id\":\"3\"}"))
	got, err := collect(t, src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"id":"1"}`, `{"id":"2"}`, `{"id":"3"}`}, got)
}

func TestReaderSourceStopsOnEmitError(t *testing.T) {
	src := NewReaderSource(strings.NewReader("a\nb\nc\n"))
	stop := errors.New("stop")
	var n int
	err := src.Stream(context.Background(), func([]byte) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, n)
}

func TestReaderSourceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewReaderSource(strings.NewReader("a\n")).Stream(ctx, func([]byte) error {
		t.Fatal("emit called after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("x\ny\n"), 0644))

	src, closer, err := OpenFile(path)
	require.NoError(t, err)
	defer closer.Close()

	got, err := collect(t, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)

	_, _, err = OpenFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestSerialSourceEmitsLinesUntilEOF(t *testing.T) {
	port := serialmux.NewMockSerialPort()
	mux := serialmux.NewSerialMux(port)
	defer mux.Close()

	go func() {
		// Feed blocks until Stream has started Monitor, which it does only
		// after subscribing.
		port.Feed([]byte("one\ntwo\nthree\n"))
		port.EndInput()
	}()

	got, err := collect(t, NewSerialSource(mux))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func writeCapture(t *testing.T, payloads map[int][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Emit in a fixed port order so the expected sequence is deterministic.
	for _, port := range []int{7000, 9999} {
		for _, p := range payloads[port] {
			eth := &layers.Ethernet{
				SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
				DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
				EthernetType: layers.EthernetTypeIPv4,
			}
			ip := &layers.IPv4{
				Version:  4,
				TTL:      64,
				Protocol: layers.IPProtocolUDP,
				SrcIP:    net.IPv4(192, 168, 1, 10),
				DstIP:    net.IPv4(192, 168, 1, 20),
			}
			udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(port)}
			require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

			buf := gopacket.NewSerializeBuffer()
			opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
			require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte(p))))

			data := buf.Bytes()
			ts = ts.Add(50 * time.Millisecond)
			require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
				Timestamp:     ts,
				CaptureLength: len(data),
				Length:        len(data),
			}, data))
		}
	}
	return path
}

func TestPCAPSourceFiltersByPort(t *testing.T) {
	path := writeCapture(t, map[int][]string{
		7000: {`{"id":"f1"}`, `{"id":"f2"}`},
		9999: {`{"id":"other"}`},
	})

	got, err := collect(t, NewPCAPSource(path, 7000, false))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"id":"f1"}`, `{"id":"f2"}`}, got)
}

func TestPCAPSourceRealtimePacing(t *testing.T) {
	path := writeCapture(t, map[int][]string{7000: {"a", "b", "c"}})

	start := time.Now()
	got, err := collect(t, NewPCAPSource(path, 7000, true))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	// Two 50ms gaps between three packets.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestPCAPSourceErrors(t *testing.T) {
	_, err := collect(t, NewPCAPSource(filepath.Join(t.TempDir(), "missing.pcap"), 7000, false))
	assert.ErrorContains(t, err, "failed to open PCAP file")

	junk := filepath.Join(t.TempDir(), "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not a capture"), 0644))
	_, err = collect(t, NewPCAPSource(junk, 7000, false))
	assert.ErrorContains(t, err, "failed to read PCAP file")
}
