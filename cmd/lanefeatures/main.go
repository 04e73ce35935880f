// Command lanefeatures reads perception frames from a file, a serial port or
// a packet capture, computes smoothed lateral distance and road curvature for
// each, and writes one JSON result per line to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lanefeatures/internal/api"
	"github.com/banshee-data/lanefeatures/internal/config"
	"github.com/banshee-data/lanefeatures/internal/db"
	"github.com/banshee-data/lanefeatures/internal/framesource"
	"github.com/banshee-data/lanefeatures/internal/monitor"
	"github.com/banshee-data/lanefeatures/internal/monitoring"
	"github.com/banshee-data/lanefeatures/internal/pipeline"
	"github.com/banshee-data/lanefeatures/internal/serialmux"
	"github.com/banshee-data/lanefeatures/internal/version"
)

type options struct {
	configPath  string
	input       string
	serialPort  string
	pcapPath    string
	realtime    bool
	dbPath      string
	listen      string
	plotDir     string
	history     int
	format      string
	quiet       bool
	debug       bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("lanefeatures", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to a feature config JSON file (defaults are used when empty)")
	fs.StringVar(&o.input, "input", "", "Read JSON-lines frames from this file ('-' for stdin)")
	fs.StringVar(&o.serialPort, "serial", "", "Read JSON-lines frames from this serial port")
	fs.StringVar(&o.pcapPath, "pcap", "", "Replay frames sent as UDP payloads in this pcap/pcapng file")
	fs.BoolVar(&o.realtime, "realtime", false, "Replay -pcap at capture speed instead of as fast as possible")
	fs.StringVar(&o.dbPath, "db", "", "Record every result to this SQLite file")
	fs.StringVar(&o.listen, "listen", "", "Serve the HTTP API on this address (e.g. :8080)")
	fs.StringVar(&o.plotDir, "plot", "", "Write PNG plots of the run into this directory on exit")
	fs.IntVar(&o.history, "history", monitor.DefaultHistory, "Number of recent results kept for charts and plots")
	fs.StringVar(&o.format, "format", "json", "Result encoding on stdout: json (one object per line) or protodelim (length-delimited google.protobuf.Struct)")
	fs.BoolVar(&o.quiet, "quiet", false, "Do not write results to stdout")
	fs.BoolVar(&o.debug, "debug", false, "Log per-frame estimator rejections")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.showVersion {
		return o, nil
	}

	sources := 0
	for _, s := range []string{o.input, o.serialPort, o.pcapPath} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return o, errors.New("exactly one of -input, -serial or -pcap is required")
	}
	if o.realtime && o.pcapPath == "" {
		return o, errors.New("-realtime only applies to -pcap")
	}
	if o.format != "json" && o.format != "protodelim" {
		return o, fmt.Errorf("unknown -format %q (want json or protodelim)", o.format)
	}
	return o, nil
}

func loadConfig(path string) (*config.FeatureConfig, error) {
	if path == "" {
		return config.EmptyFeatureConfig(), nil
	}
	return config.LoadFeatureConfig(path)
}

// openSource returns the frame source for o along with a description for
// the session log. cleanup must be called once the source is drained.
func openSource(o options, cfg *config.FeatureConfig) (framesource.Source, string, serialmux.SerialMuxInterface, func(), error) {
	switch {
	case o.input != "":
		rs, closer, err := framesource.OpenFile(o.input)
		if err != nil {
			return nil, "", nil, nil, err
		}
		return rs, "file:" + o.input, nil, func() { closer.Close() }, nil

	case o.serialPort != "":
		m, err := serialmux.NewRealSerialMux(o.serialPort, serialmux.OptionsFromConfig(cfg))
		if err != nil {
			return nil, "", nil, nil, fmt.Errorf("failed to open serial port: %w", err)
		}
		return framesource.NewSerialSource(m), "serial:" + o.serialPort, m, func() { m.Close() }, nil

	default:
		return framesource.NewPCAPSource(o.pcapPath, cfg.GetUDPPort(), o.realtime), "pcap:" + o.pcapPath, nil, func() {}, nil
	}
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	monitoring.SetDebug(o.debug)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	proc, err := pipeline.NewProcessor(cfg, nil)
	if err != nil {
		return err
	}

	src, desc, serialMux, cleanup, err := openSource(o, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	recorder := monitor.NewRecorder(o.history)
	sinks := []pipeline.Sink{recorder.Record}
	switch {
	case o.quiet:
	case o.format == "protodelim":
		sinks = append(sinks, pipeline.ProtoDelimSink(stdout))
	default:
		sinks = append(sinks, pipeline.JSONLinesSink(stdout))
	}

	var database *db.DB
	if o.dbPath != "" {
		database, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open feature log: %w", err)
		}
		defer database.Close()

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := database.RecordSession(proc.SessionID(), desc, string(cfgJSON)); err != nil {
			return err
		}
		sinks = append(sinks, database.RecordResult)
	}

	monitoring.Logf("lanefeatures %s: session %s reading %s", version.String(), proc.SessionID(), desc)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	if o.listen != "" {
		mux := api.NewServer(proc, database, recorder, cfg).ServeMux()
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				return err
			}
		}
		if serialMux != nil {
			serialMux.AttachAdminRoutes(mux)
		}

		ln, err := net.Listen("tcp", o.listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", o.listen, err)
		}
		server := &http.Server{
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				monitoring.Logf("HTTP server shutdown error: %v", err)
			}
		}()
		go func() {
			monitoring.Logf("HTTP API listening on %s", ln.Addr())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("HTTP server error: %w", err)
				cancel()
			}
		}()
	}

	runErr := pipeline.Run(ctx, src, proc, cfg.GetStatsInterval(), sinks...)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	s := proc.Stats()
	monitoring.Logf("processed %d frames (%d decode errors, %d lateral errors, %d curvature errors, %d low-speed skips, %d resets)",
		s.Frames, s.DecodeErrors, s.LateralErrors, s.CurvatureErrors, s.LowSpeedSkips, s.FilterResets)

	if o.plotDir != "" {
		if _, err := monitor.PlotSeries(recorder.Snapshot(), o.plotDir); err != nil && !errors.Is(err, monitor.ErrNoResults) {
			monitoring.Logf("failed to write plots: %v", err)
		}
	}

	if o.listen != "" && runErr == nil && ctx.Err() == nil {
		monitoring.Logf("input exhausted; API stays up until interrupted")
		<-ctx.Done()
	}
	cancel()
	wg.Wait()

	select {
	case err := <-serveErr:
		if runErr == nil {
			runErr = err
		}
	default:
	}
	return runErr
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if o.showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("lanefeatures: %v", err)
	}
}
