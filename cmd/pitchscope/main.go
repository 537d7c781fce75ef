// Command pitchscope runs the pitch analyzer over a WAV file or a raw PCM
// stream and serves the render frames over a websocket.
//
// Usage:
//
//	pitchscope [flags]
//
// Examples:
//
//	pitchscope -file song.wav -addr :8080
//	arecord -f FLOAT_LE -c 2 -r 48000 -t raw | pitchscope -stdin -channels 2 -rate 48000
//	pitchscope -config analyzer.yaml -file scale.wav -duration 10s -log-level debug
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilomelo/audio-analysis/config"
	"github.com/kilomelo/audio-analysis/logging"
	"github.com/kilomelo/audio-analysis/pipeline"
	"github.com/kilomelo/audio-analysis/render"
	"github.com/kilomelo/audio-analysis/source"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults when empty)")
	filePath := flag.String("file", "", "WAV file to play back")
	useStdin := flag.Bool("stdin", false, "read interleaved float32 little-endian PCM from stdin")
	channels := flag.Int("channels", 1, "channel count of the stdin stream")
	rate := flag.Int("rate", 0, "sample rate of the stdin stream (config default when 0)")
	loop := flag.Bool("loop", true, "loop file playback")
	addr := flag.String("addr", "", "websocket listen address, overrides server.addr")
	logLevel := flag.String("log-level", "", "log level, overrides log.level")
	duration := flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	noColor := flag.Bool("no-color", false, "disable colored log output")
	flag.Parse()

	if *noColor {
		logging.DisableColors()
	}

	if err := run(options{
		configPath: *configPath,
		filePath:   *filePath,
		useStdin:   *useStdin,
		channels:   *channels,
		rate:       *rate,
		loop:       *loop,
		addr:       *addr,
		logLevel:   *logLevel,
		duration:   *duration,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "pitchscope: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	filePath   string
	useStdin   bool
	channels   int
	rate       int
	loop       bool
	addr       string
	logLevel   string
	duration   time.Duration
}

func run(opts options) error {
	if (opts.filePath == "") == !opts.useStdin {
		return errors.New("exactly one of -file and -stdin is required")
	}

	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.SetLevel(level)
	logger := logging.WithFields(logging.Fields{"component": "main"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	broadcaster, err := source.NewBroadcaster(cfg.BaseParams())
	if err != nil {
		return err
	}

	var (
		src      source.Source
		producer func(context.Context) error
	)
	if opts.filePath != "" {
		fs := source.NewFileSource(broadcaster)
		if err := fs.LoadFile(opts.filePath); err != nil {
			return err
		}
		fs.SetLoop(opts.loop)
		src = fs
		producer = func(ctx context.Context) error {
			if err := fs.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			fs.Stop()
			return nil
		}
	} else {
		ss := source.NewStreamSource(broadcaster)
		if opts.rate > 0 && opts.rate != broadcaster.Params().SampleRate {
			if err := ss.DeviceChanged(opts.rate); err != nil {
				return err
			}
		}
		src = ss
		producer = func(ctx context.Context) error {
			if err := readPCM(ctx, os.Stdin, ss, opts.channels); err != nil {
				return err
			}
			logging.Info("input stream ended")
			stop()
			return nil
		}
	}
	defer src.Close()

	p, err := pipeline.New(cfg, src)
	if err != nil {
		return err
	}
	broadcaster.AddListener(p)

	hub := render.NewHub(p)
	console := newConsoleSink(logger)
	sink := console.Sink
	var server *http.Server
	if cfg.Server.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Server.Path, hub)
		server = &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		sink = func(f *pipeline.RenderFrame) {
			hub.Sink(f)
			console.Sink(f)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	launch := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	launch("compute", func() error { return p.Run(ctx) })
	launch("render", func() error { return p.RenderLoop(ctx, cfg.RenderInterval(), sink) })
	launch("source", func() error { return producer(ctx) })
	if server != nil {
		launch("server", func() error {
			logger.Info("serving render frames", logging.Fields{
				"addr": cfg.Server.Addr,
				"path": cfg.Server.Path,
			})
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	select {
	case <-ctx.Done():
	case err = <-errs:
		logger.Error(err, "component failed, shutting down")
	}
	stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		server.Shutdown(shutdownCtx)
		cancel()
	}
	if opts.useStdin {
		// the stdin reader may be blocked in Read
		os.Stdin.Close()
	}
	wg.Wait()

	sent, dropped, commands := hub.Stats()
	logger.Info("stopped", logging.Fields{
		"frames_sent":     sent,
		"clients_dropped": dropped,
		"commands":        commands,
		"melody_points":   p.Melody().Tracker().Len(),
	})
	return err
}

// readPCM feeds chunk-sized buffers of interleaved float32 samples to the
// stream source until EOF or cancellation.
func readPCM(ctx context.Context, r io.Reader, ss *source.StreamSource, channels int) error {
	if channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", channels)
	}
	br := bufio.NewReader(r)

	for ctx.Err() == nil {
		frames := ss.Params().ChunkSize
		raw := make([]byte, 4*frames*channels)
		n, err := io.ReadFull(br, raw)
		n -= n % (4 * channels)
		if n > 0 {
			samples := make([]float32, n/4)
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
			}
			if pushErr := ss.Push(samples, channels); pushErr != nil {
				return pushErr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}
