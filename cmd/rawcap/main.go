package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cjeanneret/RawCapture/internal/config"
	"github.com/cjeanneret/RawCapture/internal/debug"
	"github.com/cjeanneret/RawCapture/internal/hw/button"
	"github.com/cjeanneret/RawCapture/internal/hw/camera"
	"github.com/cjeanneret/RawCapture/internal/hw/gpio"
	"github.com/cjeanneret/RawCapture/internal/logic/capture"
	"github.com/cjeanneret/RawCapture/internal/logic/photo"
	"github.com/cjeanneret/RawCapture/internal/logic/share"
	"github.com/cjeanneret/RawCapture/internal/metrics"
	"github.com/cjeanneret/RawCapture/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	documentsDir := flag.String("documents", "", "override the directory DNG files are written to")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, options{cfgPath: *cfgPath, documentsDir: *documentsDir, webPort: webPort.port()})
	cancel()
	if err != nil {
		log.Fatal(err)
	}
}

type options struct {
	cfgPath      string
	documentsDir string
	webPort      int // 0 disables the web UI
}

// run releases every resource it opens before returning.
func run(ctx context.Context, opts options) error {
	// Load configuration
	cfg, err := config.Load(opts.cfgPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	applyOverrides(cfg, opts.documentsDir)

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	defer debug.Sync()
	debug.Section("Initialization")
	debug.Value("Config path", opts.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Documents", cfg.Storage.DocumentsDir)

	var broadcaster *web.StatusBroadcaster
	if opts.webPort > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO failed: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize camera
	debug.Step(2, "Initializing camera")
	provider, err := newProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init camera failed: %w", err)
	}
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Camera config", cfg.Camera)

	excluded, err := share.ParseActivities(cfg.Share.Excluded)
	if err != nil {
		return fmt.Errorf("share config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	debug.Step(3, "Starting capture session")
	var (
		display   capture.Display = logDisplay{}
		presenter share.Presenter = share.LogPresenter{}
		telemetry *web.TelemetryPanel
	)
	if broadcaster != nil {
		telemetry = web.NewTelemetryPanel(broadcaster)
		display = telemetry
		presenter = web.NewSharePresenter(broadcaster)
	}
	shares := share.NewRegistry()
	sheet := share.NewSheet(shares, presenter, excluded)
	ctrl := capture.NewController(provider, display, photo.NewStore(cfg.Storage.DocumentsDir), sheet,
		capture.WithRecorder(recorder),
		capture.WithPreviewSize(cfg.Preview.Width, cfg.Preview.Height))
	if err := ctrl.Activate(); err != nil {
		// Without a camera there is nothing this program can do.
		return fmt.Errorf("activate capture session: %w", err)
	}
	defer func() {
		if err := ctrl.Teardown(); err != nil {
			log.Printf("teardown failed: %v", err)
		}
	}()

	var handlers *web.Handlers
	if opts.webPort > 0 {
		handlers = web.NewHandlers(broadcaster, ctrl.Capture, ctrl.Preview, telemetry, shares,
			web.FormConfig{
				Device:          cfg.Camera.Type,
				RawFormats:      cfg.Camera.RawFormats,
				ShareActivities: sheet.Activities(),
				PreviewWidth:    cfg.Preview.Width,
				PreviewHeight:   cfg.Preview.Height,
			}, web.StaticFS())
	}

	if cfg.Button.Pin > 0 {
		debug.Step(4, "Watching capture button")
		btn, err := button.New(gpioDriver, button.Config{
			Pin:          cfg.Button.Pin,
			PollInterval: cfg.ButtonPoll(),
			Debounce:     cfg.ButtonDebounce(),
		})
		if err != nil {
			return fmt.Errorf("init button failed: %w", err)
		}
		var onSubmit func(*capture.Request)
		if handlers != nil {
			onSubmit = handlers.TrackCapture
		}
		btnCtx, stopButton := context.WithCancel(ctx)
		btnDone := make(chan struct{})
		defer func() {
			stopButton()
			<-btnDone
		}()
		go func() {
			defer close(btnDone)
			err := btn.Run(btnCtx, func() { pressCapture(btnCtx, ctrl, onSubmit) })
			if err != nil && !errors.Is(err, context.Canceled) {
				debug.Error(fmt.Errorf("button: %w", err))
			}
		}()
	}

	if handlers != nil {
		srv := web.NewServer(fmt.Sprintf(":%d", opts.webPort), handlers, registry)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	}

	if cfg.Button.Pin > 0 {
		debug.Info("Waiting for button presses, Ctrl-C to quit")
		<-ctx.Done()
		return nil
	}

	// No UI: take a single photo with the current settings.
	path, err := captureOnce(ctx, ctrl)
	if err != nil {
		log.Printf("capture failed: %v", err)
		return nil
	}
	debug.Summary("Capture complete")
	debug.Value("File", path)
	return nil
}

// pressCapture is the button handler. Presses while a capture is in flight are
// dropped. onSubmit, if set, receives each submitted request.
func pressCapture(ctx context.Context, ctrl *capture.Controller, onSubmit func(*capture.Request)) {
	req, err := ctrl.Capture(ctx)
	switch {
	case errors.Is(err, capture.ErrCaptureInFlight):
		return
	case err != nil:
		debug.Error(err)
	case req != nil:
		debug.Live("Capture %s submitted", req.ID)
		if onSubmit != nil {
			onSubmit(req)
		}
	}
}

// captureOnce runs one capture to completion and returns the written file.
func captureOnce(ctx context.Context, ctrl *capture.Controller) (string, error) {
	req, err := ctrl.Capture(ctx)
	if err != nil {
		return "", err
	}
	if req == nil {
		return "", errors.New("camera offers no RAW format")
	}
	select {
	case <-req.Done():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err := req.Err(); err != nil {
		// The file may exist even if sharing failed.
		return req.Path(), err
	}
	return req.Path(), nil
}

// applyOverrides mutates cfg with CLI overrides. Empty values are ignored.
func applyOverrides(cfg *config.Config, documentsDir string) {
	if documentsDir != "" {
		cfg.Storage.DocumentsDir = documentsDir
	}
}

// parseFormats converts configured FourCC codes.
func parseFormats(codes []string) ([]camera.PixelFormat, error) {
	out := make([]camera.PixelFormat, 0, len(codes))
	for _, c := range codes {
		f, err := camera.ParsePixelFormat(c)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// newProviderFromConfig selects a camera implementation based on configuration.
func newProviderFromConfig(cfg *config.Config) (camera.Provider, error) {
	raw, err := parseFormats(cfg.Camera.RawFormats)
	if err != nil {
		return nil, fmt.Errorf("raw_formats: %w", err)
	}
	preview, err := parseFormats(cfg.Camera.PreviewFormats)
	if err != nil {
		return nil, fmt.Errorf("preview_formats: %w", err)
	}

	switch cfg.Camera.Type {
	case "simulated":
		w, h := cfg.SensorSize()
		minExp, maxExp := cfg.ExposureRange()
		dev := camera.NewSimDevice(camera.SimConfig{
			Width:       w,
			Height:      h,
			Interval:    cfg.TelemetryInterval(),
			MinExposure: minExp,
			MaxExposure: maxExp,
			MinISO:      cfg.Camera.MinISO,
			MaxISO:      cfg.Camera.MaxISO,
		})
		return camera.NewSimProvider(dev, raw, preview), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// logDisplay shows telemetry in the debug log when there is no UI.
type logDisplay struct{}

func (logDisplay) Show(p camera.Property, text string) {
	debug.Trace("%s: %s", p, text)
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
