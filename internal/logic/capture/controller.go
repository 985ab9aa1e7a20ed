package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/RawCapture/internal/debug"
	"github.com/cjeanneret/RawCapture/internal/hw/camera"
)

var (
	ErrAlreadyActive   = errors.New("capture: controller already activated")
	ErrNotRunning      = errors.New("capture: session is not running")
	ErrCaptureInFlight = errors.New("capture: a capture is already in flight")
)

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Configuring
	Running
	CaptureInFlight
	TornDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case CaptureInFlight:
		return "capture_in_flight"
	case TornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PhotoStore persists captured bytes.
type PhotoStore interface {
	Save(data []byte, t time.Time) (string, error)
}

// Sharer hands a saved file to the share action.
type Sharer interface {
	Share(ctx context.Context, path string) error
}

// Recorder receives capture metrics. Optional.
type Recorder interface {
	CaptureRequested(format camera.PixelFormat)
	CaptureIgnored(reason string)
	CaptureFailed(stage string)
	PhotoWritten(size int, elapsed time.Duration)
	PropertyChanged(evt camera.PropertyEvent)
}

type nopRecorder struct{}

func (nopRecorder) CaptureRequested(camera.PixelFormat)  {}
func (nopRecorder) CaptureIgnored(string)                {}
func (nopRecorder) CaptureFailed(string)                 {}
func (nopRecorder) PhotoWritten(int, time.Duration)      {}
func (nopRecorder) PropertyChanged(camera.PropertyEvent) {}

// Option customizes a Controller.
type Option func(*Controller)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.metrics = r }
}

// WithClock sets the wall clock used to name files.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPreviewSize sets the preview surface size. Default 640x480.
func WithPreviewSize(width, height int) Option {
	return func(c *Controller) { c.previewW, c.previewH = width, height }
}

// Controller owns the capture session of one device and runs the
// capture -> write -> share flow for each button press.
type Controller struct {
	provider camera.Provider
	display  Display
	store    PhotoStore
	sharer   Sharer
	metrics  Recorder
	now      func() time.Time

	previewW, previewH int

	mu          sync.Mutex
	state       State
	session     *camera.Session
	output      camera.PhotoOutput
	preview     *camera.PreviewLayer
	inFlight    *Request
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	observing   chan struct{} // closed when the observer goroutine exits
}

// NewController returns an uninitialized controller.
func NewController(provider camera.Provider, display Display, store PhotoStore, sharer Sharer, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		display:  display,
		store:    store,
		sharer:   sharer,
		metrics:  nopRecorder{},
		now:      time.Now,
		previewW: 640,
		previewH: 480,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate configures and starts the session and begins observing the device.
// An error means no usable camera; callers treat it as fatal.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Uninitialized {
		return ErrAlreadyActive
	}
	c.state = Configuring
	debug.Section("Configuring capture session")

	if err := c.configureLocked(); err != nil {
		c.state = Uninitialized
		return err
	}

	c.state = Running
	debug.Info("Controller: running")
	return nil
}

func (c *Controller) configureLocked() error {
	dev, err := c.provider.DefaultDevice()
	if err != nil {
		return fmt.Errorf("select default device: %w", err)
	}
	output := c.provider.NewPhotoOutput()

	session := camera.NewSession()
	if err := session.AddInput(dev); err != nil {
		return fmt.Errorf("add input %s: %w", dev.ID(), err)
	}
	if err := session.AddOutput(output); err != nil {
		return fmt.Errorf("add photo output: %w", err)
	}
	debug.Value("Device", dev.ID())
	debug.Value("Raw formats", output.AvailableRawPixelFormats())

	ctx, cancel := context.WithCancel(context.Background())
	preview := camera.NewPreviewLayer(session, c.previewW, c.previewH)
	if err := session.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start session: %w", err)
	}

	events, unsubscribe := dev.Subscribe()
	observing := make(chan struct{})
	go c.observe(events, observing)

	c.session = session
	c.output = output
	c.preview = preview
	c.ctx, c.cancel = ctx, cancel
	c.unsubscribe = unsubscribe
	c.observing = observing
	return nil
}

// observe renders property events until the subscription is cancelled.
func (c *Controller) observe(events <-chan camera.PropertyEvent, done chan struct{}) {
	defer close(done)
	for evt := range events {
		c.metrics.PropertyChanged(evt)
		c.display.Show(evt.Property, FormatProperty(evt))
	}
}

// Preview returns the current preview frame, or nil when not running.
func (c *Controller) Preview() image.Image {
	c.mu.Lock()
	preview := c.preview
	c.mu.Unlock()
	if preview == nil {
		return nil
	}
	return preview.Frame()
}

// Capture submits one RAW capture. It returns (nil, nil) without side effects
// when the output advertises no RAW format, and ErrCaptureInFlight while a
// previous capture has not completed. ctx only bounds the submission; the
// capture itself runs until completion or Teardown.
func (c *Controller) Capture(ctx context.Context) (*Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	switch c.state {
	case Running:
	case CaptureInFlight:
		c.mu.Unlock()
		c.metrics.CaptureIgnored("in_flight")
		debug.Live("Capture: ignored, %s still in flight", c.inFlightID())
		return nil, ErrCaptureInFlight
	default:
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotRunning, state)
	}

	settings, ok := NewSettings(c.output)
	if !ok {
		c.mu.Unlock()
		c.metrics.CaptureIgnored("no_raw_format")
		debug.Verbose("Capture: output advertises no raw format, ignoring press")
		return nil, nil
	}

	req := &Request{
		ID:          uuid.NewString(),
		Settings:    settings,
		SubmittedAt: c.now(),
		done:        make(chan struct{}),
	}
	pending := c.output.CapturePhoto(settings)
	c.state = CaptureInFlight
	c.inFlight = req
	flowCtx := c.ctx
	c.mu.Unlock()

	c.metrics.CaptureRequested(settings.RawPixelFormat)
	debug.Event("capture submitted", "id", req.ID, "format", settings.RawPixelFormat.String())
	go c.complete(flowCtx, req, pending)
	return req, nil
}

func (c *Controller) inFlightID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil {
		return ""
	}
	return c.inFlight.ID
}

// complete drives one request through its two callback stages.
// Every failure is logged and ends the flow; nothing is retried.
func (c *Controller) complete(ctx context.Context, req *Request, pending *camera.PendingCapture) {
	defer c.finish(req)

	exposure, err := pending.Exposed(ctx)
	if err != nil {
		req.err = fmt.Errorf("capture %s: hardware: %w", req.ID, err)
		c.fail("hardware", req)
		return
	}
	req.Resolved = exposure.Settings
	debug.Live("Capture %s: exposure done (%v, ISO %.0f)", req.ID, exposure.Settings.ExposureDuration, exposure.Settings.ISO)

	photo, err := exposure.Processed(ctx)
	if err != nil {
		req.err = fmt.Errorf("capture %s: processing: %w", req.ID, err)
		c.fail("processing", req)
		return
	}

	if err := ctx.Err(); err != nil {
		req.err = fmt.Errorf("capture %s: write: %w", req.ID, err)
		c.fail("write", req)
		return
	}
	path, err := c.store.Save(photo.Data, c.now())
	if err != nil {
		req.err = fmt.Errorf("capture %s: write: %w", req.ID, err)
		c.fail("write", req)
		return
	}
	req.path = path
	c.metrics.PhotoWritten(len(photo.Data), c.now().Sub(req.SubmittedAt))
	debug.Event("photo written", "id", req.ID, "path", path, "bytes", len(photo.Data))

	if err := ctx.Err(); err != nil {
		req.err = fmt.Errorf("capture %s: share: %w", req.ID, err)
		c.fail("share", req)
		return
	}
	if err := c.sharer.Share(ctx, path); err != nil {
		req.err = fmt.Errorf("capture %s: share: %w", req.ID, err)
		c.fail("share", req)
	}
}

func (c *Controller) fail(stage string, req *Request) {
	c.metrics.CaptureFailed(stage)
	debug.Errorw("capture abandoned", req.err, "id", req.ID, "stage", stage)
}

func (c *Controller) finish(req *Request) {
	c.mu.Lock()
	if c.inFlight == req {
		c.inFlight = nil
		if c.state == CaptureInFlight {
			c.state = Running
		}
	}
	c.mu.Unlock()
	close(req.done)
}

// Teardown stops observing the device and stops the session.
// A capture still in flight is abandoned: Teardown waits for its flow to
// return, and no write or share starts after cancellation. Calling
// Teardown twice is a no-op.
func (c *Controller) Teardown() error {
	c.mu.Lock()
	if c.state == TornDown {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.state != Uninitialized
	c.state = TornDown
	unsubscribe, observing := c.unsubscribe, c.observing
	cancel, session := c.cancel, c.session
	inFlight := c.inFlight
	c.unsubscribe = nil
	c.mu.Unlock()

	if !wasActive {
		return nil
	}
	debug.Section("Tearing down capture session")
	unsubscribe()
	<-observing
	cancel()
	if inFlight != nil {
		<-inFlight.done
	}
	if err := session.Stop(); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	return nil
}
