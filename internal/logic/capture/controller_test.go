package capture

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/cjeanneret/RawCapture/internal/hw/camera"
	"github.com/cjeanneret/RawCapture/internal/logic/photo"
	"github.com/cjeanneret/RawCapture/internal/logic/share"
	"github.com/cjeanneret/RawCapture/internal/metrics"
)

// --- fakes ---

type fakeDevice struct {
	mu       sync.Mutex
	started  bool
	stops    int
	events   chan camera.PropertyEvent
	once     sync.Once
	canceled bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{events: make(chan camera.PropertyEvent, 8)}
}

func (d *fakeDevice) ID() string { return "fake" }

func (d *fakeDevice) Start(context.Context) error {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	d.stops++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Properties() camera.Properties { return camera.Properties{} }

func (d *fakeDevice) Subscribe() (<-chan camera.PropertyEvent, func()) {
	return d.events, func() {
		d.once.Do(func() {
			d.mu.Lock()
			d.canceled = true
			d.mu.Unlock()
			close(d.events)
		})
	}
}

func (d *fakeDevice) PreviewFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 6))
}

type fakeOutput struct {
	raw, preview []camera.PixelFormat

	mu        sync.Mutex
	requests  []camera.Settings
	resolvers chan *camera.Resolver
}

func newFakeOutput(raw ...camera.PixelFormat) *fakeOutput {
	return &fakeOutput{
		raw:       raw,
		preview:   []camera.PixelFormat{camera.PixelFormatBGRA},
		resolvers: make(chan *camera.Resolver, 4),
	}
}

func (o *fakeOutput) AvailableRawPixelFormats() []camera.PixelFormat     { return o.raw }
func (o *fakeOutput) AvailablePreviewPixelFormats() []camera.PixelFormat { return o.preview }

func (o *fakeOutput) CapturePhoto(s camera.Settings) *camera.PendingCapture {
	p, r := camera.NewPendingCapture()
	o.mu.Lock()
	o.requests = append(o.requests, s)
	o.mu.Unlock()
	o.resolvers <- r
	return p
}

func (o *fakeOutput) submitted() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

type fakeProvider struct {
	dev    camera.Device
	output camera.PhotoOutput
}

func (p *fakeProvider) DefaultDevice() (camera.Device, error) {
	if p.dev == nil {
		return nil, camera.ErrNoDevice
	}
	return p.dev, nil
}

func (p *fakeProvider) NewPhotoOutput() camera.PhotoOutput { return p.output }

type shown struct {
	prop camera.Property
	text string
}

type chanDisplay chan shown

func (d chanDisplay) Show(p camera.Property, text string) { d <- shown{p, text} }

type discardDisplay struct{}

func (discardDisplay) Show(camera.Property, string) {}

type failingStore struct{ calls int }

func (s *failingStore) Save([]byte, time.Time) (string, error) {
	s.calls++
	return "", errors.New("disk full")
}

type recordingSharer struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *recordingSharer) Share(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return s.err
}

func (s *recordingSharer) shared() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// --- helpers ---

var fixedTime = time.Date(2024, time.May, 6, 7, 8, 9, 0, time.Local)

type harness struct {
	ctrl    *Controller
	dev     *fakeDevice
	out     *fakeOutput
	display chanDisplay
	sharer  *recordingSharer
	dir     string
}

func newHarness(t *testing.T, store PhotoStore, raw ...camera.PixelFormat) *harness {
	t.Helper()
	h := &harness{
		dev:     newFakeDevice(),
		out:     newFakeOutput(raw...),
		display: make(chanDisplay, 16),
		sharer:  &recordingSharer{},
		dir:     t.TempDir(),
	}
	if store == nil {
		store = photo.NewStore(h.dir)
	}
	h.ctrl = NewController(&fakeProvider{dev: h.dev, output: h.out}, h.display, store, h.sharer,
		WithClock(func() time.Time { return fixedTime }))
	if err := h.ctrl.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(func() { h.ctrl.Teardown() })
	return h
}

func (h *harness) nextResolver(t *testing.T) *camera.Resolver {
	t.Helper()
	select {
	case r := <-h.out.resolvers:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no capture submitted to the output")
		return nil
	}
}

func waitDone(t *testing.T, req *Request) {
	t.Helper()
	select {
	case <-req.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("capture %s did not complete", req.ID)
	}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", c.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func resolveOK(r *camera.Resolver, data []byte) {
	r.ResolveExposure(camera.ResolvedSettings{RawPixelFormat: camera.PixelFormatBayerRGGB14}, nil)
	r.ResolveProcessing(&camera.Photo{Data: data}, nil)
}

// --- formatting ---

func TestFormatProperty(t *testing.T) {
	tests := []struct {
		evt  camera.PropertyEvent
		want string
	}{
		{camera.PropertyEvent{Property: camera.LensPosition, Value: 0.37}, "0.4"},
		{camera.PropertyEvent{Property: camera.LensPosition, Value: 0.4321}, "0.4"},
		{camera.PropertyEvent{Property: camera.LensPosition, Value: 1}, "1.0"},
		{camera.PropertyEvent{Property: camera.ExposureDuration, Value: 0.01}, "1/100"},
		{camera.PropertyEvent{Property: camera.ExposureDuration, Value: 0.004}, "1/250"},
		{camera.PropertyEvent{Property: camera.ExposureDuration, Value: 0.5}, "1/2"},
		{camera.PropertyEvent{Property: camera.ExposureDuration, Value: 0}, "-"},
		{camera.PropertyEvent{Property: camera.ExposureDuration, Value: -1}, "-"},
		{camera.PropertyEvent{Property: camera.ISO, Value: 400}, "400"},
		{camera.PropertyEvent{Property: camera.ISO, Value: 399.6}, "400"},
	}
	for _, tt := range tests {
		if got := FormatProperty(tt.evt); got != tt.want {
			t.Errorf("FormatProperty(%s=%v) = %q, want %q", tt.evt.Property, tt.evt.Value, got, tt.want)
		}
	}
}

// --- settings ---

func TestNewSettings(t *testing.T) {
	out := newFakeOutput(camera.PixelFormatBayerGRBG14, camera.PixelFormatBayerRGGB14)
	s, ok := NewSettings(out)
	if !ok {
		t.Fatal("NewSettings: ok = false with raw formats available")
	}
	if s.RawPixelFormat != camera.PixelFormatBayerGRBG14 {
		t.Errorf("RawPixelFormat = %s, want first advertised grb4", s.RawPixelFormat)
	}
	if s.FlashMode != camera.FlashOff || s.AutoStillImageStabilization || s.HighResolution {
		t.Errorf("settings = %+v, want flash off, no stabilization, no high resolution", s)
	}
	if s.Preview == nil || s.Preview.Width != 512 || s.Preview.Height != 512 || s.Preview.PixelFormat != camera.PixelFormatBGRA {
		t.Errorf("Preview = %+v, want 512x512 BGRA", s.Preview)
	}

	out.preview = nil
	if s, _ := NewSettings(out); s.Preview != nil {
		t.Errorf("Preview = %+v without BGRA support, want nil", s.Preview)
	}

	if _, ok := NewSettings(newFakeOutput()); ok {
		t.Error("NewSettings: ok = true with no raw formats")
	}
}

// --- lifecycle ---

func TestActivate_NoDevice(t *testing.T) {
	c := NewController(&fakeProvider{output: newFakeOutput()}, make(chanDisplay, 1), &failingStore{}, &recordingSharer{})
	err := c.Activate()
	if !errors.Is(err, camera.ErrNoDevice) {
		t.Fatalf("Activate err = %v, want ErrNoDevice", err)
	}
	if c.State() != Uninitialized {
		t.Errorf("state = %s, want uninitialized", c.State())
	}
	if err := c.Teardown(); err != nil {
		t.Errorf("Teardown after failed Activate: %v", err)
	}
}

func TestActivate_StartsSession(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)
	if h.ctrl.State() != Running {
		t.Errorf("state = %s, want running", h.ctrl.State())
	}
	if !h.dev.started {
		t.Error("device was not started")
	}
	if img := h.ctrl.Preview(); img == nil || img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Errorf("Preview bounds = %v, want 640x480", img)
	}
	if err := h.ctrl.Activate(); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Activate err = %v, want ErrAlreadyActive", err)
	}
}

func TestCapture_BeforeActivate(t *testing.T) {
	c := NewController(&fakeProvider{}, make(chanDisplay, 1), &failingStore{}, &recordingSharer{})
	if _, err := c.Capture(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Capture err = %v, want ErrNotRunning", err)
	}
}

func TestTeardown_StopsSessionAndObserver(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)
	if err := h.ctrl.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if h.ctrl.State() != TornDown {
		t.Errorf("state = %s, want torn_down", h.ctrl.State())
	}
	if !h.dev.canceled {
		t.Error("property subscription was not cancelled")
	}
	if h.dev.stops != 1 {
		t.Errorf("device stopped %d times, want 1", h.dev.stops)
	}
	if h.ctrl.Preview() != nil {
		t.Error("Preview returned a frame after teardown")
	}
	if err := h.ctrl.Teardown(); err != nil {
		t.Errorf("second Teardown: %v", err)
	}
	if h.dev.stops != 1 {
		t.Errorf("device stopped %d times after second teardown, want 1", h.dev.stops)
	}
}

// --- telemetry ---

func TestTelemetry_RendersEachProperty(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)

	h.dev.events <- camera.PropertyEvent{Property: camera.LensPosition, Value: 0.42}
	h.dev.events <- camera.PropertyEvent{Property: camera.ExposureDuration, Value: 0.01}
	h.dev.events <- camera.PropertyEvent{Property: camera.ISO, Value: 400}

	want := []shown{
		{camera.LensPosition, "0.4"},
		{camera.ExposureDuration, "1/100"},
		{camera.ISO, "400"},
	}
	for i, w := range want {
		select {
		case got := <-h.display:
			if got != w {
				t.Errorf("update %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("update %d not shown", i)
		}
	}
}

type slowDisplay struct {
	mu   sync.Mutex
	last map[camera.Property]string
}

func (d *slowDisplay) Show(p camera.Property, text string) {
	time.Sleep(2 * time.Millisecond)
	d.mu.Lock()
	d.last[p] = text
	d.mu.Unlock()
}

func (d *slowDisplay) get(p camera.Property) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[p]
}

func TestTelemetry_SlowDisplayEndsOnLatestValue(t *testing.T) {
	dev := camera.NewSimDevice(camera.SimConfig{Width: 16, Height: 12, Interval: time.Hour})
	provider := camera.NewSimProvider(dev, []camera.PixelFormat{camera.PixelFormatBayerRGGB14}, nil)
	display := &slowDisplay{last: map[camera.Property]string{}}
	c := NewController(provider, display, photo.NewStore(t.TempDir()), &recordingSharer{})
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Teardown()

	for i := 1; i <= 100; i++ {
		dev.Set(camera.ISO, float64(i))
	}

	deadline := time.Now().Add(2 * time.Second)
	for display.get(camera.ISO) != "100" {
		if time.Now().After(deadline) {
			t.Fatalf("ISO shown = %q, want \"100\"", display.get(camera.ISO))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- capture flow ---

func TestCapture_WritesAndShares(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerGRBG14, camera.PixelFormatBayerRGGB14)

	req, err := h.ctrl.Capture(context.Background())
	if err != nil || req == nil {
		t.Fatalf("Capture = %v, %v", req, err)
	}
	if req.Settings.RawPixelFormat != camera.PixelFormatBayerGRBG14 {
		t.Errorf("request format = %s, want grb4", req.Settings.RawPixelFormat)
	}

	data := []byte("II*\x00raw")
	resolveOK(h.nextResolver(t), data)
	waitDone(t, req)

	if req.Err() != nil {
		t.Fatalf("request err = %v", req.Err())
	}
	want := filepath.Join(h.dir, "20240506070809.dng")
	if req.Path() != want {
		t.Errorf("Path = %q, want %q", req.Path(), want)
	}
	back, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(back) != string(data) {
		t.Errorf("file content = %q, want %q", back, data)
	}
	if got := h.sharer.shared(); len(got) != 1 || got[0] != want {
		t.Errorf("shared = %v, want [%s]", got, want)
	}
	waitState(t, h.ctrl, Running)
}

func TestCapture_NoRawFormatIsNoop(t *testing.T) {
	h := newHarness(t, nil)

	req, err := h.ctrl.Capture(context.Background())
	if req != nil || err != nil {
		t.Fatalf("Capture = %v, %v; want nil, nil", req, err)
	}
	if n := h.out.submitted(); n != 0 {
		t.Errorf("submitted %d requests, want 0", n)
	}
	if h.ctrl.State() != Running {
		t.Errorf("state = %s, want running", h.ctrl.State())
	}
	entries, _ := os.ReadDir(h.dir)
	if len(entries) != 0 {
		t.Errorf("documents dir has %d entries, want 0", len(entries))
	}
}

func TestCapture_RejectsWhileInFlight(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)

	first, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("first Capture: %v", err)
	}
	r := h.nextResolver(t)
	if h.ctrl.State() != CaptureInFlight {
		t.Errorf("state = %s, want capture_in_flight", h.ctrl.State())
	}

	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrCaptureInFlight) {
		t.Fatalf("second Capture err = %v, want ErrCaptureInFlight", err)
	}
	if n := h.out.submitted(); n != 1 {
		t.Errorf("submitted %d requests, want 1", n)
	}

	resolveOK(r, []byte("a"))
	waitDone(t, first)
	waitState(t, h.ctrl, Running)

	third, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture after completion: %v", err)
	}
	resolveOK(h.nextResolver(t), []byte("b"))
	waitDone(t, third)
}

func TestCapture_ProcessingWaitsForExposure(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)

	req, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	r := h.nextResolver(t)
	r.ResolveProcessing(&camera.Photo{Data: []byte("early")}, nil)

	select {
	case <-req.Done():
		t.Fatal("capture completed before the exposure stage")
	case <-time.After(50 * time.Millisecond):
	}
	if len(h.sharer.shared()) != 0 {
		t.Fatal("shared before the exposure stage")
	}

	r.ResolveExposure(camera.ResolvedSettings{ISO: 200}, nil)
	waitDone(t, req)
	if req.Err() != nil {
		t.Fatalf("request err = %v", req.Err())
	}
	if req.Resolved.ISO != 200 {
		t.Errorf("Resolved.ISO = %v, want 200", req.Resolved.ISO)
	}
}

func TestCapture_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		store     PhotoStore
		shareErr  error
		resolve   func(*camera.Resolver)
		wantStage string
		wantFile  bool
		wantShare bool
	}{
		{
			name:      "exposure error",
			resolve:   func(r *camera.Resolver) { r.ResolveExposure(camera.ResolvedSettings{}, errors.New("sensor fault")) },
			wantStage: "hardware",
		},
		{
			name: "processing error",
			resolve: func(r *camera.Resolver) {
				r.ResolveExposure(camera.ResolvedSettings{}, nil)
				r.ResolveProcessing(nil, errors.New("encode failed"))
			},
			wantStage: "processing",
		},
		{
			name: "processing without data",
			resolve: func(r *camera.Resolver) {
				r.ResolveExposure(camera.ResolvedSettings{}, nil)
				r.ResolveProcessing(nil, nil)
			},
			wantStage: "processing",
		},
		{
			name:      "write error",
			store:     &failingStore{},
			resolve:   func(r *camera.Resolver) { resolveOK(r, []byte("x")) },
			wantStage: "write",
		},
		{
			name:      "share error",
			shareErr:  errors.New("dismissed"),
			resolve:   func(r *camera.Resolver) { resolveOK(r, []byte("x")) },
			wantStage: "share",
			wantFile:  true,
			wantShare: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.store, camera.PixelFormatBayerRGGB14)
			h.sharer.err = tt.shareErr

			req, err := h.ctrl.Capture(context.Background())
			if err != nil {
				t.Fatalf("Capture: %v", err)
			}
			tt.resolve(h.nextResolver(t))
			waitDone(t, req)

			if req.Err() == nil || !strings.Contains(req.Err().Error(), tt.wantStage) {
				t.Errorf("request err = %v, want stage %q", req.Err(), tt.wantStage)
			}
			entries, _ := os.ReadDir(h.dir)
			if got := len(entries) == 1; got != tt.wantFile {
				t.Errorf("file written = %v, want %v", got, tt.wantFile)
			}
			if got := len(h.sharer.shared()) == 1; got != tt.wantShare {
				t.Errorf("shared = %v, want %v", got, tt.wantShare)
			}
			waitState(t, h.ctrl, Running)
		})
	}
}

func TestTeardown_AbandonsInFlightCapture(t *testing.T) {
	h := newHarness(t, nil, camera.PixelFormatBayerRGGB14)

	req, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	h.nextResolver(t)

	if err := h.ctrl.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	waitDone(t, req)
	if !errors.Is(req.Err(), context.Canceled) {
		t.Errorf("request err = %v, want context.Canceled", req.Err())
	}
	if h.ctrl.State() != TornDown {
		t.Errorf("state = %s, want torn_down", h.ctrl.State())
	}
	if _, err := h.ctrl.Capture(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Capture after teardown err = %v, want ErrNotRunning", err)
	}
}

type blockingStore struct {
	entered chan struct{}
	release chan struct{}
	dir     string
}

func (s *blockingStore) Save(data []byte, t time.Time) (string, error) {
	close(s.entered)
	<-s.release
	return photo.NewStore(s.dir).Save(data, t)
}

func TestTeardown_WaitsForWriteAndSkipsShare(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{}), dir: t.TempDir()}
	h := newHarness(t, store, camera.PixelFormatBayerRGGB14)

	req, err := h.ctrl.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	resolveOK(h.nextResolver(t), []byte("dng"))
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("store never called")
	}

	tornDown := make(chan error, 1)
	go func() { tornDown <- h.ctrl.Teardown() }()
	select {
	case <-tornDown:
		t.Fatal("Teardown returned while the write was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case err := <-tornDown:
		if err != nil {
			t.Fatalf("Teardown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Teardown did not return after the write finished")
	}

	select {
	case <-req.Done():
	default:
		t.Error("request not done when Teardown returned")
	}
	if !errors.Is(req.Err(), context.Canceled) {
		t.Errorf("request err = %v, want context.Canceled", req.Err())
	}
	if got := h.sharer.shared(); len(got) != 0 {
		t.Errorf("shared %v after teardown, want nothing", got)
	}
}

// --- end to end on the simulated camera ---

func TestController_SimulatedEndToEnd(t *testing.T) {
	dev := camera.NewSimDevice(camera.SimConfig{
		Width: 64, Height: 48, Interval: 5 * time.Millisecond,
		MinExposure: time.Millisecond, MaxExposure: 2 * time.Millisecond, Seed: 7,
	})
	provider := camera.NewSimProvider(dev,
		[]camera.PixelFormat{camera.PixelFormatBayerRGGB14},
		[]camera.PixelFormat{camera.PixelFormatBGRA})

	dir := t.TempDir()
	registry := share.NewRegistry()
	sheet := share.NewSheet(registry, share.LogPresenter{}, share.DefaultExcluded)
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	c := NewController(provider, discardDisplay{}, photo.NewStore(dir), sheet, WithRecorder(rec), WithPreviewSize(32, 32))
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Teardown()

	req, err := c.Capture(context.Background())
	if err != nil || req == nil {
		t.Fatalf("Capture = %v, %v", req, err)
	}
	waitDone(t, req)
	if req.Err() != nil {
		t.Fatalf("request err = %v", req.Err())
	}

	data, err := os.ReadFile(req.Path())
	if err != nil {
		t.Fatalf("read %s: %v", req.Path(), err)
	}
	mosaic, err := camera.DecodeRaw(data)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if b := mosaic.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("mosaic bounds = %v, want 64x48", b)
	}
	if registry.Len() != 1 {
		t.Errorf("registry has %d items, want 1", registry.Len())
	}
	if n, err := testutil.GatherAndCount(reg, "rawcapture_captures_requested_total", "rawcapture_photos_written_total"); err != nil || n != 2 {
		t.Errorf("GatherAndCount = %d, %v; want 2 series", n, err)
	}

	if err := c.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if dev.Running() {
		t.Error("simulated device still running after teardown")
	}
	if n := dev.Subscribers(); n != 0 {
		t.Errorf("device has %d subscribers after teardown, want 0", n)
	}
}

type countingDisplay struct {
	mu    sync.Mutex
	shown []shown
}

func (d *countingDisplay) Show(p camera.Property, text string) {
	d.mu.Lock()
	d.shown = append(d.shown, shown{p, text})
	d.mu.Unlock()
}

func (d *countingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shown)
}

func TestTeardown_LaterPropertyChangesAreNotShown(t *testing.T) {
	// A long interval keeps the simulated AE/AF loop quiet.
	dev := camera.NewSimDevice(camera.SimConfig{Width: 16, Height: 12, Interval: time.Hour})
	provider := camera.NewSimProvider(dev, []camera.PixelFormat{camera.PixelFormatBayerRGGB14}, nil)
	display := &countingDisplay{}
	c := NewController(provider, display, photo.NewStore(t.TempDir()), &recordingSharer{})
	if err := c.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	dev.Set(camera.ISO, 400)
	deadline := time.Now().Add(2 * time.Second)
	for display.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ISO change never shown")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	before := display.count()
	dev.Set(camera.ISO, 800)
	dev.Set(camera.LensPosition, 0.9)
	time.Sleep(50 * time.Millisecond)
	if after := display.count(); after != before {
		t.Errorf("display updated %d times after teardown", after-before)
	}
}
