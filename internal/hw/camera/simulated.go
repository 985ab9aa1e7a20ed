package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/cjeanneret/RawCapture/internal/debug"
)

var (
	ErrNotConnected      = errors.New("camera: photo output is not connected to a device")
	ErrUnsupportedFormat = errors.New("camera: unsupported raw pixel format")
)

// middle gray the auto-exposure loop aims for
const targetBrightness = 0.18

// SimConfig configures a simulated sensor.
type SimConfig struct {
	ID          string
	Width       int // sensor width in pixels
	Height      int // sensor height in pixels
	Interval    time.Duration
	MinExposure time.Duration
	MaxExposure time.Duration
	MinISO      float64
	MaxISO      float64
	Seed        int64
}

func (c *SimConfig) setDefaults() {
	if c.ID == "" {
		c.ID = "sim-0"
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 640, 480
	}
	if c.Interval <= 0 {
		c.Interval = 200 * time.Millisecond
	}
	if c.MinExposure <= 0 {
		c.MinExposure = 500 * time.Microsecond
	}
	if c.MaxExposure < c.MinExposure {
		c.MaxExposure = 100 * time.Millisecond
	}
	if c.MinISO <= 0 {
		c.MinISO = 25
	}
	if c.MaxISO < c.MinISO {
		c.MaxISO = 1600
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// SimDevice is a software sensor with its own auto-exposure and
// auto-focus loops. Scene brightness drifts slowly; the loops chase it.
type SimDevice struct {
	cfg SimConfig
	hub *propertyHub

	mu         sync.Mutex
	rng        *rand.Rand
	props      Properties
	focusGoal  float64
	tick       int
	frame      *image.RGBA
	cancel     context.CancelFunc
	done       chan struct{}
	sceneLevel func(tick int) float64
}

// NewSimDevice returns a stopped simulated device.
func NewSimDevice(cfg SimConfig) *SimDevice {
	cfg.setDefaults()
	d := &SimDevice{
		cfg: cfg,
		hub: newPropertyHub(),
		rng: rand.New(rand.NewSource(cfg.Seed)),
		props: Properties{
			LensPosition:     0.5,
			ExposureDuration: 10 * time.Millisecond,
			ISO:              cfg.MinISO,
		},
		focusGoal: 0.5,
	}
	d.sceneLevel = func(tick int) float64 {
		return 0.5 + 0.4*math.Sin(float64(tick)/50)
	}
	return d
}

func (d *SimDevice) ID() string { return d.cfg.ID }

// Start launches the control loop.
func (d *SimDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return fmt.Errorf("device %s already started", d.cfg.ID)
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.frame = d.renderFrameLocked()
	go d.loop(ctx, d.done)
	return nil
}

// Stop ends the control loop and waits for it to exit.
func (d *SimDevice) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (d *SimDevice) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, evt := range d.step() {
				d.hub.publish(evt)
			}
		}
	}
}

// step advances AE/AF by one tick and returns the properties that changed.
func (d *SimDevice) step() []PropertyEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tick++
	prev := d.props

	// Auto-exposure: exposure * iso * scene * k = targetBrightness.
	// Prefer the lowest ISO; raise it only once exposure is at its maximum.
	product := targetBrightness / (d.sceneLevel(d.tick) * 0.36)
	iso := d.cfg.MinISO
	exp := product / iso
	if maxExp := d.cfg.MaxExposure.Seconds(); exp > maxExp {
		exp = maxExp
		iso = math.Min(product/exp, d.cfg.MaxISO)
	}
	exp = math.Max(exp, d.cfg.MinExposure.Seconds())
	cur := d.props.ExposureDuration.Seconds()
	d.props.ExposureDuration = time.Duration((cur + 0.3*(exp-cur)) * float64(time.Second))
	d.props.ISO = math.Round(d.props.ISO + 0.3*(iso-d.props.ISO))

	// Auto-focus: hunt toward a goal that occasionally jumps.
	if d.rng.Float64() < 0.02 {
		d.focusGoal = d.rng.Float64()
	}
	lens := d.props.LensPosition + 0.2*(d.focusGoal-d.props.LensPosition) + (d.rng.Float64()-0.5)*0.01
	d.props.LensPosition = math.Max(0, math.Min(1, lens))

	d.frame = d.renderFrameLocked()
	return diffProperties(prev, d.props)
}

func diffProperties(prev, next Properties) []PropertyEvent {
	var events []PropertyEvent
	if math.Abs(prev.LensPosition-next.LensPosition) > 1e-4 {
		events = append(events, PropertyEvent{Property: LensPosition, Value: next.LensPosition})
	}
	if prev.ExposureDuration != next.ExposureDuration {
		events = append(events, PropertyEvent{Property: ExposureDuration, Value: next.ExposureDuration.Seconds()})
	}
	if prev.ISO != next.ISO {
		events = append(events, PropertyEvent{Property: ISO, Value: next.ISO})
	}
	return events
}

// Set forces a property value, as a manual control would, and notifies subscribers.
func (d *SimDevice) Set(p Property, v float64) {
	d.mu.Lock()
	switch p {
	case LensPosition:
		d.props.LensPosition = v
		d.focusGoal = v
	case ExposureDuration:
		d.props.ExposureDuration = time.Duration(v * float64(time.Second))
	case ISO:
		d.props.ISO = v
	}
	d.mu.Unlock()
	d.hub.publish(PropertyEvent{Property: p, Value: v})
}

func (d *SimDevice) Properties() Properties {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props
}

func (d *SimDevice) Subscribe() (<-chan PropertyEvent, func()) {
	return d.hub.subscribe()
}

// Subscribers returns the number of live subscriptions.
func (d *SimDevice) Subscribers() int {
	return d.hub.count()
}

// Running reports whether the control loop is active.
func (d *SimDevice) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

func (d *SimDevice) PreviewFrame() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame == nil {
		return nil
	}
	return d.frame
}

// gain returns the rendered brightness relative to the target.
func (d *SimDevice) gainLocked() float64 {
	return d.props.ExposureDuration.Seconds() * d.props.ISO * d.sceneLevel(d.tick) * 0.36 / targetBrightness
}

// renderFrameLocked draws a quarter-resolution color chart.
func (d *SimDevice) renderFrameLocked() *image.RGBA {
	w, h := d.cfg.Width/4, d.cfg.Height/4
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	gain := d.gainLocked()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := scene(float64(x)/float64(w), float64(y)/float64(h))
			img.SetRGBA(x, y, color.RGBA{
				R: to8(r * gain),
				G: to8(g * gain),
				B: to8(b * gain),
				A: 0xff,
			})
		}
	}
	return img
}

// Mosaic samples the scene through a Bayer color filter array.
func (d *SimDevice) Mosaic(pattern PixelFormat) (*image.Gray16, error) {
	offsets, ok := bayerOffsets[pattern]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, pattern)
	}
	d.mu.Lock()
	gain := d.gainLocked()
	noise := rand.New(rand.NewSource(d.rng.Int63()))
	d.mu.Unlock()

	w, h := d.cfg.Width, d.cfg.Height
	m := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := scene(float64(x)/float64(w), float64(y)/float64(h))
			var v float64
			switch offsets[(y&1)*2+(x&1)] {
			case 'R':
				v = r
			case 'G':
				v = g
			default:
				v = b
			}
			v = v*gain + noise.NormFloat64()*0.002
			m.SetGray16(x, y, color.Gray16{Y: to14(v)})
		}
	}
	return m, nil
}

// CFA layout per format, row-major over a 2x2 tile.
var bayerOffsets = map[PixelFormat][4]byte{
	PixelFormatBayerRGGB14: {'R', 'G', 'G', 'B'},
	PixelFormatBayerGRBG14: {'G', 'R', 'B', 'G'},
	PixelFormatBayerGBRG14: {'G', 'B', 'R', 'G'},
	PixelFormatBayerBGGR14: {'B', 'G', 'G', 'R'},
}

// scene is a smooth chart: red grows left to right, green top to bottom.
func scene(u, v float64) (r, g, b float64) {
	return u, v, 1 - 0.5*(u+v)
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 0xff))
}

func to14(v float64) uint16 {
	return uint16(math.Round(clamp01(v) * 0x3fff))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// SimOutput is a photo output bound to a SimDevice.
type SimOutput struct {
	rawFormats     []PixelFormat
	previewFormats []PixelFormat

	mu  sync.Mutex
	dev *SimDevice
}

// NewSimOutput advertises the given formats, in order.
func NewSimOutput(raw, preview []PixelFormat) *SimOutput {
	return &SimOutput{
		rawFormats:     slices.Clone(raw),
		previewFormats: slices.Clone(preview),
	}
}

func (o *SimOutput) AvailableRawPixelFormats() []PixelFormat {
	return slices.Clone(o.rawFormats)
}

func (o *SimOutput) AvailablePreviewPixelFormats() []PixelFormat {
	return slices.Clone(o.previewFormats)
}

// BindDevice connects the output to a simulated device. Other devices are ignored.
func (o *SimOutput) BindDevice(d Device) {
	sd, ok := d.(*SimDevice)
	if !ok {
		return
	}
	o.mu.Lock()
	o.dev = sd
	o.mu.Unlock()
}

// CapturePhoto exposes for the device's current exposure duration, then
// renders and encodes the raw frame.
func (o *SimOutput) CapturePhoto(s Settings) *PendingCapture {
	pending, resolver := NewPendingCapture()

	o.mu.Lock()
	dev := o.dev
	o.mu.Unlock()

	go func() {
		if dev == nil {
			resolver.ResolveExposure(ResolvedSettings{}, ErrNotConnected)
			return
		}
		if !slices.Contains(o.rawFormats, s.RawPixelFormat) {
			resolver.ResolveExposure(ResolvedSettings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.RawPixelFormat))
			return
		}

		props := dev.Properties()
		time.Sleep(props.ExposureDuration)
		mosaic, err := dev.Mosaic(s.RawPixelFormat)
		if err != nil {
			resolver.ResolveExposure(ResolvedSettings{}, err)
			return
		}

		rs := ResolvedSettings{
			RawPixelFormat:   s.RawPixelFormat,
			Width:            mosaic.Bounds().Dx(),
			Height:           mosaic.Bounds().Dy(),
			ExposureDuration: props.ExposureDuration,
			ISO:              props.ISO,
			LensPosition:     props.LensPosition,
		}
		if s.Preview != nil && slices.Contains(o.previewFormats, s.Preview.PixelFormat) {
			p := *s.Preview
			rs.Preview = &p
		}
		debug.Verbose("SimOutput: exposure done (%s, %v, ISO %.0f)", rs.RawPixelFormat, rs.ExposureDuration, rs.ISO)
		resolver.ResolveExposure(rs, nil)

		data, err := EncodeRaw(mosaic)
		if err != nil {
			resolver.ResolveProcessing(nil, fmt.Errorf("encode raw: %w", err))
			return
		}
		photo := &Photo{Data: data, Resolved: rs}
		if rs.Preview != nil {
			photo.Preview = ScaleToFill(dev.PreviewFrame(), rs.Preview.Width, rs.Preview.Height)
		}
		resolver.ResolveProcessing(photo, nil)
	}()
	return pending
}

// SimProvider hands out one simulated device and outputs for it.
type SimProvider struct {
	dev            *SimDevice
	rawFormats     []PixelFormat
	previewFormats []PixelFormat
}

// NewSimProvider builds a provider. A nil device means no camera is present.
func NewSimProvider(dev *SimDevice, raw, preview []PixelFormat) *SimProvider {
	return &SimProvider{dev: dev, rawFormats: raw, previewFormats: preview}
}

func (p *SimProvider) DefaultDevice() (Device, error) {
	if p.dev == nil {
		return nil, ErrNoDevice
	}
	return p.dev, nil
}

func (p *SimProvider) NewPhotoOutput() PhotoOutput {
	return NewSimOutput(p.rawFormats, p.previewFormats)
}
