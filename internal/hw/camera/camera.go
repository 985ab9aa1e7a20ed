package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrNoDevice is returned by a Provider when no video capturing device is available.
var ErrNoDevice = errors.New("camera: no video capture device available")

// PixelFormat is a four-character pixel format code, packed big-endian.
type PixelFormat uint32

// FourCC packs a 4-byte code. It panics on any other length.
func FourCC(code string) PixelFormat {
	if len(code) != 4 {
		panic("camera: FourCC needs 4 bytes, got " + code)
	}
	return PixelFormat(uint32(code[0])<<24 | uint32(code[1])<<16 | uint32(code[2])<<8 | uint32(code[3]))
}

// ParsePixelFormat parses a 4-character code such as "grb4".
func ParsePixelFormat(code string) (PixelFormat, error) {
	if len(code) != 4 {
		return 0, fmt.Errorf("pixel format %q: want 4 characters", code)
	}
	return FourCC(code), nil
}

func (f PixelFormat) String() string {
	return string([]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)})
}

// Bayer 14-bit raw formats and the 32-bit BGRA preview format.
var (
	PixelFormatBayerRGGB14 = FourCC("rgg4")
	PixelFormatBayerGRBG14 = FourCC("grb4")
	PixelFormatBayerGBRG14 = FourCC("gbr4")
	PixelFormatBayerBGGR14 = FourCC("bgg4")
	PixelFormatBGRA        = FourCC("BGRA")
)

// IsBayer reports whether f is one of the raw Bayer formats.
func (f PixelFormat) IsBayer() bool {
	switch f {
	case PixelFormatBayerRGGB14, PixelFormatBayerGRBG14, PixelFormatBayerGBRG14, PixelFormatBayerBGGR14:
		return true
	}
	return false
}

// Property names one observable scalar of a capture device.
type Property int

const (
	LensPosition     Property = iota // focus motor position, 0.0 (near) to 1.0 (far)
	ExposureDuration                 // seconds
	ISO                              // sensor sensitivity
)

func (p Property) String() string {
	switch p {
	case LensPosition:
		return "lens_position"
	case ExposureDuration:
		return "exposure_duration"
	case ISO:
		return "iso"
	default:
		return fmt.Sprintf("property(%d)", int(p))
	}
}

// PropertyEvent reports a new value for one property.
type PropertyEvent struct {
	Property Property
	Value    float64
}

// Properties is a snapshot of all observable device properties.
type Properties struct {
	LensPosition     float64
	ExposureDuration time.Duration
	ISO              float64
}

// Device is a physical (or simulated) video capturing device.
type Device interface {
	ID() string
	// Start runs the device's own control loops until ctx is done or Stop is called.
	Start(ctx context.Context) error
	Stop() error
	Properties() Properties
	// Subscribe delivers property changes until the returned cancel func is called.
	// The channel is closed on cancel.
	Subscribe() (<-chan PropertyEvent, func())
	// PreviewFrame returns the latest frame, or nil before the device has started.
	PreviewFrame() image.Image
}

// FlashMode selects the flash policy of a capture.
type FlashMode int

const (
	FlashOff FlashMode = iota
	FlashOn
	FlashAuto
)

// PreviewFormat describes an embedded preview image.
type PreviewFormat struct {
	PixelFormat PixelFormat
	Width       int
	Height      int
}

// Settings describes one capture request.
type Settings struct {
	RawPixelFormat              PixelFormat
	FlashMode                   FlashMode
	AutoStillImageStabilization bool
	HighResolution              bool
	Preview                     *PreviewFormat // nil = no embedded preview
}

// ResolvedSettings are reported once the sensor exposure is done.
type ResolvedSettings struct {
	RawPixelFormat   PixelFormat
	Width            int
	Height           int
	ExposureDuration time.Duration
	ISO              float64
	LensPosition     float64
	Preview          *PreviewFormat
}

// Photo is the processed result of a capture.
// Data is whatever container the output produces: DNG for a real RAW
// output, a plain 16-bit TIFF mosaic (see EncodeRaw) for SimOutput.
type Photo struct {
	Data     []byte
	Resolved ResolvedSettings
	Preview  image.Image // nil unless requested and supported
}

// PhotoOutput is the still-image sink of a session.
type PhotoOutput interface {
	// AvailableRawPixelFormats lists supported raw formats, preferred first.
	AvailableRawPixelFormats() []PixelFormat
	AvailablePreviewPixelFormats() []PixelFormat
	// CapturePhoto submits a request. It never blocks on the exposure.
	CapturePhoto(s Settings) *PendingCapture
}

// Provider discovers devices and creates outputs.
type Provider interface {
	// DefaultDevice returns the default video capturing device or ErrNoDevice.
	DefaultDevice() (Device, error)
	NewPhotoOutput() PhotoOutput
}
