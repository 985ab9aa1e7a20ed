package capture

import (
	"slices"
	"time"

	"github.com/cjeanneret/RawCapture/internal/hw/camera"
)

// Embedded preview requested with every capture when the output supports it.
const (
	embeddedPreviewSize = 512
)

// NewSettings builds the settings for one capture from what out advertises:
// the first RAW format, flash off, no stabilization, no high resolution, and
// a 512x512 BGRA preview when BGRA previews are available.
// ok is false when out has no RAW format.
func NewSettings(out camera.PhotoOutput) (s camera.Settings, ok bool) {
	raw := out.AvailableRawPixelFormats()
	if len(raw) == 0 {
		return camera.Settings{}, false
	}
	s = camera.Settings{
		RawPixelFormat:              raw[0],
		FlashMode:                   camera.FlashOff,
		AutoStillImageStabilization: false,
		HighResolution:              false,
	}
	if slices.Contains(out.AvailablePreviewPixelFormats(), camera.PixelFormatBGRA) {
		s.Preview = &camera.PreviewFormat{
			PixelFormat: camera.PixelFormatBGRA,
			Width:       embeddedPreviewSize,
			Height:      embeddedPreviewSize,
		}
	}
	return s, true
}

// Request is one submitted capture.
type Request struct {
	ID          string
	Settings    camera.Settings
	SubmittedAt time.Time

	// Set before Done is closed.
	Resolved camera.ResolvedSettings
	path     string
	err      error
	done     chan struct{}
}

// Done is closed when the capture has been written and shared, or abandoned.
func (r *Request) Done() <-chan struct{} { return r.done }

// Path is the written file, or "" if the capture did not reach the disk.
// Valid after Done.
func (r *Request) Path() string { return r.path }

// Err is the reason the flow stopped early, if any. Valid after Done.
func (r *Request) Err() error { return r.err }
