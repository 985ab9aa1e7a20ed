package capture

import (
	"fmt"
	"math"

	"github.com/cjeanneret/RawCapture/internal/hw/camera"
)

// Display shows formatted telemetry. Each property has its own field.
type Display interface {
	Show(p camera.Property, text string)
}

// FormatLensPosition renders a focus position with one decimal, e.g. "0.4".
func FormatLensPosition(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// FormatExposure renders an exposure in seconds as a shutter fraction, e.g. "1/100".
// Non-positive or non-finite durations render as "-".
func FormatExposure(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "-"
	}
	return fmt.Sprintf("1/%.0f", 1/seconds)
}

// FormatISO renders a sensitivity rounded to an integer, e.g. "400".
func FormatISO(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// FormatProperty dispatches on the property kind.
func FormatProperty(evt camera.PropertyEvent) string {
	switch evt.Property {
	case camera.LensPosition:
		return FormatLensPosition(evt.Value)
	case camera.ExposureDuration:
		return FormatExposure(evt.Value)
	case camera.ISO:
		return FormatISO(evt.Value)
	default:
		return fmt.Sprintf("%g", evt.Value)
	}
}
