package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cjeanneret/RawCapture/internal/hw/camera"
)

// Recorder exports capture and telemetry metrics.
type Recorder struct {
	requested *prometheus.CounterVec
	ignored   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	written   prometheus.Counter
	bytes     prometheus.Counter
	latency   prometheus.Histogram
	props     *prometheus.GaugeVec
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rawcapture_captures_requested_total",
			Help: "Capture requests submitted to the photo output, by raw format.",
		}, []string{"format"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rawcapture_captures_ignored_total",
			Help: "Capture presses that did not produce a request.",
		}, []string{"reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rawcapture_capture_failures_total",
			Help: "Captures abandoned, by stage (hardware, processing, write, share).",
		}, []string{"stage"}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rawcapture_photos_written_total",
			Help: "DNG files written to the documents directory.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rawcapture_photo_bytes_written_total",
			Help: "Bytes of DNG data written.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rawcapture_capture_duration_seconds",
			Help:    "Time from capture request to file written.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		props: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rawcapture_device_property",
			Help: "Last observed device property (lens_position, exposure_duration seconds, iso).",
		}, []string{"property"}),
	}
	reg.MustRegister(r.requested, r.ignored, r.failed, r.written, r.bytes, r.latency, r.props)
	return r
}

func (r *Recorder) CaptureRequested(format camera.PixelFormat) {
	r.requested.WithLabelValues(format.String()).Inc()
}

func (r *Recorder) CaptureIgnored(reason string) {
	r.ignored.WithLabelValues(reason).Inc()
}

func (r *Recorder) CaptureFailed(stage string) {
	r.failed.WithLabelValues(stage).Inc()
}

func (r *Recorder) PhotoWritten(size int, elapsed time.Duration) {
	r.written.Inc()
	r.bytes.Add(float64(size))
	r.latency.Observe(elapsed.Seconds())
}

func (r *Recorder) PropertyChanged(evt camera.PropertyEvent) {
	r.props.WithLabelValues(evt.Property.String()).Set(evt.Value)
}
