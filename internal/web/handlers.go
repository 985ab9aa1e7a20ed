package web

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/RawCapture/internal/debug"
	"github.com/cjeanneret/RawCapture/internal/logic/capture"
	"github.com/cjeanneret/RawCapture/internal/logic/share"
)

// CaptureFunc submits one capture. It follows Controller.Capture:
// (nil, nil) means the press was ignored.
type CaptureFunc func(ctx context.Context) (*capture.Request, error)

// PreviewFunc returns the current preview frame, or nil when the session is not running.
type PreviewFunc func() image.Image

// FormConfig is what the page needs to render itself.
type FormConfig struct {
	Device          string           `json:"device"`
	RawFormats      []string         `json:"raw_formats"`
	ShareActivities []share.Activity `json:"share_activities"`
	PreviewWidth    int              `json:"preview_width"`
	PreviewHeight   int              `json:"preview_height"`
}

// CaptureResult is pushed to stream clients when a capture completes.
type CaptureResult struct {
	ID    string `json:"id"`
	File  string `json:"file,omitempty"`
	Error string `json:"error,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Capture     CaptureFunc
	Preview     PreviewFunc
	Telemetry   *TelemetryPanel
	Shares      *share.Registry
	Form        FormConfig
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If captureFn is nil, POST /capture returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, captureFn CaptureFunc, preview PreviewFunc,
	telemetry *TelemetryPanel, shares *share.Registry, form FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Capture:     captureFn,
		Preview:     preview,
		Telemetry:   telemetry,
		Shares:      shares,
		Form:        form,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HandleConfig returns the page configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Form)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleCapture handles POST /capture, the on-screen capture button.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	req, err := h.Capture(r.Context())
	switch {
	case errors.Is(err, capture.ErrCaptureInFlight):
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	case errors.Is(err, capture.ErrNotRunning):
		http.Error(w, "camera not running", http.StatusServiceUnavailable)
		return
	case err != nil:
		debug.Error(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	case req == nil:
		// No RAW format on this device; the press is ignored.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.TrackCapture(req)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "id": req.ID})
}

// TrackCapture pushes the outcome of req to stream clients once it completes.
// It returns immediately; captures started outside HTTP (the hardware button)
// are reported the same way.
func (h *Handlers) TrackCapture(req *capture.Request) {
	go h.reportCapture(req)
}

func (h *Handlers) reportCapture(req *capture.Request) {
	<-req.Done()
	res := CaptureResult{ID: req.ID, File: req.Path()}
	if err := req.Err(); err != nil {
		res.Error = err.Error()
		h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
	} else {
		h.Broadcaster.Broadcast("info", "Saved "+req.Path())
	}
	h.Broadcaster.Publish(StatusEvent{Kind: KindCapture, Data: res})
}

// HandleTelemetry returns the current telemetry fields.
func (h *Handlers) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if h.Telemetry == nil {
		writeJSON(w, http.StatusOK, Telemetry{})
		return
	}
	writeJSON(w, http.StatusOK, h.Telemetry.Snapshot())
}

// HandlePreview serves the current preview frame as PNG.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var img image.Image
	if h.Preview != nil {
		img = h.Preview()
	}
	if img == nil {
		http.Error(w, "preview not available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		debug.Trace("preview encode: %v", err)
	}
}

// HandleShared serves a shared DNG as a download.
func (h *Handlers) HandleShared(w http.ResponseWriter, r *http.Request) {
	if h.Shares == nil {
		http.NotFound(w, r)
		return
	}
	item, err := h.Shares.Lookup(mux.Vars(r)["id"])
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/x-adobe-dng")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Name))
	http.ServeFile(w, r, item.Path)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// HandleEvents handles GET /events/ws: the same events as the SSE stream,
// one JSON text frame per event.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Read pump: only control frames are expected; it ends on close.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
