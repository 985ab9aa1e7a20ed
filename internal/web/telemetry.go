package web

import (
	"context"
	"sync"

	"github.com/cjeanneret/RawCapture/internal/hw/camera"
	"github.com/cjeanneret/RawCapture/internal/logic/share"
)

// Telemetry is the text currently shown in each telemetry field.
type Telemetry struct {
	LensPosition string `json:"lens_position"`
	Exposure     string `json:"exposure"`
	ISO          string `json:"iso"`
}

// TelemetryPanel holds the three telemetry fields and pushes every change
// to stream clients.
type TelemetryPanel struct {
	b *StatusBroadcaster

	mu     sync.RWMutex
	fields Telemetry
}

// NewTelemetryPanel creates a panel with empty fields.
func NewTelemetryPanel(b *StatusBroadcaster) *TelemetryPanel {
	return &TelemetryPanel{b: b}
}

// Show updates the field for p. It never blocks on clients.
func (t *TelemetryPanel) Show(p camera.Property, text string) {
	t.mu.Lock()
	switch p {
	case camera.LensPosition:
		t.fields.LensPosition = text
	case camera.ExposureDuration:
		t.fields.Exposure = text
	case camera.ISO:
		t.fields.ISO = text
	default:
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if t.b != nil {
		t.b.Publish(StatusEvent{
			Kind: KindTelemetry,
			Data: map[string]string{"property": p.String(), "text": text},
		})
	}
}

// Snapshot returns the current field texts.
func (t *TelemetryPanel) Snapshot() Telemetry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fields
}

// SharePresenter offers shared files to connected browsers.
// The file itself is served from /shared/{id}.
type SharePresenter struct {
	b *StatusBroadcaster
}

// NewSharePresenter creates a presenter publishing on b.
func NewSharePresenter(b *StatusBroadcaster) *SharePresenter {
	return &SharePresenter{b: b}
}

func (p *SharePresenter) Present(ctx context.Context, item share.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.b.Publish(StatusEvent{
		Kind: KindShare,
		Msg:  "Ready to share " + item.Name,
		Data: struct {
			share.Item
			URL string `json:"url"`
		}{item, "/shared/" + item.ID},
	})
	return nil
}
