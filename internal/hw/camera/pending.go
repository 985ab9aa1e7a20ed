package camera

import (
	"context"
	"errors"
	"sync"
)

type exposureResult struct {
	settings ResolvedSettings
	err      error
}

type processingResult struct {
	photo *Photo
	err   error
}

// PendingCapture is the first stage of a submitted capture.
// The processed photo is only reachable through the Exposure it yields,
// so a consumer can never observe processing before the exposure.
type PendingCapture struct {
	exposed   chan exposureResult
	processed chan processingResult
}

// Exposure is the result of a successful sensor exposure.
type Exposure struct {
	Settings  ResolvedSettings
	processed <-chan processingResult
}

// Resolver is the framework side of a PendingCapture.
type Resolver struct {
	p            *PendingCapture
	exposureOnce sync.Once
	processOnce  sync.Once
}

// NewPendingCapture returns a capture handle and its resolver.
func NewPendingCapture() (*PendingCapture, *Resolver) {
	p := &PendingCapture{
		exposed:   make(chan exposureResult, 1),
		processed: make(chan processingResult, 1),
	}
	return p, &Resolver{p: p}
}

// ResolveExposure completes the hardware stage. Only the first call counts.
func (r *Resolver) ResolveExposure(rs ResolvedSettings, err error) {
	r.exposureOnce.Do(func() {
		r.p.exposed <- exposureResult{settings: rs, err: err}
	})
}

// ResolveProcessing completes the processing stage. Only the first call counts.
func (r *Resolver) ResolveProcessing(photo *Photo, err error) {
	if photo == nil && err == nil {
		err = errors.New("camera: processing produced no photo")
	}
	r.processOnce.Do(func() {
		r.p.processed <- processingResult{photo: photo, err: err}
	})
}

// Exposed waits for the hardware stage.
func (p *PendingCapture) Exposed(ctx context.Context) (*Exposure, error) {
	select {
	case res := <-p.exposed:
		if res.err != nil {
			return nil, res.err
		}
		return &Exposure{Settings: res.settings, processed: p.processed}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Processed waits for the processing stage.
func (e *Exposure) Processed(ctx context.Context) (*Photo, error) {
	select {
	case res := <-e.processed:
		return res.photo, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
