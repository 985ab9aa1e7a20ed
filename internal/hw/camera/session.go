package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/RawCapture/internal/debug"
)

var (
	ErrInputAttached  = errors.New("camera: session already has an input")
	ErrOutputAttached = errors.New("camera: session already has an output")
	ErrNoInput        = errors.New("camera: session has no input")
)

// DeviceBinder is implemented by outputs that capture from the session's input.
type DeviceBinder interface {
	BindDevice(d Device)
}

// Session binds one input device to one photo output.
type Session struct {
	mu      sync.Mutex
	input   Device
	output  PhotoOutput
	running bool
}

// NewSession returns an empty, stopped session.
func NewSession() *Session {
	return &Session{}
}

// AddInput attaches the capture device.
func (s *Session) AddInput(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != nil {
		return ErrInputAttached
	}
	s.input = d
	s.bind()
	return nil
}

// AddOutput attaches the photo output.
func (s *Session) AddOutput(o PhotoOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output != nil {
		return ErrOutputAttached
	}
	s.output = o
	s.bind()
	return nil
}

func (s *Session) bind() {
	if s.input == nil || s.output == nil {
		return
	}
	if b, ok := s.output.(DeviceBinder); ok {
		b.BindDevice(s.input)
	}
}

// Input returns the attached device, or nil.
func (s *Session) Input() Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Start starts the input device. Starting a running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.input == nil {
		return ErrNoInput
	}
	if err := s.input.Start(ctx); err != nil {
		return fmt.Errorf("start device %s: %w", s.input.ID(), err)
	}
	s.running = true
	debug.Info("Session: running (device=%s)", s.input.ID())
	return nil
}

// Stop stops the input device and releases it. Stopping twice is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	debug.Info("Session: stopped (device=%s)", s.input.ID())
	if err := s.input.Stop(); err != nil {
		return fmt.Errorf("stop device %s: %w", s.input.ID(), err)
	}
	return nil
}

// Running reports whether the session is delivering frames.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
