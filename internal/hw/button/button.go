package button

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/RawCapture/internal/debug"
	"github.com/cjeanneret/RawCapture/internal/hw/gpio"
)

// Config holds the hardware configuration for a push button.
type Config struct {
	Pin          int           // BCM input pin, wired to GND through the button
	PollInterval time.Duration // time between two reads. 0 defaults to 10ms.
	Debounce     time.Duration // LOW must hold this long before a press counts
}

// Button turns a pull-up GPIO input into press events.
// The pin reads HIGH when released and LOW when pressed.
type Button struct {
	gpio  gpio.Driver
	cfg   Config
	polls int // consecutive LOW reads needed for a press
}

// New configures the pin as a pull-up input.
func New(g gpio.Driver, cfg Config) (*Button, error) {
	if cfg.Pin <= 0 {
		return nil, fmt.Errorf("button pin must be > 0, got %d", cfg.Pin)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if err := g.SetupPin(cfg.Pin, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("setup button pin %d: %w", cfg.Pin, err)
	}

	polls := int(cfg.Debounce / cfg.PollInterval)
	if cfg.Debounce%cfg.PollInterval != 0 {
		polls++
	}
	if polls < 1 {
		polls = 1
	}
	return &Button{gpio: g, cfg: cfg, polls: polls}, nil
}

// Run polls the pin until ctx is cancelled and calls onPress once per press.
// A press fires after the pin has read LOW for the debounce time; the button
// must be released (HIGH) before another press can fire.
func (b *Button) Run(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	debug.Verbose("Button: watching pin %d (poll=%v, debounce=%d reads)", b.cfg.Pin, b.cfg.PollInterval, b.polls)

	low := 0
	fired := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		lvl, err := b.gpio.ReadPin(b.cfg.Pin)
		if err != nil {
			return fmt.Errorf("read button pin %d: %w", b.cfg.Pin, err)
		}

		if lvl == gpio.High {
			low = 0
			fired = false
			continue
		}

		low++
		if !fired && low >= b.polls {
			fired = true
			debug.Live("Button: press on pin %d", b.cfg.Pin)
			onPress()
		}
	}
}
