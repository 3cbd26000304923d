//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is how often the runner samples the wall clock.
	Hz int
	// Ticks stops the runner once that many kernel ticks were emitted
	// (0 = run forever).
	Ticks uint64
}

// RunHeadless runs the system without opening a window. step is called after
// each wall-clock sample; a non-nil error ends the run.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1000
	}

	h := New().(*hostHAL)
	step := newApp(h)

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.step(1)
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			if cfg.Ticks > 0 && h.t.seq >= cfg.Ticks {
				return nil
			}
		}
	}
}
