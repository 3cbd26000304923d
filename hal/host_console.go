//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-tty"
)

// ErrQuit is returned by RunConsole when the user quits.
var ErrQuit = errors.New("console: quit")

// RunConsole runs the system in single-step mode: ticks only advance on key
// presses read from the controlling terminal.
//
//	space, enter  one tick
//	t             ten ticks
//	h             a hundred ticks
//	q             quit
func RunConsole(ctx context.Context, newApp func(HAL) func() error) error {
	term, err := tty.Open()
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}
	defer term.Close()

	h := New().(*hostHAL)
	step := newApp(h)
	h.logger.WriteLineString("console: space=1 tick, t=10, h=100, q=quit")

	keys := make(chan rune)
	errs := make(chan error, 1)
	go func() {
		for {
			r, err := term.ReadRune()
			if err != nil {
				errs <- err
				return
			}
			select {
			case keys <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("read tty: %w", err)
		case r := <-keys:
			n := keyTicks(r)
			if n < 0 {
				return ErrQuit
			}
			h.t.stepN(uint64(n))
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
		}
	}
}

// keyTicks maps a key to a tick count; -1 quits.
func keyTicks(r rune) int {
	switch r {
	case ' ', '\r', '\n':
		return 1
	case 't':
		return 10
	case 'h':
		return 100
	case 'q', 'Q', 0x03:
		return -1
	default:
		return 0
	}
}
