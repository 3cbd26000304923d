package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"minirtos/app/scope"
	"minirtos/hal"
	"minirtos/kernel"
	"minirtos/rtos"

	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Step once the scheduler stopped without an error.
var ErrStopped = errors.New("app: scheduler stopped")

// App is a running demo firmware instance.
type App struct {
	h     hal.HAL
	cfg   Config
	log   hal.Logger
	sys   *rtos.System
	scope *scope.Scope

	work []uint64

	cancel context.CancelFunc
	done   chan struct{}
	err    error

	mu    sync.Mutex
	fault *kernel.Fault
}

// New starts the firmware with the default config and returns its step
// function for host runners.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, DefaultConfig())
}

// NewWithConfig is New with an explicit task set. A config or start error is
// returned from the first step.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	a, err := Start(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	return a.Step
}

// Run starts the firmware and blocks forever (TinyGo/native entrypoint).
func Run(h hal.HAL) {
	RunWithConfig(h, DefaultConfig())
}

func RunWithConfig(h hal.HAL, cfg Config) {
	a, err := Start(h, cfg)
	if err != nil {
		if l := h.Logger(); l != nil {
			l.WriteLineString("app: " + err.Error())
		}
		select {}
	}
	<-a.done
	a.logf("app: scheduler stopped: %v", a.err)
	select {}
}

// Start builds the task set, starts the scheduler and forwards the HAL tick
// stream into it.
func Start(h hal.HAL, cfg Config) (*App, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		h:    h,
		cfg:  cfg,
		log:  h.Logger(),
		done: make(chan struct{}),
	}
	kcfg, err := cfg.kernelConfig(a.onFault)
	if err != nil {
		return nil, err
	}
	tickHz := 0
	if t := h.Time(); t != nil {
		tickHz = t.Hz()
	}
	a.sys = rtos.New(rtos.Config{Kernel: kcfg, TickHz: tickHz}, a.log)
	a.work = make([]uint64, a.sys.Kernel().Capacity())

	names := make([]string, len(cfg.Tasks)+1)
	names[kernel.IdleTask] = a.sys.Name(kernel.IdleTask)
	for _, tc := range cfg.Tasks {
		id, err := a.sys.CreateTask(tc.Name, a.entry(tc.Kind), tc, kernel.Priority(tc.Priority), tc.StackWords)
		if err != nil {
			return nil, err
		}
		names[id] = tc.Name
	}
	a.scope = scope.New(names, cfg.ScopeColumns, cfg.ScopeTicks)
	a.bootScreen()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.sys.Start(gctx)
	})
	if t := h.Time(); t != nil {
		if ch := t.Ticks(); ch != nil {
			g.Go(func() error {
				return forwardTicks(gctx, ch, a.sys)
			})
		}
	}
	go func() {
		a.err = g.Wait()
		close(a.done)
	}()
	return a, nil
}

// forwardTicks delivers one tick interrupt per value received on ch.
func forwardTicks(ctx context.Context, ch <-chan uint64, sys *rtos.System) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			sys.Interrupt()
		}
	}
}

// Step reports whether the firmware is still healthy. Host runners call it
// once per frame.
func (a *App) Step() error {
	if f := a.Fault(); f != nil {
		return fmt.Errorf("app: kernel fault in task %d: %s", f.Task, f.Reason)
	}
	select {
	case <-a.done:
		if a.err == nil {
			return ErrStopped
		}
		return a.err
	default:
		return nil
	}
}

// Close stops the scheduler and waits for it. Cancellation is not an error.
func (a *App) Close() error {
	a.cancel()
	<-a.done
	if errors.Is(a.err, context.Canceled) {
		return nil
	}
	return a.err
}

// Done is closed once the scheduler has stopped.
func (a *App) Done() <-chan struct{} { return a.done }

// System returns the underlying RTOS instance.
func (a *App) System() *rtos.System { return a.sys }

// Fault returns the first kernel fault, if any.
func (a *App) Fault() *kernel.Fault {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fault
}

// Work returns how many work units the named worker finished. Call it after
// Close.
func (a *App) Work(name string) uint64 {
	for id := range a.work {
		if a.sys.Name(kernel.TaskID(id)) == name {
			return a.work[id]
		}
	}
	return 0
}

func (a *App) logf(format string, args ...any) {
	if a.log == nil {
		return
	}
	a.log.WriteLineString(fmt.Sprintf(format, args...))
}
