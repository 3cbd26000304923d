// Package rtos is the application interface to the kernel: create tasks at
// startup, start scheduling, and, from task code, delay, yield, and read the
// tick counter.
package rtos

import (
	"context"
	"fmt"

	"minirtos/kernel"
	"minirtos/port/soft"
)

// Config configures a System.
type Config struct {
	Kernel kernel.Config
	// TickHz is the tick interrupt rate, for log output only.
	TickHz int
}

// Logger receives diagnostic lines.
type Logger interface {
	WriteLineString(s string)
}

// System is a kernel running on the software port.
type System struct {
	cfg  Config
	log  Logger
	port *soft.Port
	k    *kernel.Kernel

	names []string
}

// New initializes the kernel and its idle task. log may be nil.
func New(cfg Config, log Logger) *System {
	p := soft.New(log)
	k := kernel.New(p, cfg.Kernel)
	s := &System{
		cfg:   cfg,
		log:   log,
		port:  p,
		k:     k,
		names: make([]string, k.Capacity()),
	}
	s.names[kernel.IdleTask] = "idle"
	return s
}

// Kernel returns the underlying kernel.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// CreateTask registers a named task with a stack of stackWords words.
func (s *System) CreateTask(name string, entry kernel.Entry, arg any, prio kernel.Priority, stackWords int) (kernel.TaskID, error) {
	id, err := s.k.CreateTask(entry, arg, prio, make([]uint32, stackWords))
	if err != nil {
		return 0, fmt.Errorf("create task %q: %w", name, err)
	}
	s.names[id] = name
	s.logf("rtos: task %d %q prio %d", id, name, prio)
	return id, nil
}

// Name returns the name given to id at creation.
func (s *System) Name(id kernel.TaskID) string {
	if int(id) >= len(s.names) {
		return ""
	}
	return s.names[id]
}

// Start seals the task table and runs the scheduler. It returns only when ctx
// is done or a task calls Halt.
func (s *System) Start(ctx context.Context) error {
	s.k.Seal()
	s.logf("rtos: start, %d tasks, %s policy, %d Hz tick",
		s.k.TaskCount(), s.k.Policy(), s.cfg.TickHz)
	return s.port.Run(ctx, s.k)
}

// Interrupt is the tick interrupt entry point. It is safe to call from any
// goroutine.
func (s *System) Interrupt() {
	s.port.Interrupt()
}

// Delay blocks the calling task for ticks ticks. ticks <= 0 returns at once.
func (s *System) Delay(ticks int32) {
	s.k.BlockCurrent(ticks)
}

// Yield lets another ready task of equal priority run.
func (s *System) Yield() {
	s.k.Yield()
}

// Tick returns the number of ticks since start.
func (s *System) Tick() uint32 {
	return s.k.Ticks()
}

// Current returns the calling task.
func (s *System) Current() kernel.TaskID {
	return s.k.CurrentTask()
}

// Work is a preemption point for task code that computes without calling
// into the kernel.
func (s *System) Work() {
	s.port.Preempt()
}

// Halt stops the scheduler from task code; Start returns soft.ErrHalted.
func (s *System) Halt() {
	s.port.Halt()
}

// Switches returns the number of context switches so far.
func (s *System) Switches() uint64 {
	return s.port.Switches()
}

func (s *System) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.WriteLineString(fmt.Sprintf(format, args...))
}
