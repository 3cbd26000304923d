// Package soft is a software port for the kernel.
//
// Each task runs on its own goroutine and exactly one of them owns the CPU at
// a time; a context switch hands the CPU to the next goroutine and parks the
// previous one. Tick interrupts raised from outside are delivered at
// preemption points: when interrupts are unmasked, inside WaitForInterrupt,
// and at explicit Preempt calls. A requested switch is pended and taken when
// the CPU returns to task level, like PendSV on ARMv7-M.
package soft

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"minirtos/kernel"
)

// FrameWords is the stack reserved for a task's initial frame, matching the
// ARMv7-M image (hardware frame, EXC_RETURN, R4-R11).
const FrameWords = 17

// ErrHalted is returned by Run after a task called Halt.
var ErrHalted = errors.New("soft: halted")

// Kernel is the view of the kernel driven by the port's interrupt paths.
type Kernel interface {
	kernel.Switcher
	Tick()
}

// Logger receives diagnostic lines.
type Logger interface {
	WriteLineString(s string)
}

type frame struct {
	entry   kernel.Entry
	arg     any
	resume  chan struct{}
	started bool
}

// Port is a goroutine-backed implementation of kernel.Port.
type Port struct {
	log Logger
	k   Kernel

	frames []*frame

	// CPU-owner state: touched only by the goroutine holding the CPU.
	mask          int
	inISR         bool
	switchPending bool
	running       bool

	pending atomic.Uint32
	irq     chan struct{}

	halt     chan struct{}
	haltOnce sync.Once
	err      error
	tasks    sync.WaitGroup

	switches atomic.Uint64
}

// New returns a port. log may be nil.
func New(log Logger) *Port {
	return &Port{
		log:  log,
		irq:  make(chan struct{}, 1),
		halt: make(chan struct{}),
	}
}

// FrameWords implements kernel.FrameSizer.
func (p *Port) FrameWords() int { return FrameWords }

// BuildInitialFrame records entry(arg) and returns its context token. The
// stack is only checked for size; task goroutines run on Go stacks.
func (p *Port) BuildInitialFrame(entry kernel.Entry, arg any, stack []uint32) kernel.Context {
	_ = stack
	p.frames = append(p.frames, &frame{
		entry:  entry,
		arg:    arg,
		resume: make(chan struct{}, 1),
	})
	return kernel.Context(len(p.frames))
}

// RequestSwitch pends a switch. It is taken immediately when called from task
// level with interrupts unmasked, otherwise on the next return to task level.
func (p *Port) RequestSwitch() {
	p.switchPending = true
	if !p.running || p.inISR || p.mask > 0 {
		return
	}
	p.Preempt()
}

// EnterCritical masks interrupt delivery. Calls nest.
func (p *Port) EnterCritical() {
	p.mask++
}

// ExitCritical undoes one EnterCritical. Leaving the outermost section
// delivers anything that became pending while masked.
func (p *Port) ExitCritical() {
	if p.mask == 0 {
		return
	}
	p.mask--
	if p.mask == 0 && p.running && !p.inISR {
		p.Preempt()
	}
}

// WaitForInterrupt parks the CPU until a tick is raised or the port halts.
func (p *Port) WaitForInterrupt() {
	if p.pending.Load() == 0 {
		select {
		case <-p.irq:
		case <-p.halt:
		}
	}
	p.Preempt()
}

// Interrupt raises one tick interrupt. It is safe to call from any goroutine.
func (p *Port) Interrupt() {
	p.pending.Add(1)
	select {
	case p.irq <- struct{}{}:
	default:
	}
}

// Switches returns the number of context switches performed.
func (p *Port) Switches() uint64 {
	return p.switches.Load()
}

// Preempt is a preemption point: it services the ticks pending on entry, one
// at a time, each followed by any switch it requested. A task that gets the
// CPU back returns to its own code before more ticks are serviced. It must be
// called by the goroutine that owns the CPU.
func (p *Port) Preempt() {
	if !p.running {
		return
	}
	if p.halted() {
		runtime.Goexit()
	}
	if p.mask > 0 || p.inISR {
		return
	}

	// Only the CPU owner decrements pending, so Load then Add cannot underflow.
	n := p.pending.Load()
	for i := uint32(0); i < n && p.pending.Load() > 0; i++ {
		p.pending.Add(^uint32(0))
		p.inISR = true
		p.k.Tick()
		p.inISR = false
		if p.switchPending && p.contextSwitch() {
			return
		}
	}
	if p.switchPending {
		p.contextSwitch()
	}
}

// contextSwitch saves the current task, picks the next one, and hands it the
// CPU. It reports whether the CPU changed hands, and returns only once the
// calling task is restored.
func (p *Port) contextSwitch() bool {
	p.switchPending = false

	// Frame tokens never move on this port, so saving leaves the slot as is.
	prev := p.frameAt(*p.k.ContextSlot(p.k.CurrentTask()))

	nextID := p.k.PickNext()
	next := p.frameAt(*p.k.ContextSlot(nextID))
	if next == prev {
		return false
	}

	p.switches.Add(1)
	p.restore(next)
	p.park(prev)
	return true
}

func (p *Port) frameAt(ctx kernel.Context) *frame {
	i := int(ctx) - 1
	if i < 0 || i >= len(p.frames) {
		panic(fmt.Sprintf("soft: invalid context %d", ctx))
	}
	return p.frames[i]
}

// restore gives the CPU to f. The caller must not touch port or kernel state
// afterwards until it is resumed.
func (p *Port) restore(f *frame) {
	if !f.started {
		f.started = true
		p.tasks.Add(1)
		go p.start(f)
		return
	}
	f.resume <- struct{}{}
}

func (p *Port) park(f *frame) {
	select {
	case <-f.resume:
	case <-p.halt:
		runtime.Goexit()
	}
}

func (p *Port) start(f *frame) {
	defer p.tasks.Done()
	f.entry(f.arg)

	// A task function returned. There is no caller to return to, so the
	// task keeps its slot and idles.
	if p.log != nil {
		p.log.WriteLineString(fmt.Sprintf("soft: task %d returned", p.k.CurrentTask()))
	}
	for {
		p.WaitForInterrupt()
	}
}

// Run restores the kernel's current task and blocks until the port halts and
// every task goroutine has ended. It returns ctx's error on cancellation and
// ErrHalted after Halt. A task that never reaches a preemption point keeps
// Run from returning.
func (p *Port) Run(ctx context.Context, k Kernel) error {
	p.k = k
	p.running = true
	p.switchPending = false

	go func() {
		select {
		case <-ctx.Done():
			p.stop(ctx.Err())
			// Wake an idle CPU so it notices.
			p.Interrupt()
		case <-p.halt:
		}
	}()

	first := p.frameAt(*k.ContextSlot(k.CurrentTask()))
	p.restore(first)

	<-p.halt
	p.tasks.Wait()
	p.running = false
	return p.err
}

// Halt stops the port from task level. It does not return.
func (p *Port) Halt() {
	p.stop(ErrHalted)
	runtime.Goexit()
}

func (p *Port) stop(err error) {
	p.haltOnce.Do(func() {
		p.err = err
		close(p.halt)
	})
}

func (p *Port) halted() bool {
	select {
	case <-p.halt:
		return true
	default:
		return false
	}
}
