// Package armv7m builds kernel task frames for Cortex-M3/M4/M7 cores.
//
// The exception entry and exit code that saves R4-R11 and EXC_RETURN on
// PendSV lives outside Go; this package prepares the stack image that code
// expects and provides the switch trigger and interrupt masking around it.
package armv7m

import (
	"unsafe"

	"minirtos/kernel"
)

const (
	// HardwareFrameWords is the frame stacked by the core on exception entry:
	// R0-R3, R12, LR, PC, xPSR.
	HardwareFrameWords = 8
	// FrameWords is the full initial image: hardware frame, EXC_RETURN, R4-R11.
	FrameWords = HardwareFrameWords + 1 + 8

	// InitialXPSR has only the Thumb bit set.
	InitialXPSR = 0x01000000
	// ExcReturnThreadPSP returns to thread mode on the process stack.
	ExcReturnThreadPSP = 0xFFFFFFFD
)

// InitStack writes the initial frame at the top of stack so that an
// exception return starts executing at pc with r0 as its argument. It returns
// the index of the saved stack pointer within stack, or -1 if the stack
// cannot hold the frame.
//
// Layout from the top: xPSR, PC, LR, R12, R3, R2, R1, R0, EXC_RETURN, R4-R11.
func InitStack(stack []uint32, pc, r0 uint32) int {
	if len(stack) < FrameWords {
		return -1
	}
	sp := len(stack)
	push := func(v uint32) {
		sp--
		stack[sp] = v
	}

	push(InitialXPSR)
	push(pc)
	push(0) // LR
	push(0x12)
	push(0x03)
	push(0x02)
	push(0x01)
	push(r0)

	push(ExcReturnThreadPSP)
	for i := 0; i < 8; i++ {
		push(0)
	}
	return sp
}

// Hardware is the CPU surface the port drives.
type Hardware interface {
	DisableInterrupts() uintptr
	RestoreInterrupts(state uintptr)
	PendSV()
	WaitForInterrupt()
}

type binding struct {
	entry kernel.Entry
	arg   any
}

// Port implements kernel.Port for ARMv7-M.
//
// Go functions have no address an exception return can jump to, so every
// frame starts at Trampoline with the task's binding index in R0. The
// trampoline calls Dispatch with that index.
type Port struct {
	Trampoline uint32

	hw       Hardware
	bindings []binding

	depth int
	saved uintptr
}

// New returns a port whose frames start at trampoline.
func New(trampoline uint32, hw Hardware) *Port {
	return &Port{Trampoline: trampoline, hw: hw}
}

// FrameWords implements kernel.FrameSizer.
func (p *Port) FrameWords() int { return FrameWords }

// BuildInitialFrame writes the initial image for entry(arg) and returns the
// saved stack pointer as the context.
func (p *Port) BuildInitialFrame(entry kernel.Entry, arg any, stack []uint32) kernel.Context {
	idx := len(p.bindings)
	sp := InitStack(stack, p.Trampoline, uint32(idx))
	if sp < 0 {
		return 0
	}
	p.bindings = append(p.bindings, binding{entry: entry, arg: arg})
	return kernel.Context(uintptr(unsafe.Pointer(&stack[sp])))
}

// Dispatch runs the task bound to idx. It is called by the trampoline with
// the R0 value from the task's initial frame.
func (p *Port) Dispatch(idx uint32) {
	if int(idx) >= len(p.bindings) {
		return
	}
	b := p.bindings[idx]
	b.entry(b.arg)
}

// RequestSwitch pends PendSV.
func (p *Port) RequestSwitch() {
	p.hw.PendSV()
}

// EnterCritical masks interrupts. Calls nest; the outermost ExitCritical
// restores the mask saved by the outermost EnterCritical.
func (p *Port) EnterCritical() {
	state := p.hw.DisableInterrupts()
	if p.depth == 0 {
		p.saved = state
	}
	p.depth++
}

func (p *Port) ExitCritical() {
	if p.depth == 0 {
		return
	}
	p.depth--
	if p.depth == 0 {
		p.hw.RestoreInterrupts(p.saved)
	}
}

func (p *Port) WaitForInterrupt() {
	p.hw.WaitForInterrupt()
}
