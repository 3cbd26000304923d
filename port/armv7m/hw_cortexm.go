//go:build tinygo && cortexm

package armv7m

import (
	"device/arm"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

const (
	icsrAddr      = 0xE000ED04
	icsrPendSVSet = 1 << 28
)

type cpu struct{}

// CPU returns the hardware of the running core.
func CPU() Hardware { return cpu{} }

func (cpu) DisableInterrupts() uintptr {
	return uintptr(interrupt.Disable())
}

func (cpu) RestoreInterrupts(state uintptr) {
	interrupt.Restore(interrupt.State(state))
}

func (cpu) PendSV() {
	icsr := (*volatile.Register32)(unsafe.Pointer(uintptr(icsrAddr)))
	icsr.Set(icsrPendSVSet)
	arm.Asm("dsb")
	arm.Asm("isb")
}

func (cpu) WaitForInterrupt() {
	arm.Asm("wfi")
}
