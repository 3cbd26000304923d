package kernel

// Port is the architecture layer the kernel runs on.
//
// It owns the saved-context format, the switch trigger, and interrupt masking.
type Port interface {
	// BuildInitialFrame prepares stack so that restoring the returned context
	// starts entry(arg) as if returning from an interrupt.
	BuildInitialFrame(entry Entry, arg any, stack []uint32) Context

	// RequestSwitch pends a context switch. Calling it while a switch is
	// already pending has no further effect.
	RequestSwitch()

	EnterCritical()
	ExitCritical()

	// WaitForInterrupt idles the CPU until the next interrupt. The idle task
	// loops on it forever.
	WaitForInterrupt()
}

// FrameSizer is implemented by ports whose initial frame needs a minimum
// number of stack words.
type FrameSizer interface {
	FrameWords() int
}

// Switcher is the part of the kernel the port's switch mechanism calls, in
// order: CurrentTask and ContextSlot to save, PickNext to select, ContextSlot
// again to restore.
type Switcher interface {
	CurrentTask() TaskID
	ContextSlot(id TaskID) *Context
	PickNext() TaskID
}
