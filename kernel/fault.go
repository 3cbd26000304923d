package kernel

import "sync"

// Fault describes a contract violation caught by a debug build of the kernel.
type Fault struct {
	Task   TaskID
	Reason string
	Stack  []byte
}

type faultState struct {
	once    sync.Once
	active  bool
	handler func(Fault)
}

// Faulted reports whether a fault has been raised on this kernel.
//
// Scheduler state after a fault is not trusted; the system needs a restart.
func (k *Kernel) Faulted() bool {
	return k.fault.active
}

// raise reports f once. Without a handler it panics, as a debug assertion.
func (k *Kernel) raise(f Fault) {
	k.fault.once.Do(func() {
		k.fault.active = true
		f.Stack = captureStack()
		if fn := k.fault.handler; fn != nil {
			fn(f)
			return
		}
		panic("kernel: " + f.Reason)
	})
}
