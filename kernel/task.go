package kernel

// TaskID is a stable index into the task table.
type TaskID uint8

// IdleTask is the slot reserved for the idle task.
const IdleTask TaskID = 0

// Priority ranks tasks; a lower value is more urgent.
type Priority uint8

// IdlePriority is the numeric ceiling, held only by the idle task.
const IdlePriority Priority = 255

// State is the scheduling state of a task.
type State uint8

const (
	Ready State = iota
	Blocked
	// Suspended is reserved. Nothing in the kernel moves a task into it.
	Suspended
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Context is a saved execution context handle produced by the port.
//
// The kernel stores and swaps it but never looks inside.
type Context uintptr

// Entry is a task body. It receives the argument given at creation.
type Entry func(arg any)

// tcb is a task control block.
type tcb struct {
	ctx      Context
	priority Priority
	state    State
	wake     uint32
}

// TaskInfo is a copy of a task control block for observers.
type TaskInfo struct {
	ID       TaskID
	Priority Priority
	State    State
	WakeTick uint32
}
