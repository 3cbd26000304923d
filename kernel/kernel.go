package kernel

import "errors"

const (
	// DefaultMaxTasks is the task table capacity, idle task included.
	DefaultMaxTasks = 5
	// DefaultIdleStackWords is the idle task stack size in 32-bit words.
	DefaultIdleStackWords = 128
	// DefaultTraceDepth is the number of trace events buffered between drains.
	DefaultTraceDepth = 64

	maxTableSize = 256
)

var (
	ErrTableFull        = errors.New("kernel: task table full")
	ErrReservedPriority = errors.New("kernel: priority reserved for idle task")
	ErrStackTooSmall    = errors.New("kernel: stack too small for initial frame")
	ErrNilEntry         = errors.New("kernel: nil task entry")
	ErrSealed           = errors.New("kernel: task table sealed")
)

// Config holds the fixed kernel configuration. Zero values select defaults.
type Config struct {
	MaxTasks       int
	IdleStackWords int
	Policy         Policy

	// TraceDepth sizes the trace ring. Negative disables tracing.
	TraceDepth int

	// Debug enables misuse assertions, reported through OnFault.
	Debug   bool
	OnFault func(Fault)
}

func (c Config) withDefaults() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = DefaultMaxTasks
	}
	if c.MaxTasks > maxTableSize {
		c.MaxTasks = maxTableSize
	}
	if c.IdleStackWords <= 0 {
		c.IdleStackWords = DefaultIdleStackWords
	}
	if c.TraceDepth == 0 {
		c.TraceDepth = DefaultTraceDepth
	}
	return c
}

// Kernel is the scheduler state: task table, cursor, and tick counter.
//
// Task-level methods (CreateTask, BlockCurrent, Yield, Ticks, Tasks,
// DrainTrace) mask interrupts through the port while they touch shared state.
// Tick and the Switcher methods are interrupt-level entry points and must
// only be called from the port's tick and switch paths.
type Kernel struct {
	cfg  Config
	port Port

	tasks   []tcb
	current TaskID
	ticks   uint32
	sealed  bool

	trace traceRing
	fault faultState
}

// New initializes a kernel on port and creates the idle task in slot 0.
func New(port Port, cfg Config) *Kernel {
	cfg = cfg.withDefaults()
	k := &Kernel{
		cfg:   cfg,
		port:  port,
		tasks: make([]tcb, 0, cfg.MaxTasks),
		trace: newTraceRing(cfg.TraceDepth),
	}
	k.fault.handler = cfg.OnFault

	idleStack := make([]uint32, cfg.IdleStackWords)
	k.addTask(k.idle, nil, IdlePriority, idleStack)
	return k
}

func (k *Kernel) idle(any) {
	for {
		k.port.WaitForInterrupt()
	}
}

// Policy returns the selection policy in use.
func (k *Kernel) Policy() Policy { return k.cfg.Policy }

// Capacity returns the task table size.
func (k *Kernel) Capacity() int { return k.cfg.MaxTasks }

// CreateTask registers a task that will start at entry(arg) on stack.
//
// It fails without side effects when the table is full, the priority is
// reserved, the stack cannot hold the port's initial frame, or the table has
// been sealed.
func (k *Kernel) CreateTask(entry Entry, arg any, prio Priority, stack []uint32) (TaskID, error) {
	if entry == nil {
		return 0, ErrNilEntry
	}
	if prio == IdlePriority {
		return 0, ErrReservedPriority
	}
	if fs, ok := k.port.(FrameSizer); ok && len(stack) < fs.FrameWords() {
		return 0, ErrStackTooSmall
	}

	k.port.EnterCritical()
	defer k.port.ExitCritical()

	if k.sealed {
		return 0, ErrSealed
	}
	if len(k.tasks) >= k.cfg.MaxTasks {
		return 0, ErrTableFull
	}
	return k.addTask(entry, arg, prio, stack), nil
}

func (k *Kernel) addTask(entry Entry, arg any, prio Priority, stack []uint32) TaskID {
	id := TaskID(len(k.tasks))
	k.tasks = append(k.tasks, tcb{
		ctx:      k.port.BuildInitialFrame(entry, arg, stack),
		priority: prio,
		state:    Ready,
	})
	k.trace.push(Event{Kind: EventCreate, Tick: k.ticks, Task: id, Arg: uint32(prio)})
	return id
}

// Seal ends the startup phase. Later CreateTask calls fail with ErrSealed.
func (k *Kernel) Seal() {
	k.port.EnterCritical()
	k.sealed = true
	k.port.ExitCritical()
}

// TaskCount returns the number of tasks in the table, idle included.
func (k *Kernel) TaskCount() int {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	return len(k.tasks)
}

// Ticks returns the system tick counter.
//
// The counter is 32 bits and wraps after 2^32 ticks; wake comparisons are not
// wraparound safe, which bounds uptime.
func (k *Kernel) Ticks() uint32 {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	return k.ticks
}

// Task returns a copy of the control block of id.
func (k *Kernel) Task(id TaskID) (TaskInfo, bool) {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	if int(id) >= len(k.tasks) {
		return TaskInfo{}, false
	}
	return k.info(id), true
}

// Tasks appends a copy of every control block to dst.
func (k *Kernel) Tasks(dst []TaskInfo) []TaskInfo {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	for i := range k.tasks {
		dst = append(dst, k.info(TaskID(i)))
	}
	return dst
}

func (k *Kernel) info(id TaskID) TaskInfo {
	st := &k.tasks[id]
	return TaskInfo{ID: id, Priority: st.priority, State: st.state, WakeTick: st.wake}
}

// DrainTrace moves buffered trace events into dst and returns how many were
// copied.
func (k *Kernel) DrainTrace(dst []Event) int {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	n := 0
	for n < len(dst) {
		ev, ok := k.trace.pop()
		if !ok {
			break
		}
		dst[n] = ev
		n++
	}
	return n
}

// TraceDropped returns the number of trace events lost to a full ring.
func (k *Kernel) TraceDropped() uint32 {
	k.port.EnterCritical()
	defer k.port.ExitCritical()
	return k.trace.dropped
}

// CurrentTask returns the task the cursor points at.
func (k *Kernel) CurrentTask() TaskID {
	return k.current
}

// ContextSlot returns the saved-context slot of id, or nil for an unknown id.
func (k *Kernel) ContextSlot(id TaskID) *Context {
	if int(id) >= len(k.tasks) {
		if k.cfg.Debug {
			k.raise(Fault{Task: id, Reason: "context slot of unknown task"})
		}
		return nil
	}
	return &k.tasks[id].ctx
}

// PickNext selects the next task to run and moves the cursor to it.
//
// The result depends only on the table and the cursor.
func (k *Kernel) PickNext() TaskID {
	var next TaskID
	switch k.cfg.Policy {
	case PolicyRoundRobin:
		next = selectRoundRobin(k.tasks, k.current)
	default:
		next = selectPriority(k.tasks, k.current)
	}
	if next != k.current {
		k.trace.push(Event{Kind: EventSwitch, Tick: k.ticks, Task: next, From: k.current})
	}
	k.current = next
	return next
}

// Tick advances time by one tick, readies every delayed task whose wake tick
// has been reached, and requests a switch. It runs once per timer interrupt.
func (k *Kernel) Tick() {
	k.ticks++

	for i := 1; i < len(k.tasks); i++ {
		st := &k.tasks[i]
		if st.state != Blocked || k.ticks < st.wake {
			continue
		}
		st.state = Ready
		st.wake = 0
		k.trace.push(Event{Kind: EventWake, Tick: k.ticks, Task: TaskID(i)})
	}

	k.port.RequestSwitch()
}

// BlockCurrent blocks the calling task for d ticks and requests a switch.
// It returns once the task has been scheduled again. d <= 0 does nothing.
//
// The idle task must never block.
func (k *Kernel) BlockCurrent(d int32) {
	if d <= 0 {
		return
	}

	k.port.EnterCritical()
	id := k.current
	if k.cfg.Debug && id == IdleTask {
		k.port.ExitCritical()
		k.raise(Fault{Task: id, Reason: "idle task blocked"})
		return
	}
	st := &k.tasks[id]
	st.wake = k.ticks + uint32(d)
	st.state = Blocked
	k.trace.push(Event{Kind: EventBlock, Tick: k.ticks, Task: id, Arg: st.wake})
	// The switch stays pending until interrupts are unmasked.
	k.port.RequestSwitch()
	k.port.ExitCritical()
}

// Yield gives up the rest of the calling task's slice.
func (k *Kernel) Yield() {
	k.port.RequestSwitch()
}
