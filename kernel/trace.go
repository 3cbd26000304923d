package kernel

// EventKind identifies a trace record.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventSwitch
	EventBlock
	EventWake
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventSwitch:
		return "switch"
	case EventBlock:
		return "block"
	case EventWake:
		return "wake"
	default:
		return "unknown"
	}
}

// Event is one scheduler trace record.
//
// For EventSwitch, From is the task switched away from and Task the task
// selected. For EventBlock, Arg holds the wake tick.
type Event struct {
	Kind EventKind
	Tick uint32
	Task TaskID
	From TaskID
	Arg  uint32
}

// traceRing is a fixed-capacity single-producer, single-consumer queue.
// It never allocates after construction; records that do not fit are counted
// and dropped.
type traceRing struct {
	head    uint32
	tail    uint32
	dropped uint32
	slots   []Event
}

func newTraceRing(depth int) traceRing {
	if depth <= 0 {
		return traceRing{}
	}
	return traceRing{slots: make([]Event, depth)}
}

func (r *traceRing) push(ev Event) bool {
	n := uint32(len(r.slots))
	if n == 0 {
		return false
	}
	if r.head-r.tail >= n {
		r.dropped++
		return false
	}
	r.slots[r.head%n] = ev
	r.head++
	return true
}

func (r *traceRing) pop() (Event, bool) {
	if r.tail == r.head {
		return Event{}, false
	}
	ev := r.slots[r.tail%uint32(len(r.slots))]
	r.tail++
	return ev, true
}
