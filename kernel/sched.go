package kernel

// Policy selects the next-task algorithm. A kernel uses exactly one.
type Policy uint8

const (
	// PolicyPriority runs the most urgent ready task, round-robin among equals.
	PolicyPriority Policy = iota
	// PolicyRoundRobin cycles through ready tasks ignoring priority. The idle
	// task is always eligible.
	PolicyRoundRobin
)

func (p Policy) String() string {
	switch p {
	case PolicyPriority:
		return "priority"
	case PolicyRoundRobin:
		return "round-robin"
	default:
		return "unknown"
	}
}

// selectPriority returns the first ready task after cur, cyclically, whose
// priority equals the most urgent ready priority in the table.
func selectPriority(tasks []tcb, cur TaskID) TaskID {
	n := len(tasks)
	if n == 0 {
		return IdleTask
	}

	best := IdlePriority
	for i := range tasks {
		if tasks[i].state == Ready && tasks[i].priority < best {
			best = tasks[i].priority
		}
	}

	for i := 0; i < n; i++ {
		id := (int(cur) + 1 + i) % n
		st := &tasks[id]
		if st.state == Ready && st.priority == best {
			return TaskID(id)
		}
	}

	// Unreachable while the idle task stays ready.
	return IdleTask
}

// selectRoundRobin returns the first task after cur, cyclically, that is
// ready or is the idle task.
func selectRoundRobin(tasks []tcb, cur TaskID) TaskID {
	n := len(tasks)
	if n == 0 {
		return IdleTask
	}

	for i := 0; i < n; i++ {
		id := (int(cur) + 1 + i) % n
		if TaskID(id) == IdleTask || tasks[id].state == Ready {
			return TaskID(id)
		}
	}
	return IdleTask
}
