// Package scope keeps a rolling per-task timeline of scheduler activity, fed
// from kernel trace events, and draws it into a framebuffer.
package scope

import "minirtos/kernel"

// Level is what a task did during one timeline column. Higher levels win
// when several states fall into the same column.
type Level uint8

const (
	LevelNone Level = iota
	LevelBlocked
	LevelReady
	LevelRunning
)

func (l Level) String() string {
	switch l {
	case LevelBlocked:
		return "blocked"
	case LevelReady:
		return "ready"
	case LevelRunning:
		return "running"
	default:
		return "none"
	}
}

// Scope is the timeline. It is not safe for concurrent use.
type Scope struct {
	names       []string
	ticksPerCol uint32

	state []Level
	grid  [][]Level // [task][column ring]

	started  bool
	col      uint32 // absolute index of the newest column
	tick     uint32
	switches uint64
}

// New returns a timeline for the named tasks, keeping cols columns of
// ticksPerCol ticks each. Task 0 starts running; the rest start ready.
func New(names []string, cols int, ticksPerCol uint32) *Scope {
	if cols <= 0 {
		cols = 1
	}
	if ticksPerCol == 0 {
		ticksPerCol = 1
	}
	s := &Scope{
		names:       append([]string(nil), names...),
		ticksPerCol: ticksPerCol,
		state:       make([]Level, len(names)),
		grid:        make([][]Level, len(names)),
	}
	for i := range s.grid {
		s.grid[i] = make([]Level, cols)
		s.state[i] = LevelReady
	}
	if len(s.state) > 0 {
		s.state[kernel.IdleTask] = LevelRunning
	}
	return s
}

// Columns returns the timeline width in columns.
func (s *Scope) Columns() int {
	if len(s.grid) == 0 {
		return 0
	}
	return len(s.grid[0])
}

// Tasks returns the number of timeline rows.
func (s *Scope) Tasks() int { return len(s.names) }

// Name returns the label of row id.
func (s *Scope) Name(id kernel.TaskID) string {
	if int(id) >= len(s.names) {
		return ""
	}
	return s.names[id]
}

// Tick returns the tick of the last fed event.
func (s *Scope) Tick() uint32 { return s.tick }

// Switches returns the number of switch events fed so far.
func (s *Scope) Switches() uint64 { return s.switches }

// State returns the current state of a task as tracked from events.
func (s *Scope) State(id kernel.TaskID) Level {
	if int(id) >= len(s.state) {
		return LevelNone
	}
	return s.state[id]
}

// Feed applies one trace event.
func (s *Scope) Feed(ev kernel.Event) {
	s.advance(ev.Tick)

	switch ev.Kind {
	case kernel.EventCreate, kernel.EventWake:
		s.set(ev.Task, LevelReady)
	case kernel.EventBlock:
		s.set(ev.Task, LevelBlocked)
	case kernel.EventSwitch:
		s.switches++
		if s.State(ev.From) == LevelRunning {
			s.set(ev.From, LevelReady)
		}
		s.set(ev.Task, LevelRunning)
	}
}

// Advance moves the timeline up to tick without an event, carrying the
// current states forward.
func (s *Scope) Advance(tick uint32) {
	s.advance(tick)
}

// Cell returns the level of task id age columns before the newest one.
func (s *Scope) Cell(id kernel.TaskID, age int) Level {
	cols := s.Columns()
	if int(id) >= len(s.grid) || age < 0 || age >= cols || !s.started {
		return LevelNone
	}
	if uint32(age) > s.col {
		return LevelNone
	}
	return s.grid[id][int((s.col-uint32(age))%uint32(cols))]
}

func (s *Scope) advance(tick uint32) {
	if tick > s.tick || !s.started {
		s.tick = tick
	}
	c := tick / s.ticksPerCol
	cols := uint32(s.Columns())
	if cols == 0 {
		return
	}

	if !s.started {
		s.started = true
		s.col = c
		s.fill(c)
		return
	}
	if c <= s.col {
		return
	}

	if c-s.col > cols {
		s.col = c - cols
	}
	for s.col < c {
		s.col++
		s.fill(s.col)
	}
}

// fill starts column c with the current states.
func (s *Scope) fill(c uint32) {
	i := int(c % uint32(s.Columns()))
	for id := range s.grid {
		s.grid[id][i] = s.state[id]
	}
}

func (s *Scope) set(id kernel.TaskID, l Level) {
	if int(id) >= len(s.state) {
		return
	}
	s.state[id] = l
	if !s.started {
		return
	}
	cell := &s.grid[id][int(s.col%uint32(s.Columns()))]
	if l > *cell {
		*cell = l
	}
}
