package scope

import (
	"testing"

	"minirtos/hal"
	"minirtos/kernel"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) ClearRGB(r, g, b uint8)  {}

func (f *testFB) Present() error {
	f.presents++
	return nil
}

func (f *testFB) pixel(x, y int) uint16 {
	o := y*f.w*2 + x*2
	return uint16(f.buf[o]) | uint16(f.buf[o+1])<<8
}

func (f *testFB) rowHas(y int, px uint16) bool {
	for x := 0; x < f.w; x++ {
		if f.pixel(x, y) == px {
			return true
		}
	}
	return false
}

func switchTo(tick uint32, from, to kernel.TaskID) kernel.Event {
	return kernel.Event{Kind: kernel.EventSwitch, Tick: tick, From: from, Task: to}
}

func TestFeedTracksStates(t *testing.T) {
	s := New([]string{"idle", "a", "b"}, 8, 1)

	s.Feed(switchTo(1, 0, 1))
	if s.State(1) != LevelRunning || s.State(0) != LevelReady {
		t.Fatalf("after switch states = %v %v", s.State(0), s.State(1))
	}

	s.Feed(kernel.Event{Kind: kernel.EventBlock, Tick: 1, Task: 1, Arg: 5})
	s.Feed(switchTo(1, 1, 2))
	if s.State(1) != LevelBlocked || s.State(2) != LevelRunning {
		t.Fatalf("after block states = %v %v", s.State(1), s.State(2))
	}

	s.Feed(kernel.Event{Kind: kernel.EventWake, Tick: 5, Task: 1})
	if s.State(1) != LevelReady {
		t.Fatalf("after wake state = %v, want ready", s.State(1))
	}
	if s.Switches() != 2 || s.Tick() != 5 {
		t.Fatalf("switches, tick = %d, %d", s.Switches(), s.Tick())
	}
}

func TestCellKeepsHighestLevel(t *testing.T) {
	s := New([]string{"idle", "a"}, 4, 10)

	s.Feed(switchTo(3, 0, 1))
	s.Feed(kernel.Event{Kind: kernel.EventBlock, Tick: 4, Task: 1, Arg: 30})
	s.Feed(switchTo(4, 1, 0))

	if got := s.Cell(1, 0); got != LevelRunning {
		t.Fatalf("Cell(1, 0) = %v, want running", got)
	}

	s.Advance(25)
	if got := s.Cell(1, 0); got != LevelBlocked {
		t.Fatalf("Cell(1, 0) after advance = %v, want blocked", got)
	}
	if got := s.Cell(0, 1); got != LevelRunning {
		t.Fatalf("Cell(0, 1) = %v, want running", got)
	}
	if got := s.Cell(1, 2); got != LevelRunning {
		t.Fatalf("Cell(1, 2) = %v, want running", got)
	}
	if got := s.Cell(1, 3); got != LevelNone {
		t.Fatalf("Cell(1, 3) before start = %v, want none", got)
	}
}

func TestAdvanceWrapsRing(t *testing.T) {
	s := New([]string{"idle"}, 3, 1)
	s.Advance(0)
	s.Advance(1000)
	for age := 0; age < 3; age++ {
		if got := s.Cell(0, age); got != LevelRunning {
			t.Fatalf("Cell(0, %d) = %v, want running", age, got)
		}
	}
	if got := s.Cell(0, 3); got != LevelNone {
		t.Fatalf("Cell(0, 3) = %v, want none", got)
	}
}

func TestRenderDrawsRows(t *testing.T) {
	s := New([]string{"idle", "a"}, 16, 1)
	s.Feed(switchTo(1, 0, 1))
	s.Advance(4)

	fb := newTestFB(160, 48)
	if err := s.Render(fb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if fb.presents != 1 {
		t.Fatalf("presents = %d, want 1", fb.presents)
	}

	running := rgb565From888(colorRunning.R, colorRunning.G, colorRunning.B)
	ready := rgb565From888(colorReady.R, colorReady.G, colorReady.B)
	rowH := fontHeight + rowGap*2
	idleY := rowH + rowGap + rowH/2
	aY := idleY + rowH
	if !fb.rowHas(aY, running) {
		t.Fatalf("task row has no running cells")
	}
	if !fb.rowHas(idleY, ready) {
		t.Fatalf("idle row has no ready cells")
	}
}

func TestRenderNilFramebuffer(t *testing.T) {
	s := New([]string{"idle"}, 4, 1)
	if err := s.Render(nil); err != hal.ErrNotImplemented {
		t.Fatalf("Render(nil) = %v, want %v", err, hal.ErrNotImplemented)
	}
}
