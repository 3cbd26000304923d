package rtos

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"minirtos/kernel"
	"minirtos/port/soft"
)

type lineLog struct {
	lines []string
}

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }

func start(t *testing.T, s *System) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	return errCh
}

func clock(s *System) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(100 * time.Microsecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				s.Interrupt()
			}
		}
	}()
	return func() { close(done) }
}

func wait(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for Start")
		return nil
	}
}

func TestCreateTaskCapacity(t *testing.T) {
	s := New(Config{}, nil)
	for i := 0; i < kernel.DefaultMaxTasks-1; i++ {
		if _, err := s.CreateTask("t", func(any) {}, nil, 1, 64); err != nil {
			t.Fatalf("CreateTask #%d: %v", i, err)
		}
	}

	_, err := s.CreateTask("extra", func(any) {}, nil, 1, 64)
	if !errors.Is(err, kernel.ErrTableFull) {
		t.Fatalf("CreateTask() err = %v, want %v", err, kernel.ErrTableFull)
	}
	if !strings.Contains(err.Error(), `"extra"`) {
		t.Fatalf("CreateTask() err = %q, want task name", err)
	}
	if got := s.Kernel().TaskCount(); got != kernel.DefaultMaxTasks {
		t.Fatalf("TaskCount() = %d, want %d", got, kernel.DefaultMaxTasks)
	}
}

func TestNames(t *testing.T) {
	log := &lineLog{}
	s := New(Config{}, log)
	id, err := s.CreateTask("blink", func(any) {}, nil, 3, 64)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if s.Name(id) != "blink" || s.Name(kernel.IdleTask) != "idle" || s.Name(200) != "" {
		t.Fatalf("names = %q %q %q", s.Name(id), s.Name(kernel.IdleTask), s.Name(200))
	}
	if len(log.lines) != 1 || !strings.Contains(log.lines[0], `"blink" prio 3`) {
		t.Fatalf("log = %q", log.lines)
	}
}

func TestDelayWakesAfterDuration(t *testing.T) {
	s := New(Config{}, nil)

	var blockedAt, wokeAt uint32
	_, err := s.CreateTask("a", func(any) {
		blockedAt = s.Tick()
		s.Delay(10)
		wokeAt = s.Tick()
		s.Halt()
	}, nil, 1, 64)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	stop := clock(s)
	defer stop()
	if err := wait(t, start(t, s)); !errors.Is(err, soft.ErrHalted) {
		t.Fatalf("Start() err = %v, want %v", err, soft.ErrHalted)
	}
	if wokeAt < blockedAt+10 {
		t.Fatalf("woke at %d, blocked at %d for 10", wokeAt, blockedAt)
	}
}

func TestDelayNonPositiveReturns(t *testing.T) {
	s := New(Config{}, nil)

	var before, after uint64
	_, err := s.CreateTask("a", func(any) {
		before = s.Switches()
		s.Delay(0)
		s.Delay(-5)
		after = s.Switches()
		s.Halt()
	}, nil, 1, 64)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	s.Interrupt()
	if err := wait(t, start(t, s)); !errors.Is(err, soft.ErrHalted) {
		t.Fatalf("Start() err = %v, want %v", err, soft.ErrHalted)
	}
	if after != before {
		t.Fatalf("switches %d -> %d across non-positive delays", before, after)
	}
}

func TestStartSealsTable(t *testing.T) {
	s := New(Config{}, nil)
	var createErr error
	_, err := s.CreateTask("a", func(any) {
		_, createErr = s.CreateTask("late", func(any) {}, nil, 1, 64)
		s.Halt()
	}, nil, 1, 64)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	s.Interrupt()
	if err := wait(t, start(t, s)); !errors.Is(err, soft.ErrHalted) {
		t.Fatalf("Start() err = %v, want %v", err, soft.ErrHalted)
	}
	if !errors.Is(createErr, kernel.ErrSealed) {
		t.Fatalf("CreateTask() after start err = %v, want %v", createErr, kernel.ErrSealed)
	}
}

func TestYieldRoundRobin(t *testing.T) {
	s := New(Config{}, nil)

	var order []string
	body := func(arg any) {
		name := arg.(string)
		for {
			order = append(order, name)
			if len(order) == 4 {
				s.Halt()
			}
			s.Yield()
		}
	}
	for _, name := range []string{"a", "b"} {
		if _, err := s.CreateTask(name, body, name, 2, 64); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	s.Interrupt()
	if err := wait(t, start(t, s)); !errors.Is(err, soft.ErrHalted) {
		t.Fatalf("Start() err = %v, want %v", err, soft.ErrHalted)
	}
	if got := strings.Join(order, ""); got != "abab" {
		t.Fatalf("order = %q, want abab", got)
	}
}
