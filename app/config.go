package app

import (
	"errors"
	"fmt"

	"minirtos/kernel"
)

// ErrInvalidConfig is wrapped by every Validate error.
var ErrInvalidConfig = errors.New("app: invalid config")

// Task kinds.
const (
	KindBlink     = "blink"
	KindHeartbeat = "heartbeat"
	KindWorker    = "worker"
	KindMonitor   = "monitor"
)

const (
	defaultStackWords  = 256
	defaultMaxTasks    = 8
	defaultScopeCols   = 64
	defaultScopeTicks  = 25
	minStackWords      = 32
	maxTaskPriority    = int(kernel.IdlePriority) - 1
	monitorEventBuffer = 32
)

// Config is the demo firmware task set.
type Config struct {
	Policy     string `yaml:"policy"`
	MaxTasks   int    `yaml:"max_tasks"`
	TraceDepth int    `yaml:"trace_depth"`
	Debug      bool   `yaml:"debug"`
	// LogTrace logs every drained trace event.
	LogTrace bool `yaml:"log_trace"`

	ScopeColumns int    `yaml:"scope_columns"`
	ScopeTicks   uint32 `yaml:"scope_ticks"`

	Tasks []TaskConfig `yaml:"tasks"`
}

// TaskConfig describes one application task.
type TaskConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`
	// Period is the delay between activations, in ticks.
	Period     int32 `yaml:"period"`
	StackWords int   `yaml:"stack_words"`
	// Burst is how many yields a worker does per activation.
	Burst int `yaml:"burst"`
}

// DefaultConfig returns the built-in task set: a blinking LED, a heartbeat
// logger, two equal-priority workers and the scheduler monitor.
func DefaultConfig() Config {
	return Config{
		Policy: kernel.PolicyPriority.String(),
		Tasks:  defaultTasks(),
	}
}

func defaultTasks() []TaskConfig {
	return []TaskConfig{
		{Name: "blink", Kind: KindBlink, Priority: 1, Period: 500},
		{Name: "beat", Kind: KindHeartbeat, Priority: 2, Period: 1000},
		{Name: "work-a", Kind: KindWorker, Priority: 10, Period: 20, Burst: 4},
		{Name: "work-b", Kind: KindWorker, Priority: 10, Period: 20, Burst: 4},
		{Name: "monitor", Kind: KindMonitor, Priority: 200, Period: 100},
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Policy == "" {
		c.Policy = kernel.PolicyPriority.String()
	}
	if len(c.Tasks) == 0 {
		c.Tasks = defaultTasks()
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = defaultMaxTasks
		if n := len(c.Tasks) + 1; n > c.MaxTasks {
			c.MaxTasks = n
		}
	}
	if c.ScopeColumns <= 0 {
		c.ScopeColumns = defaultScopeCols
	}
	if c.ScopeTicks == 0 {
		c.ScopeTicks = defaultScopeTicks
	}
	tasks := make([]TaskConfig, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.StackWords == 0 {
			t.StackWords = defaultStackWords
		}
		if t.Kind == KindWorker && t.Burst == 0 {
			t.Burst = 1
		}
		tasks[i] = t
	}
	c.Tasks = tasks
	return c
}

// ParsePolicy maps a policy name to a kernel policy.
func ParsePolicy(s string) (kernel.Policy, error) {
	switch s {
	case "", kernel.PolicyPriority.String():
		return kernel.PolicyPriority, nil
	case kernel.PolicyRoundRobin.String(), "rr":
		return kernel.PolicyRoundRobin, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
	}
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	if n := len(c.Tasks) + 1; n > c.MaxTasks {
		return fmt.Errorf("%w: %d tasks plus idle exceed max_tasks %d", ErrInvalidConfig, len(c.Tasks), c.MaxTasks)
	}

	seen := make(map[string]bool, len(c.Tasks))
	monitors := 0
	for i, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("%w: task %d has no name", ErrInvalidConfig, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate task name %q", ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = true

		switch t.Kind {
		case KindBlink, KindHeartbeat, KindWorker:
		case KindMonitor:
			monitors++
		default:
			return fmt.Errorf("%w: task %q: unknown kind %q", ErrInvalidConfig, t.Name, t.Kind)
		}
		if t.Priority < 0 || t.Priority > maxTaskPriority {
			return fmt.Errorf("%w: task %q: priority %d outside 0..%d", ErrInvalidConfig, t.Name, t.Priority, maxTaskPriority)
		}
		if t.Period <= 0 {
			return fmt.Errorf("%w: task %q: period must be positive", ErrInvalidConfig, t.Name)
		}
		if t.StackWords < minStackWords {
			return fmt.Errorf("%w: task %q: stack_words %d below %d", ErrInvalidConfig, t.Name, t.StackWords, minStackWords)
		}
		if t.Burst < 0 {
			return fmt.Errorf("%w: task %q: negative burst", ErrInvalidConfig, t.Name)
		}
	}
	if monitors > 1 {
		return fmt.Errorf("%w: at most one monitor task", ErrInvalidConfig)
	}
	return nil
}

func (c Config) kernelConfig(onFault func(kernel.Fault)) (kernel.Config, error) {
	p, err := ParsePolicy(c.Policy)
	if err != nil {
		return kernel.Config{}, err
	}
	return kernel.Config{
		MaxTasks:   c.MaxTasks,
		Policy:     p,
		TraceDepth: c.TraceDepth,
		Debug:      c.Debug,
		OnFault:    onFault,
	}, nil
}
