package app

import (
	"errors"
	"testing"

	"minirtos/kernel"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero Config Validate() = %v", err)
	}

	d := cfg.withDefaults()
	if d.MaxTasks != defaultMaxTasks || d.Tasks[0].StackWords != defaultStackWords {
		t.Fatalf("defaults = max %d stack %d", d.MaxTasks, d.Tasks[0].StackWords)
	}
}

func TestConfigValidate(t *testing.T) {
	task := func(name string, prio int) TaskConfig {
		return TaskConfig{Name: name, Kind: KindBlink, Priority: prio, Period: 10}
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"reserved priority", Config{Tasks: []TaskConfig{task("a", int(kernel.IdlePriority))}}},
		{"negative priority", Config{Tasks: []TaskConfig{task("a", -1)}}},
		{"duplicate name", Config{Tasks: []TaskConfig{task("a", 1), task("a", 2)}}},
		{"empty name", Config{Tasks: []TaskConfig{task("", 1)}}},
		{"unknown kind", Config{Tasks: []TaskConfig{{Name: "a", Kind: "fan", Period: 1}}}},
		{"zero period", Config{Tasks: []TaskConfig{{Name: "a", Kind: KindBlink}}}},
		{"small stack", Config{Tasks: []TaskConfig{{Name: "a", Kind: KindBlink, Period: 1, StackWords: 8}}}},
		{"too many tasks", Config{MaxTasks: 2, Tasks: []TaskConfig{task("a", 1), task("b", 1)}}},
		{"bad policy", Config{Policy: "lottery"}},
		{"two monitors", Config{Tasks: []TaskConfig{
			{Name: "m1", Kind: KindMonitor, Period: 1},
			{Name: "m2", Kind: KindMonitor, Period: 1},
		}}},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: Validate() = %v, want %v", tt.name, err, ErrInvalidConfig)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want kernel.Policy
	}{
		{"", kernel.PolicyPriority},
		{"priority", kernel.PolicyPriority},
		{"round-robin", kernel.PolicyRoundRobin},
		{"rr", kernel.PolicyRoundRobin},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParsePolicy(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParsePolicy("edf"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("ParsePolicy(edf) err = %v, want %v", err, ErrInvalidConfig)
	}
}

func TestKernelConfig(t *testing.T) {
	cfg := Config{Policy: "round-robin", TraceDepth: -1, Debug: true}.withDefaults()
	kc, err := cfg.kernelConfig(func(kernel.Fault) {})
	if err != nil {
		t.Fatalf("kernelConfig: %v", err)
	}
	if kc.Policy != kernel.PolicyRoundRobin || kc.TraceDepth != -1 || !kc.Debug || kc.OnFault == nil {
		t.Fatalf("kernelConfig() = %+v", kc)
	}
	if kc.MaxTasks != cfg.MaxTasks {
		t.Fatalf("MaxTasks = %d, want %d", kc.MaxTasks, cfg.MaxTasks)
	}
}
