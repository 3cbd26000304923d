//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"minirtos/app"
	"minirtos/hal"
	"minirtos/internal/buildinfo"
)

func main() {
	var cfg hal.HeadlessConfig
	var step bool
	var configPath, policy string
	var logTrace, version bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 1000, "Wall-clock sample rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&step, "step", false, "Single-step ticks from the terminal.")
	flag.StringVar(&configPath, "config", "", "YAML task set (default: built-in demo).")
	flag.StringVar(&policy, "policy", "", "Scheduling policy: priority or round-robin (overrides config).")
	flag.BoolVar(&logTrace, "log-trace", false, "Log every scheduler trace event.")
	flag.BoolVar(&version, "version", false, "Print build information and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.Describe())
		return
	}

	appCfg := app.DefaultConfig()
	if configPath != "" {
		c, err := app.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		appCfg = c
	}
	if policy != "" {
		appCfg.Policy = policy
	}
	if logTrace {
		appCfg.LogTrace = true
	}
	if err := appCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	newApp := func(h hal.HAL) func() error {
		return app.NewWithConfig(h, appCfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch {
	case step:
		err = hal.RunConsole(ctx, newApp)
	case cfg.Enabled:
		err = hal.RunHeadless(ctx, newApp, cfg)
	default:
		err = hal.RunWindow(newApp)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, hal.ErrQuit) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
