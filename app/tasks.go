package app

import (
	"fmt"

	"minirtos/kernel"
)

func (a *App) entry(kind string) kernel.Entry {
	switch kind {
	case KindBlink:
		return a.blink
	case KindHeartbeat:
		return a.heartbeat
	case KindWorker:
		return a.worker
	case KindMonitor:
		return a.monitor
	default:
		return nil
	}
}

func (a *App) blink(arg any) {
	tc := arg.(TaskConfig)
	led := a.h.LED()
	on := false
	for {
		on = !on
		if led != nil {
			if on {
				led.High()
			} else {
				led.Low()
			}
		}
		a.sys.Delay(tc.Period)
	}
}

func (a *App) heartbeat(arg any) {
	tc := arg.(TaskConfig)
	for n := 1; ; n++ {
		a.logf("%s: beat %d tick=%d switches=%d", tc.Name, n, a.sys.Tick(), a.sys.Switches())
		a.sys.Delay(tc.Period)
	}
}

// worker does Burst units of work per activation, yielding after each so
// equal-priority workers interleave.
func (a *App) worker(arg any) {
	tc := arg.(TaskConfig)
	id := a.sys.Current()
	for {
		for i := 0; i < tc.Burst; i++ {
			a.work[id]++
			a.sys.Yield()
		}
		a.sys.Delay(tc.Period)
	}
}

// monitor drains the kernel trace into the scope and redraws it.
func (a *App) monitor(arg any) {
	tc := arg.(TaskConfig)
	k := a.sys.Kernel()
	buf := make([]kernel.Event, monitorEventBuffer)
	var dropped uint32
	fb := a.framebuffer()

	for {
		for {
			n := k.DrainTrace(buf)
			for _, ev := range buf[:n] {
				a.scope.Feed(ev)
				if a.cfg.LogTrace && a.log != nil {
					a.log.WriteLineString(formatEvent(ev))
				}
			}
			if n < len(buf) {
				break
			}
		}
		if d := k.TraceDropped(); d != dropped {
			a.logf("%s: %d trace events dropped", tc.Name, d-dropped)
			dropped = d
		}

		a.scope.Advance(a.sys.Tick())
		if fb != nil {
			_ = a.scope.Render(fb)
		}
		a.sys.Delay(tc.Period)
	}
}

func formatEvent(ev kernel.Event) string {
	switch ev.Kind {
	case kernel.EventSwitch:
		return fmt.Sprintf("trace: switch %d->%d @%d", ev.From, ev.Task, ev.Tick)
	case kernel.EventBlock:
		return fmt.Sprintf("trace: block %d until %d @%d", ev.Task, ev.Arg, ev.Tick)
	default:
		return fmt.Sprintf("trace: %s %d @%d", ev.Kind, ev.Task, ev.Tick)
	}
}
