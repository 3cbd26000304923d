//go:build !tinygo

package hal

import "time"

const hostTickPeriod = time.Millisecond

// hostTime turns wall-clock steps from the runner into a 1 ms tick stream.
type hostTime struct {
	ch  chan uint64
	seq uint64

	last time.Time
	acc  time.Duration
	now  func() time.Time
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), now: time.Now}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) Hz() int { return int(time.Second / hostTickPeriod) }

// step emits as many ticks as wall-clock time has passed since the last call.
// The first call emits n ticks to start the stream.
func (t *hostTime) step(n uint64) {
	now := t.now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(n)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / hostTickPeriod)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % hostTickPeriod
	t.stepN(ticks)
}

// stepN emits n ticks. Ticks are dropped once the consumer is more than a
// buffer behind; the sequence number still advances so the gap is visible.
func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
