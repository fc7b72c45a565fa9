//go:build !tinygo

package hal

import "time"

type hostTime struct {
	ch     chan uint64
	seq    uint64
	period time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(period time.Duration) *hostTime {
	return &hostTime{ch: make(chan uint64, 1024), period: period}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// elapsed emits one tick per period of wall time since the previous call.
// The first call emits a single tick.
func (t *hostTime) elapsed() {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.period)
	if ticks == 0 {
		return
	}
	t.acc %= t.period
	t.stepN(ticks)
}

// stepN emits n ticks. Sequence numbers keep counting when the channel is
// full so the consumer can tell how many it missed.
func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
