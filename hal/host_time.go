//go:build !tinygo

package hal

import "time"

type hostTime struct {
	ch      chan uint64
	seq     uint64
	tickDur time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(hz int) *hostTime {
	if hz <= 0 {
		hz = 1000
	}
	return &hostTime{ch: make(chan uint64, 1024), tickDur: time.Second / time.Duration(hz)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits the ticks that elapsed on the wall clock since the previous
// call. The first call emits n.
func (t *hostTime) step(n uint64) {
	t.stepAt(time.Now(), n)
}

func (t *hostTime) stepAt(now time.Time, n uint64) {
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(n)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.tickDur)
	if ticks == 0 {
		return
	}
	t.acc %= t.tickDur
	t.stepN(ticks)
}

// stepN emits n ticks, dropping any the consumer has no room for.
func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
