package kernel

import "time"

// TimerID identifies an interval timer.
type TimerID uint32

// Notify selects how a timer expiry is reported.
type Notify uint8

const (
	SigevNone Notify = iota
	SigevSignal
)

// SigEvent describes timer notification. With SigevSignal, Func (when set)
// is staged on the owning thread with Value; otherwise Signo is raised on
// it.
type SigEvent struct {
	Notify Notify
	Signo  Signal
	Func   func(value any)
	Value  any
}

// ItimerSpec is a timer setting. A zero Value disarms the timer; a zero
// Interval makes it one-shot.
type ItimerSpec struct {
	Value    time.Duration
	Interval time.Duration
}

// Timer is a per-thread interval timer counted in ticks.
type Timer struct {
	id        TimerID
	owner     *Thread
	ev        SigEvent
	enabled   bool
	interval  uint64
	remaining uint64
}

// updateTimers counts every armed timer down by one tick.
func (k *Kernel) updateTimers() {
	k.timers.each(func(tm *Timer) {
		if !tm.enabled {
			return
		}
		if tm.remaining > 0 {
			tm.remaining--
		}
		if tm.remaining > 0 {
			return
		}
		if tm.interval > 0 {
			tm.remaining = tm.interval
		} else {
			tm.enabled = false
		}
		k.notifyTimer(tm)
	})
}

func (k *Kernel) notifyTimer(tm *Timer) {
	if tm.ev.Notify != SigevSignal || tm.owner == nil {
		return
	}
	if fn := tm.ev.Func; fn != nil {
		v := tm.ev.Value
		k.stage(tm.owner, func(*Context) { fn(v) })
		return
	}
	k.raise(tm.owner, tm.ev.Signo, tm.ev.Value)
}

func (k *Kernel) ownTimer(t *Thread, id TimerID) *Timer {
	tm := k.timers.get(uint32(id))
	if tm == nil || tm.owner != t {
		return nil
	}
	return tm
}

// sysTimerCreate: a0 *SigEvent (nil means SigevNone), a1 *TimerID.
func sysTimerCreate(k *Kernel, t *Thread, a *Args) Poll {
	out := arg[*TimerID](a, 1)
	if out == nil {
		return Fail(EINVAL)
	}
	var ev SigEvent
	if p := arg[*SigEvent](a, 0); p != nil {
		ev = *p
	}
	switch ev.Notify {
	case SigevNone:
	case SigevSignal:
		if ev.Func == nil && !ev.Signo.valid() {
			return Fail(EINVAL)
		}
	default:
		return Fail(EINVAL)
	}
	tm := &Timer{owner: t, ev: ev}
	id, ok := k.timers.alloc(tm)
	if !ok {
		return Fail(ENOMEM)
	}
	tm.id = TimerID(id)
	t.timers = append(t.timers, tm)
	*out = tm.id
	return Done(0)
}

// sysTimerDelete: a0 TimerID.
func sysTimerDelete(k *Kernel, t *Thread, a *Args) Poll {
	tm := k.ownTimer(t, arg[TimerID](a, 0))
	if tm == nil {
		return Fail(EINVAL)
	}
	for i, x := range t.timers {
		if x == tm {
			t.timers = append(t.timers[:i], t.timers[i+1:]...)
			break
		}
	}
	k.timers.free(uint32(tm.id))
	return Done(0)
}

// sysTimerSettime: a0 TimerID, a1 flags int (unused), a2 *ItimerSpec,
// a3 *ItimerSpec for the previous setting.
func sysTimerSettime(k *Kernel, t *Thread, a *Args) Poll {
	tm := k.ownTimer(t, arg[TimerID](a, 0))
	spec := arg[*ItimerSpec](a, 2)
	if tm == nil || spec == nil || spec.Value < 0 || spec.Interval < 0 {
		return Fail(EINVAL)
	}
	if old := arg[*ItimerSpec](a, 3); old != nil {
		*old = k.timerSpec(tm)
	}
	tm.interval = k.durationToTicks(spec.Interval)
	tm.remaining = k.durationToTicks(spec.Value)
	tm.enabled = tm.remaining > 0
	return Done(0)
}

// sysTimerGettime: a0 TimerID, a1 *ItimerSpec.
func sysTimerGettime(k *Kernel, t *Thread, a *Args) Poll {
	tm := k.ownTimer(t, arg[TimerID](a, 0))
	out := arg[*ItimerSpec](a, 1)
	if tm == nil || out == nil {
		return Fail(EINVAL)
	}
	*out = k.timerSpec(tm)
	return Done(0)
}

func (k *Kernel) timerSpec(tm *Timer) ItimerSpec {
	var s ItimerSpec
	if tm.enabled {
		s.Value = k.ticksToDuration(tm.remaining)
	}
	s.Interval = k.ticksToDuration(tm.interval)
	return s
}

// sysClockGettime: a0 *time.Duration receiving the monotonic time.
func sysClockGettime(k *Kernel, t *Thread, a *Args) Poll {
	out := arg[*time.Duration](a, 0)
	if out == nil {
		return Fail(EINVAL)
	}
	*out = k.ticksToDuration(k.ticks)
	return Done(0)
}
