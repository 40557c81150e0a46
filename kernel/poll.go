package kernel

// PollEvents is a poll event mask.
type PollEvents uint16

const (
	PollIn   PollEvents = 0x001
	PollOut  PollEvents = 0x004
	PollErr  PollEvents = 0x008
	PollHup  PollEvents = 0x010
	PollNval PollEvents = 0x020
)

// PollFd is one poll entry.
type PollFd struct {
	Fd      int
	Events  PollEvents
	Revents PollEvents
}

// scanPoll fills in Revents and returns the number of ready entries.
func (k *Kernel) scanPoll(task *Task, fds []PollFd) int {
	n := 0
	for i := range fds {
		pf := &fds[i]
		pf.Revents = 0
		d := task.fd(pf.Fd)
		switch {
		case d == nil:
			pf.Revents = PollNval
		default:
			if p, ok := d.file.(Poller); ok {
				pf.Revents = p.Poll(pf.Events | PollErr | PollHup)
			} else {
				pf.Revents = pf.Events & (PollIn | PollOut)
			}
		}
		if pf.Revents != 0 {
			n++
		}
	}
	return n
}

// sysPoll: a0 []PollFd, a1 timeout in ticks int (negative waits forever).
// The deadline is armed once per call; a retry never moves it.
func sysPoll(k *Kernel, t *Thread, a *Args) Poll {
	fds := arg[[]PollFd](a, 0)
	timeout := arg[int](a, 1)

	if n := k.scanPoll(t.task, fds); n > 0 {
		k.timeouts.remove(t)
		t.pollTimedOut = false
		return Done(n)
	}
	if timeout == 0 {
		return Done(0)
	}
	if !t.syscallPending {
		t.pollTimedOut = false
		if timeout > 0 {
			t.pollDeadline = k.ticks + uint64(timeout)
			k.timeouts.pushBack(t)
		}
	}
	if t.pollTimedOut {
		t.pollTimedOut = false
		return Done(0)
	}
	k.block(&k.pollQ, t, Wait)
	return Pending()
}

// pollNotify wakes every poller so each rescans its descriptors.
func (k *Kernel) pollNotify() {
	k.wakeAll(&k.pollQ)
}

// expireTimeouts wakes pollers whose deadline has passed.
func (k *Kernel) expireTimeouts() {
	k.timeouts.each(func(t *Thread) {
		if k.ticks < t.pollDeadline {
			return
		}
		k.timeouts.remove(t)
		t.pollTimedOut = true
		if k.pollQ.l.contains(t) {
			k.makeReady(t)
		}
	})
}
