package kernel

import "strconv"

// Signal is a signal number.
type Signal int

const (
	SIGKILL Signal = 9
	SIGUSR1 Signal = 10
	SIGUSR2 Signal = 12
	SIGCONT Signal = 18
	SIGSTOP Signal = 19
	SIGPOLL Signal = 29
)

const numSignals = 6

// sigIndex maps a defined signal onto its slot in the per-thread table, or
// -1 for undefined numbers.
func sigIndex(s Signal) int {
	switch s {
	case SIGKILL:
		return 0
	case SIGUSR1:
		return 1
	case SIGUSR2:
		return 2
	case SIGCONT:
		return 3
	case SIGSTOP:
		return 4
	case SIGPOLL:
		return 5
	}
	return -1
}

func (s Signal) valid() bool { return sigIndex(s) >= 0 }

func (s Signal) String() string {
	switch s {
	case SIGKILL:
		return "SIGKILL"
	case SIGUSR1:
		return "SIGUSR1"
	case SIGUSR2:
		return "SIGUSR2"
	case SIGCONT:
		return "SIGCONT"
	case SIGSTOP:
		return "SIGSTOP"
	case SIGPOLL:
		return "SIGPOLL"
	default:
		return "signal " + strconv.Itoa(int(s))
	}
}

// SigSet is a set of signals.
type SigSet uint32

func (s SigSet) Add(sig Signal) SigSet { return s | 1<<uint(sig) }

func (s SigSet) Has(sig Signal) bool { return sig > 0 && sig < 32 && s&(1<<uint(sig)) != 0 }

func (s SigSet) valid() bool {
	for i := 0; i < 32; i++ {
		if s&(1<<uint(i)) != 0 && !Signal(i).valid() {
			return false
		}
	}
	return true
}

// SAFlags modify a Sigaction.
type SAFlags uint32

// SAFlagSigInfo selects Sigaction.SigAction over Sigaction.Handler.
const SAFlagSigInfo SAFlags = 1 << 0

// SigInfo describes a delivered signal.
type SigInfo struct {
	Signo Signal
	Value any
}

// Sigaction is a signal disposition.
type Sigaction struct {
	Handler   func(sig Signal)
	SigAction func(sig Signal, info *SigInfo)
	Flags     SAFlags
}

// sysSigaction: a0 Signal, a1 *Sigaction (nil queries), a2 *Sigaction for
// the previous disposition.
func sysSigaction(k *Kernel, t *Thread, a *Args) Poll {
	sig := arg[Signal](a, 0)
	idx := sigIndex(sig)
	if idx < 0 || sig == SIGKILL || sig == SIGSTOP {
		return Fail(EINVAL)
	}
	if old := arg[*Sigaction](a, 2); old != nil {
		*old = Sigaction{}
		if cur := t.actions[idx]; cur != nil {
			*old = *cur
		}
	}
	if act := arg[*Sigaction](a, 1); act != nil {
		cp := *act
		t.actions[idx] = &cp
	}
	return Done(0)
}

// sysSigwait: a0 SigSet, a1 *Signal receiving the delivered signal.
func sysSigwait(k *Kernel, t *Thread, a *Args) Poll {
	if !t.syscallPending {
		set := arg[SigSet](a, 0)
		if set == 0 || !set.valid() {
			return Fail(EINVAL)
		}
		t.sigWaitSet = set
		t.sigWaiting = true
		t.sigDelivered = 0
	}
	if sig := t.sigDelivered; sig != 0 {
		t.sigDelivered = 0
		t.sigWaiting = false
		if out := arg[*Signal](a, 1); out != nil {
			*out = sig
		}
		return Done(0)
	}
	k.block(&k.sigwaitQ, t, Wait)
	return Pending()
}

// raise delivers sig to t. SIGKILL and SIGSTOP cannot be caught. A thread
// blocked in sigwait on sig takes it as its result; otherwise a registered
// handler is staged on the thread.
func (k *Kernel) raise(t *Thread, sig Signal, value any) {
	if t.status == Terminated {
		return
	}
	k.log.Debug().
		Uint32("tid", uint32(t.id)).
		Stringer("sig", sig).
		Msg("signal")

	switch sig {
	case SIGKILL:
		k.exitThread(t, Canceled)
		return
	case SIGSTOP:
		k.suspend(t)
		return
	case SIGCONT:
		k.resumeThread(t)
	}

	if t.sigWaiting && t.sigWaitSet.Has(sig) {
		t.sigWaiting = false
		t.sigDelivered = sig
		if k.sigwaitQ.l.contains(t) {
			k.makeReady(t)
		}
		return
	}

	act := t.actions[sigIndex(sig)]
	if act == nil {
		return
	}
	switch {
	case act.Flags&SAFlagSigInfo != 0 && act.SigAction != nil:
		fn := act.SigAction
		info := &SigInfo{Signo: sig, Value: value}
		k.stage(t, func(*Context) { fn(sig, info) })
	case act.Handler != nil:
		fn := act.Handler
		k.stage(t, func(*Context) { fn(sig) })
	}
}
