package kernel

// Cond is a condition variable used together with a Mutex.
type Cond struct {
	q WaitQueue
}

// sysCondWait: a0 *Cond, a1 *Mutex. The mutex is released and the caller
// sleeps on the condition; the call completes once it is woken. Re-locking
// the mutex is a separate call made by the Context stub.
func sysCondWait(k *Kernel, t *Thread, a *Args) Poll {
	cv := arg[*Cond](a, 0)
	m := arg[*Mutex](a, 1)
	if cv == nil || m == nil {
		return Fail(EINVAL)
	}
	if t.syscallPending {
		return Done(0)
	}
	if m.owner != t {
		return Fail(EPERM)
	}
	k.unlockMutex(m)
	k.block(&cv.q, t, Wait)
	return Pending()
}

// sysCondSignal: a0 *Cond.
func sysCondSignal(k *Kernel, t *Thread, a *Args) Poll {
	cv := arg[*Cond](a, 0)
	if cv == nil {
		return Fail(EINVAL)
	}
	k.wakeHighest(&cv.q)
	return Done(0)
}

// sysCondBroadcast: a0 *Cond.
func sysCondBroadcast(k *Kernel, t *Thread, a *Args) Poll {
	cv := arg[*Cond](a, 0)
	if cv == nil {
		return Fail(EINVAL)
	}
	k.wakeAll(&cv.q)
	return Done(0)
}
