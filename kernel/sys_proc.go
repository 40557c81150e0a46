package kernel

func sysYield(k *Kernel, t *Thread, a *Args) Poll {
	k.makeReady(t)
	return Done(0)
}

// sysDelay: a0 ticks uint32.
func sysDelay(k *Kernel, t *Thread, a *Args) Poll {
	n := arg[uint32](a, 0)
	if n == 0 {
		k.makeReady(t)
		return Done(0)
	}
	k.sleep(t, n)
	return Done(0)
}

// sysSpawn: a0 name string, a1 TaskFunc, a2 priority int (0 inherits).
// fork is realised as spawn: the child runs a fresh entry point.
func sysSpawn(k *Kernel, t *Thread, a *Args) Poll {
	prio := arg[int](a, 2)
	if prio == 0 {
		prio = t.prio
	}
	task, err := k.spawn(arg[string](a, 0), arg[TaskFunc](a, 1), prio, false)
	if err != nil {
		return Fail(errnoOf(err))
	}
	return Done(int(task.id))
}

// sysExit: a0 status int. Terminates the caller's whole task.
func sysExit(k *Kernel, t *Thread, a *Args) Poll {
	k.exitTask(t.task, arg[int](a, 0))
	return Done(0)
}

func sysGetpid(k *Kernel, t *Thread, a *Args) Poll {
	return Done(int(t.task.id))
}

func sysGettid(k *Kernel, t *Thread, a *Args) Poll {
	return Done(int(t.id))
}

// sysSetProgName: a0 name string.
func sysSetProgName(k *Kernel, t *Thread, a *Args) Poll {
	name := arg[string](a, 0)
	if len(name) > MaxNameLen {
		return Fail(ENAMETOOLONG)
	}
	t.task.name = name
	t.task.main.name = name
	return Done(0)
}

// sysGetPriority: a0 ThreadID (0 for the caller).
func sysGetPriority(k *Kernel, t *Thread, a *Args) Poll {
	target := t
	if tid := arg[ThreadID](a, 0); tid != 0 {
		if target = k.thread(tid); target == nil {
			return Fail(ESRCH)
		}
	}
	return Done(target.prio)
}

// sysSetPriority: a0 ThreadID (0 for the caller), a1 priority int.
func sysSetPriority(k *Kernel, t *Thread, a *Args) Poll {
	target := t
	if tid := arg[ThreadID](a, 0); tid != 0 {
		if target = k.thread(tid); target == nil || target.status == Terminated {
			return Fail(ESRCH)
		}
	}
	if target.kernel && !t.kernel {
		return Fail(EPERM)
	}
	prio := arg[int](a, 1)
	if !k.validPriority(prio, target.kernel) {
		return Fail(EINVAL)
	}
	k.setPriority(target, prio)
	return Done(0)
}

// sysThreadInfo: a0 *[]ThreadInfo.
func sysThreadInfo(k *Kernel, t *Thread, a *Args) Poll {
	out := arg[*[]ThreadInfo](a, 0)
	if out == nil {
		return Fail(EINVAL)
	}
	*out = k.threadInfos()
	return Done(len(*out))
}

// sysThreadCreate: a0 ThreadFunc, a1 arg any, a2 *ThreadAttr.
func sysThreadCreate(k *Kernel, t *Thread, a *Args) Poll {
	fn := arg[ThreadFunc](a, 0)
	if fn == nil {
		return Fail(EINVAL)
	}
	param := a[1]
	attr := ThreadAttr{Priority: t.prio}
	if p := arg[*ThreadAttr](a, 2); p != nil {
		attr = *p
		if attr.Priority == 0 {
			attr.Priority = t.prio
		}
	}
	entry := func(c *Context) {
		c.ThreadExit(fn(c, param))
	}
	th, err := k.newThread(t.task, t.task.name, entry, attr.Priority, attr.StackSize, attr.Detached)
	if err != nil {
		return Fail(errnoOf(err))
	}
	return Done(int(th.id))
}

// sysThreadJoin: a0 ThreadID, a1 *any for the return value.
func sysThreadJoin(k *Kernel, t *Thread, a *Args) Poll {
	target := k.thread(arg[ThreadID](a, 0))
	if target == nil {
		return Fail(ESRCH)
	}
	if target == t {
		return Fail(EDEADLK)
	}
	if target.detached {
		if t.joinTarget == target {
			t.joinTarget = nil
			target.joiner = nil
		}
		return Fail(EINVAL)
	}
	if !t.syscallPending {
		if target.joiner != nil && target.joiner != t {
			return Fail(EINVAL)
		}
		if target.joinTarget == t {
			return Fail(EDEADLK)
		}
		target.joiner = t
		t.joinTarget = target
	}
	if target.status != Terminated {
		k.block(&target.joinQ, t, Wait)
		return Pending()
	}
	if out := arg[*any](a, 1); out != nil {
		*out = target.retval
	}
	t.joinTarget = nil
	k.reapThread(target)
	return Done(0)
}

// sysThreadDetach: a0 ThreadID.
func sysThreadDetach(k *Kernel, t *Thread, a *Args) Poll {
	target := k.thread(arg[ThreadID](a, 0))
	if target == nil {
		return Fail(ESRCH)
	}
	if target.detached {
		return Fail(EINVAL)
	}
	target.detached = true
	if target.status == Terminated {
		k.reapThread(target)
		return Done(0)
	}
	// A pending joiner retries and sees the thread is no longer joinable.
	k.wakeAll(&target.joinQ)
	return Done(0)
}

// sysThreadCancel: a0 ThreadID.
func sysThreadCancel(k *Kernel, t *Thread, a *Args) Poll {
	target := k.thread(arg[ThreadID](a, 0))
	if target == nil || target.status == Terminated {
		return Fail(ESRCH)
	}
	if target.kernel && !t.kernel {
		return Fail(EPERM)
	}
	k.exitThread(target, Canceled)
	return Done(0)
}

// sysThreadExit: a0 return value any.
func sysThreadExit(k *Kernel, t *Thread, a *Args) Poll {
	k.exitThread(t, a[0])
	return Done(0)
}

// sysThreadKill: a0 ThreadID, a1 Signal.
func sysThreadKill(k *Kernel, t *Thread, a *Args) Poll {
	sig := arg[Signal](a, 1)
	if !sig.valid() {
		return Fail(EINVAL)
	}
	target := k.thread(arg[ThreadID](a, 0))
	if target == nil || target.status == Terminated {
		return Fail(ESRCH)
	}
	if target.kernel && !t.kernel {
		return Fail(EPERM)
	}
	k.raise(target, sig, nil)
	return Done(0)
}

// sysKill: a0 TaskID, a1 Signal. The signal is raised on every thread of
// the task.
func sysKill(k *Kernel, t *Thread, a *Args) Poll {
	sig := arg[Signal](a, 1)
	if !sig.valid() {
		return Fail(EINVAL)
	}
	task := k.task(arg[TaskID](a, 0))
	if task == nil {
		return Fail(ESRCH)
	}
	if task.kernel && !t.kernel {
		return Fail(EPERM)
	}
	for _, th := range append([]*Thread(nil), task.threads...) {
		if th.status != Terminated {
			k.raise(th, sig, nil)
		}
	}
	return Done(0)
}

// sysRaise: a0 Signal, raised on the caller.
func sysRaise(k *Kernel, t *Thread, a *Args) Poll {
	sig := arg[Signal](a, 0)
	if !sig.valid() {
		return Fail(EINVAL)
	}
	k.raise(t, sig, nil)
	return Done(0)
}
