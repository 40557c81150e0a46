package kernel

// Mutex is a sleeping lock owned by one thread. The zero value is unlocked.
//
// There is no priority inheritance: a low-priority owner keeps its own
// priority while higher-priority threads wait.
type Mutex struct {
	owner *Thread
	q     WaitQueue
}

// Owner returns the owning thread, or 0 when unlocked.
func (m *Mutex) Owner() ThreadID {
	if m.owner == nil {
		return 0
	}
	return m.owner.id
}

// sysMutexLock: a0 *Mutex.
func sysMutexLock(k *Kernel, t *Thread, a *Args) Poll {
	m := arg[*Mutex](a, 0)
	if m == nil {
		return Fail(EINVAL)
	}
	if m.owner == nil {
		k.lockMutex(m, t)
		return Done(0)
	}
	if m.owner == t {
		return Fail(EDEADLK)
	}
	k.block(&m.q, t, Wait)
	return Pending()
}

// sysMutexTryLock: a0 *Mutex.
func sysMutexTryLock(k *Kernel, t *Thread, a *Args) Poll {
	m := arg[*Mutex](a, 0)
	if m == nil {
		return Fail(EINVAL)
	}
	if m.owner != nil {
		return Fail(EBUSY)
	}
	k.lockMutex(m, t)
	return Done(0)
}

// sysMutexUnlock: a0 *Mutex.
func sysMutexUnlock(k *Kernel, t *Thread, a *Args) Poll {
	m := arg[*Mutex](a, 0)
	if m == nil {
		return Fail(EINVAL)
	}
	if m.owner != t {
		return Fail(EPERM)
	}
	k.unlockMutex(m)
	return Done(0)
}

func (k *Kernel) lockMutex(m *Mutex, t *Thread) {
	m.owner = t
	t.mutexes = append(t.mutexes, m)
}

// unlockMutex clears the owner of m and wakes its highest-priority waiter.
func (k *Kernel) unlockMutex(m *Mutex) {
	if t := m.owner; t != nil {
		for i, held := range t.mutexes {
			if held == m {
				t.mutexes = append(t.mutexes[:i], t.mutexes[i+1:]...)
				break
			}
		}
	}
	m.owner = nil
	k.wakeHighest(&m.q)
}

// unlockAll unlocks every mutex t still holds. A waiter retries its lock
// once woken.
func (k *Kernel) unlockAll(t *Thread) {
	for len(t.mutexes) > 0 {
		k.unlockMutex(t.mutexes[len(t.mutexes)-1])
	}
}
