package kernel

// SemValueMax is the largest value a Semaphore can hold.
const SemValueMax = 32767

// Semaphore is a counting semaphore. The zero value has count 0.
type Semaphore struct {
	count int
	q     WaitQueue
}

// sysSemInit: a0 *Semaphore, a1 value int.
func sysSemInit(k *Kernel, t *Thread, a *Args) Poll {
	s := arg[*Semaphore](a, 0)
	v := arg[int](a, 1)
	if s == nil || v < 0 || v > SemValueMax {
		return Fail(EINVAL)
	}
	s.count = v
	return Done(0)
}

// sysSemPost: a0 *Semaphore. At SemValueMax the caller yields and retries
// until a waiter has taken a unit.
func sysSemPost(k *Kernel, t *Thread, a *Args) Poll {
	s := arg[*Semaphore](a, 0)
	if s == nil {
		return Fail(EINVAL)
	}
	if s.count >= SemValueMax {
		k.sleep(t, 0)
		return Pending()
	}
	s.count++
	if s.count > 0 {
		k.wakeHighest(&s.q)
	}
	return Done(0)
}

// sysSemWait: a0 *Semaphore.
func sysSemWait(k *Kernel, t *Thread, a *Args) Poll {
	s := arg[*Semaphore](a, 0)
	if s == nil {
		return Fail(EINVAL)
	}
	if s.count > 0 {
		s.count--
		return Done(0)
	}
	k.block(&s.q, t, Wait)
	return Pending()
}

// sysSemTryWait: a0 *Semaphore.
func sysSemTryWait(k *Kernel, t *Thread, a *Args) Poll {
	s := arg[*Semaphore](a, 0)
	if s == nil {
		return Fail(EINVAL)
	}
	if s.count <= 0 {
		return Fail(EAGAIN)
	}
	s.count--
	return Done(0)
}

// sysSemGetValue: a0 *Semaphore, a1 *int.
func sysSemGetValue(k *Kernel, t *Thread, a *Args) Poll {
	s := arg[*Semaphore](a, 0)
	out := arg[*int](a, 1)
	if s == nil || out == nil {
		return Fail(EINVAL)
	}
	*out = s.count
	return Done(0)
}
