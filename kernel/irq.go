package kernel

// IRQ is the handle an interrupt handler gets while interrupts are masked.
type IRQ struct {
	k *Kernel
}

// Interrupt runs fn with interrupts masked, then wakes the run loop. It may
// be called from any goroutine; fn must not block.
func (k *Kernel) Interrupt(fn func(irq *IRQ)) {
	k.mu.Lock()
	if !k.halted {
		fn(&IRQ{k: k})
	}
	k.mu.Unlock()
	k.kick()
}

// Ticks returns the tick count.
func (irq *IRQ) Ticks() uint64 { return irq.k.ticks }

// WakeHighest readies the highest-priority waiter of q whose recorded
// request satisfies fits (nil accepts all). It reports whether one woke.
func (irq *IRQ) WakeHighest(q *WaitQueue, fits func(request int) bool) bool {
	return irq.k.wakeHighestFunc(q, requestFits(fits)) != nil
}

// WakeAll readies every waiter of q.
func (irq *IRQ) WakeAll(q *WaitQueue) int { return irq.k.wakeAll(q) }

// NotifyPollers wakes threads blocked in poll.
func (irq *IRQ) NotifyPollers() { irq.k.pollNotify() }

// Raise delivers sig to a thread from interrupt context.
func (irq *IRQ) Raise(tid ThreadID, sig Signal) error {
	if !sig.valid() {
		return EINVAL
	}
	t := irq.k.thread(tid)
	if t == nil || t.status == Terminated {
		return ESRCH
	}
	irq.k.raise(t, sig, nil)
	return nil
}
