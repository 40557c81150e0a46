package kernel

// WaitQueue holds threads blocked on a resource. The zero value is an empty
// queue. A WaitQueue is only touched by the kernel with interrupts masked.
type WaitQueue struct {
	l threadList
}

// Len reports how many threads are waiting.
func (q *WaitQueue) Len() int { return q.l.len() }

// block moves t from its current scheduling list onto q.
func (k *Kernel) block(q *WaitQueue, t *Thread, status Status) {
	unlink(t)
	q.l.pushBack(t)
	t.status = status
}

// wakeHighest readies the highest-priority waiter of q, earliest arrival
// first among equals. It never switches context.
func (k *Kernel) wakeHighest(q *WaitQueue) *Thread {
	return k.wakeHighestFunc(q, nil)
}

// wakeHighestFunc is wakeHighest restricted to waiters accepted by fits.
func (k *Kernel) wakeHighestFunc(q *WaitQueue, fits func(t *Thread) bool) *Thread {
	var best *Thread
	q.l.each(func(t *Thread) {
		if fits != nil && !fits(t) {
			return
		}
		if best == nil || t.prio > best.prio {
			best = t
		}
	})
	if best == nil {
		return nil
	}
	k.makeReady(best)
	return best
}

func (k *Kernel) wakeAll(q *WaitQueue) int {
	n := 0
	for t := q.l.popFront(); t != nil; t = q.l.popFront() {
		k.makeReady(t)
		n++
	}
	return n
}
