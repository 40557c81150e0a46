package serial

import "sync/atomic"

// ring is a fixed-size single-producer, single-consumer byte queue. The
// producer only moves head and the consumer only moves tail, so either side
// may run on its own goroutine without a lock.
type ring struct {
	_    [0]func() // prevent accidental copying.
	head atomic.Uint32
	tail atomic.Uint32
	mask uint32
	buf  []byte
}

// newRing returns a ring holding at least size bytes, rounded up to a power
// of two.
func newRing(size int) *ring {
	n := 1
	for n < size {
		n <<= 1
	}
	return &ring{mask: uint32(n - 1), buf: make([]byte, n)}
}

func (r *ring) cap() int { return len(r.buf) }

func (r *ring) len() int { return int(r.head.Load() - r.tail.Load()) }

func (r *ring) avail() int { return r.cap() - r.len() }

// write enqueues as much of p as fits. Producer side only.
func (r *ring) write(p []byte) int {
	head := r.head.Load()
	free := uint32(r.cap()) - (head - r.tail.Load())
	n := uint32(len(p))
	if n > free {
		n = free
	}
	for i := uint32(0); i < n; i++ {
		r.buf[(head+i)&r.mask] = p[i]
	}
	r.head.Store(head + n)
	return int(n)
}

// read dequeues up to len(p) bytes. Consumer side only.
func (r *ring) read(p []byte) int {
	tail := r.tail.Load()
	used := r.head.Load() - tail
	n := uint32(len(p))
	if n > used {
		n = used
	}
	for i := uint32(0); i < n; i++ {
		p[i] = r.buf[(tail+i)&r.mask]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// discard drops everything queued. Consumer side only.
func (r *ring) discard() int {
	tail := r.tail.Load()
	head := r.head.Load()
	r.tail.Store(head)
	return int(head - tail)
}
