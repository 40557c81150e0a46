package kernel

// fifo is a fixed-capacity ring. head and tail run freely and are reduced
// modulo the capacity on access.
type fifo[T any] struct {
	head  uint32
	tail  uint32
	slots []T
}

func newFifo[T any](n int) fifo[T] {
	return fifo[T]{slots: make([]T, n)}
}

func (f *fifo[T]) cap() int { return len(f.slots) }

func (f *fifo[T]) len() int { return int(f.head - f.tail) }

func (f *fifo[T]) avail() int { return f.cap() - f.len() }

func (f *fifo[T]) push(v T) bool {
	if f.len() >= f.cap() {
		return false
	}
	f.slots[f.head%uint32(len(f.slots))] = v
	f.head++
	return true
}

// pushOverwrite pushes v, discarding the oldest entry when full. It reports
// whether an entry was discarded.
func (f *fifo[T]) pushOverwrite(v T) bool {
	dropped := false
	if f.len() >= f.cap() {
		f.pop()
		dropped = true
	}
	f.push(v)
	return dropped
}

func (f *fifo[T]) pop() (T, bool) {
	var zero T
	if f.tail == f.head {
		return zero, false
	}
	i := f.tail % uint32(len(f.slots))
	v := f.slots[i]
	f.slots[i] = zero
	f.tail++
	return v, true
}

func (f *fifo[T]) peek() (T, bool) {
	var zero T
	if f.tail == f.head {
		return zero, false
	}
	return f.slots[f.tail%uint32(len(f.slots))], true
}

// write pushes as many of p as fit and returns the count.
func (f *fifo[T]) write(p []T) int {
	n := 0
	for _, v := range p {
		if !f.push(v) {
			break
		}
		n++
	}
	return n
}

// read pops up to len(p) entries into p and returns the count.
func (f *fifo[T]) read(p []T) int {
	n := 0
	for n < len(p) {
		v, ok := f.pop()
		if !ok {
			break
		}
		p[n] = v
		n++
	}
	return n
}
