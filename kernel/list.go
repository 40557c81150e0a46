package kernel

type linkKind uint8

const (
	schedLink linkKind = iota
	timeoutLink
)

// link is an intrusive list node embedded in Thread. A thread carries one
// link per kind, so it can sit on one scheduling list and on the timeout
// pool at the same time.
type link struct {
	prev, next *Thread
	list       *threadList
}

// threadList is a FIFO of threads chained through one of their links.
type threadList struct {
	head, tail *Thread
	n          int
	kind       linkKind
}

func (l *threadList) linkOf(t *Thread) *link {
	if l.kind == timeoutLink {
		return &t.timeout
	}
	return &t.sched
}

func (l *threadList) len() int { return l.n }

func (l *threadList) empty() bool { return l.n == 0 }

func (l *threadList) front() *Thread { return l.head }

func (l *threadList) contains(t *Thread) bool { return l.linkOf(t).list == l }

func (l *threadList) pushBack(t *Thread) {
	ln := l.linkOf(t)
	if ln.list != nil {
		ln.list.remove(t)
	}
	ln.list = l
	ln.prev = l.tail
	ln.next = nil
	if l.tail != nil {
		l.linkOf(l.tail).next = t
	} else {
		l.head = t
	}
	l.tail = t
	l.n++
}

func (l *threadList) remove(t *Thread) {
	ln := l.linkOf(t)
	if ln.list != l {
		return
	}
	if ln.prev != nil {
		l.linkOf(ln.prev).next = ln.next
	} else {
		l.head = ln.next
	}
	if ln.next != nil {
		l.linkOf(ln.next).prev = ln.prev
	} else {
		l.tail = ln.prev
	}
	*ln = link{}
	l.n--
}

func (l *threadList) popFront() *Thread {
	t := l.head
	if t != nil {
		l.remove(t)
	}
	return t
}

// each visits members in order. fn may unlink the visited thread.
func (l *threadList) each(fn func(t *Thread)) {
	for t := l.head; t != nil; {
		next := l.linkOf(t).next
		fn(t)
		t = next
	}
}

// unlink removes t from whatever scheduling list holds it.
func unlink(t *Thread) {
	if l := t.sched.list; l != nil {
		l.remove(t)
	}
}
