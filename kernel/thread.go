package kernel

import "errors"

// ThreadID identifies a thread. The zero value is never a live thread.
type ThreadID uint32

// Status is the scheduling state of a thread.
type Status uint8

const (
	Wait Status = iota
	Ready
	Running
	Suspended
	Terminated
)

func (s Status) String() string {
	switch s {
	case Wait:
		return "wait"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Canceled is the return value observed by joiners of a thread that was
// cancelled or killed.
var Canceled = errors.New("kernel: thread canceled")

// ThreadFunc is the entry point of a thread created with ThreadCreate.
type ThreadFunc func(c *Context, arg any) any

// ThreadAttr carries creation options for ThreadCreate. A nil attr means
// the caller's priority, joinable, default stack.
type ThreadAttr struct {
	Priority  int
	Detached  bool
	StackSize int
}

// Thread is the thread control block.
type Thread struct {
	id     ThreadID
	task   *Task
	name   string
	entry  func(*Context)
	kernel bool

	status Status
	prio   int
	delay  uint32

	sched   link
	timeout link

	exec           execContext
	syscallPending bool

	actions      [numSignals]*Sigaction
	sigWaitSet   SigSet
	sigWaiting   bool
	sigDelivered Signal

	timers []*Timer
	mutexes []*Mutex

	joinQ      WaitQueue
	joiner     *Thread
	joinTarget *Thread
	detached   bool
	retval     any

	pollDeadline uint64
	pollTimedOut bool
	fileRequest  int

	stackSize int
}

// ID returns the thread ID.
func (t *Thread) ID() ThreadID { return t.id }

// ThreadInfo is a snapshot of one thread for monitors and ps-style listings.
type ThreadInfo struct {
	ID       ThreadID
	Task     TaskID
	Name     string
	Priority int
	Status   Status
	Kernel   bool
	Pending  bool
	Delay    uint32
}

func (t *Thread) info() ThreadInfo {
	var pid TaskID
	if t.task != nil {
		pid = t.task.id
	}
	return ThreadInfo{
		ID:       t.id,
		Task:     pid,
		Name:     t.name,
		Priority: t.prio,
		Status:   t.status,
		Kernel:   t.kernel,
		Pending:  t.syscallPending,
		Delay:    t.delay,
	}
}

func (k *Kernel) validPriority(prio int, kernel bool) bool {
	if kernel {
		return prio >= 1 && prio <= k.cfg.MaxPriority+kernelPriorities
	}
	return prio >= 1 && prio <= k.cfg.MaxPriority
}

// newThread registers a thread in task and parks it in the delay pool so the
// next scheduling pass admits it.
func (k *Kernel) newThread(task *Task, name string, entry func(*Context), prio int, stack int, detached bool) (*Thread, error) {
	if !k.validPriority(prio, task.kernel) {
		return nil, EINVAL
	}
	if stack <= 0 {
		stack = k.cfg.StackSize
	}
	t := &Thread{
		task:      task,
		name:      name,
		entry:     entry,
		kernel:    task.kernel,
		prio:      prio,
		detached:  detached,
		stackSize: stack,
	}
	id, ok := k.threads.alloc(t)
	if !ok {
		return nil, EAGAIN
	}
	t.id = ThreadID(id)
	t.exec.seed(k.cfg.SignalQueueDepth)
	task.threads = append(task.threads, t)
	k.sleep(t, 0)

	k.log.Debug().
		Uint32("tid", uint32(t.id)).
		Uint32("pid", uint32(task.id)).
		Str("name", name).
		Int("prio", prio).
		Msg("thread created")
	return t, nil
}

// makeReady appends t to the tail of its ready queue.
func (k *Kernel) makeReady(t *Thread) {
	unlink(t)
	k.ready[t.prio].pushBack(t)
	t.status = Ready
}

// sleep parks t in the delay pool for the given number of ticks.
func (k *Kernel) sleep(t *Thread, ticks uint32) {
	unlink(t)
	t.delay = ticks
	k.delay.pushBack(t)
	t.status = Wait
}

func (k *Kernel) suspend(t *Thread) {
	unlink(t)
	k.suspended.pushBack(t)
	t.status = Suspended
}

// resumeThread continues a stopped thread. One stopped mid-delay goes back
// to the delay pool with the ticks it had left; the delay does not run
// while the thread is stopped.
func (k *Kernel) resumeThread(t *Thread) {
	if t.status != Suspended {
		return
	}
	if t.delay > 0 {
		k.sleep(t, t.delay)
		return
	}
	k.makeReady(t)
}

func (k *Kernel) setPriority(t *Thread, prio int) {
	if t.prio == prio {
		return
	}
	t.prio = prio
	if t.status == Ready {
		k.makeReady(t)
	}
}

// exitThread terminates t, wakes its joiners and releases its execution
// context. Joinable threads stay behind as zombies until joined.
func (k *Kernel) exitThread(t *Thread, retval any) {
	if t.status == Terminated {
		return
	}
	unlink(t)
	k.timeouts.remove(t)
	for _, tm := range t.timers {
		k.timers.free(uint32(tm.id))
	}
	t.timers = nil
	k.unlockAll(t)
	t.status = Terminated
	t.retval = retval
	t.syscallPending = false
	if jt := t.joinTarget; jt != nil && jt.joiner == t {
		jt.joiner = nil
	}
	t.joinTarget = nil
	k.wakeAll(&t.joinQ)
	k.releaseExec(t)

	k.log.Debug().
		Uint32("tid", uint32(t.id)).
		Str("name", t.name).
		Msg("thread exited")

	if t.detached {
		k.reapThread(t)
	}
	task := t.task
	if task != nil && task.live() == 0 {
		k.releaseTask(task)
	}
}

// reapThread frees the slot of a terminated thread.
func (k *Kernel) reapThread(t *Thread) {
	if t.status != Terminated {
		return
	}
	k.threads.free(uint32(t.id))
	if task := t.task; task != nil {
		task.dropThread(t)
	}
}
