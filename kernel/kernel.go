package kernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// kernelPriorities is the number of levels above MaxPriority reserved
	// for kernel threads.
	kernelPriorities = 2

	defaultMaxThreads  = 64
	defaultMaxTasks    = 32
	defaultMaxPriority = 5
	defaultTickHz      = 1000
	defaultPipeDepth   = 100
	defaultMaxFiles    = 16
	defaultMaxTimers   = 32
	defaultMaxMQueues  = 8
	defaultSigQueue    = 4
	defaultStackSize   = 1024
)

// Config holds the kernel tunables. Zero fields take defaults.
type Config struct {
	MaxThreads  int
	MaxTasks    int
	MaxPriority int
	TickHz      int
	PipeDepth   int
	MaxFiles    int
	MaxTimers   int
	MaxMQueues  int
	StackSize   int

	// SignalQueueDepth bounds the handlers staged on one thread.
	SignalQueueDepth int

	// ReclaimSlots lets thread, task and timer slots be reused under a new
	// generation once released. By default released slots are retired.
	ReclaimSlots bool

	Logger zerolog.Logger

	// FS is the namespace open and mkfifo resolve against. Nil means a
	// fresh DevFS.
	FS FileSystem

	// OnFault is invoked once, outside the kernel lock, after a thread
	// fault halts the kernel.
	OnFault func(PanicInfo)
}

func (c Config) withDefaults() Config {
	if c.MaxThreads <= 0 {
		c.MaxThreads = defaultMaxThreads
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = defaultMaxTasks
	}
	if c.MaxPriority <= 0 {
		c.MaxPriority = defaultMaxPriority
	}
	if c.TickHz <= 0 {
		c.TickHz = defaultTickHz
	}
	if c.PipeDepth <= 0 {
		c.PipeDepth = defaultPipeDepth
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = defaultMaxFiles
	}
	if c.MaxTimers <= 0 {
		c.MaxTimers = defaultMaxTimers
	}
	if c.MaxMQueues <= 0 {
		c.MaxMQueues = defaultMaxMQueues
	}
	if c.StackSize <= 0 {
		c.StackSize = defaultStackSize
	}
	if c.SignalQueueDepth <= 0 {
		c.SignalQueueDepth = defaultSigQueue
	}
	if c.FS == nil {
		c.FS = NewDevFS()
	}
	return c
}

// StepResult describes what one Step did.
type StepResult uint8

const (
	// StepRan means a thread ran until its next trap.
	StepRan StepResult = iota
	// StepBlocked means the selected thread retried a pending syscall and
	// blocked again.
	StepBlocked
	// StepIdle means nothing but the idle thread is runnable.
	StepIdle
	// StepHalted means the kernel was closed or a thread faulted.
	StepHalted
)

func (r StepResult) String() string {
	switch r {
	case StepRan:
		return "ran"
	case StepBlocked:
		return "blocked"
	case StepIdle:
		return "idle"
	case StepHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Kernel is a single-core preemptive priority scheduler with blocking
// primitives and IPC.
//
// mu is the interrupt mask: the trap path, Tick and Interrupt all hold it
// while touching kernel state. Step must be driven from one goroutine.
type Kernel struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	threads table[Thread]
	tasks   table[Task]
	timers  table[Timer]

	ready     []threadList
	delay     threadList
	suspended threadList
	timeouts  threadList
	sigwaitQ  WaitQueue
	pollQ     WaitQueue

	idle    *Thread
	current *Thread
	// running is the thread holding the baton while Step waits for its trap.
	running *Thread

	ticks uint64

	fs       FileSystem
	mqueues  map[string]*MQueue
	mqCount  int
	syscalls [numSysno]handler

	traps chan trapFrame
	wake  chan struct{}

	halted      bool
	closed      bool
	fault       *PanicInfo
	panicActive atomic.Bool
	panicOnce   sync.Once
}

// New creates a kernel with its idle thread.
func New(cfg Config) *Kernel {
	cfg = cfg.withDefaults()
	k := &Kernel{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "kernel").Logger(),
		threads:  newTable[Thread](cfg.MaxThreads, cfg.ReclaimSlots),
		tasks:    newTable[Task](cfg.MaxTasks, cfg.ReclaimSlots),
		timers:   newTable[Timer](cfg.MaxTimers, cfg.ReclaimSlots),
		ready:    make([]threadList, cfg.MaxPriority+kernelPriorities+1),
		timeouts: threadList{kind: timeoutLink},
		fs:       cfg.FS,
		mqueues:  make(map[string]*MQueue),
		syscalls: syscallTable,
		traps:    make(chan trapFrame),
		wake:     make(chan struct{}, 1),
	}

	idleTask := &Task{name: "idle", kernel: true}
	pid, _ := k.tasks.alloc(idleTask)
	idleTask.id = TaskID(pid)
	idle := &Thread{task: idleTask, name: "idle", kernel: true}
	tid, _ := k.threads.alloc(idle)
	idle.id = ThreadID(tid)
	idleTask.threads = []*Thread{idle}
	idleTask.main = idle
	k.idle = idle
	k.makeReady(idle)
	return k
}

// Config returns the effective configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Ticks returns the number of ticks since boot.
func (k *Kernel) Ticks() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ticks
}

// TickPeriod is the wall-clock length of one tick.
func (k *Kernel) TickPeriod() time.Duration {
	return time.Second / time.Duration(k.cfg.TickHz)
}

// durationToTicks rounds d up to whole ticks; any positive duration is at
// least one tick.
func (k *Kernel) durationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	p := k.TickPeriod()
	return uint64((d + p - 1) / p)
}

func (k *Kernel) ticksToDuration(n uint64) time.Duration {
	return time.Duration(n) * k.TickPeriod()
}

// Threads returns a snapshot of every registered thread.
func (k *Kernel) Threads() []ThreadInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.threadInfos()
}

func (k *Kernel) threadInfos() []ThreadInfo {
	var out []ThreadInfo
	k.threads.each(func(t *Thread) {
		out = append(out, t.info())
	})
	return out
}

// schedule runs one scheduling pass and returns the thread to run.
func (k *Kernel) schedule() *Thread {
	k.delay.each(func(t *Thread) {
		if t.delay == 0 {
			k.makeReady(t)
		}
	})

	if cur := k.current; cur != nil && cur.status == Running {
		if k.highestReady() <= cur.prio {
			return cur
		}
		k.makeReady(cur)
	}

	next := k.ready[k.highestReady()].popFront()
	next.status = Running
	k.current = next
	return next
}

func (k *Kernel) highestReady() int {
	for p := len(k.ready) - 1; p >= 0; p-- {
		if !k.ready[p].empty() {
			return p
		}
	}
	return -1
}

// Step runs one scheduling pass. A thread with a pending syscall retries it
// before any of its user code runs; otherwise the selected thread runs
// until its next trap, which is then dispatched.
func (k *Kernel) Step() StepResult {
	k.mu.Lock()
	if k.halted {
		k.mu.Unlock()
		return StepHalted
	}

	t := k.schedule()
	if t == k.idle {
		k.mu.Unlock()
		return StepIdle
	}

	if t.syscallPending {
		k.dispatch(t)
		if t.syscallPending || t.status != Running {
			k.mu.Unlock()
			return StepBlocked
		}
		if k.highestReady() > t.prio {
			k.mu.Unlock()
			return StepRan
		}
	}

	fr := t.exec.restore()
	k.running = t
	k.mu.Unlock()

	tf := k.switchTo(t, fr)

	k.mu.Lock()
	k.running = nil
	if tf.t != t {
		// The baton holder trapped through another thread's Context.
		k.triggerPanic(&PanicInfo{
			Thread: t.id,
			Task:   t.task.id,
			Name:   t.name,
			Value:  fmt.Errorf("%w: thread %d trapped as thread %d", ErrForeignContext, t.id, tf.t.id),
		})
	} else {
		k.trap(tf)
	}
	halted, faulted := k.halted, k.fault != nil
	k.mu.Unlock()

	if halted {
		if faulted {
			k.reportFault()
		}
		return StepHalted
	}
	return StepRan
}

// trap records the frame of a thread that entered the kernel and
// dispatches it.
func (k *Kernel) trap(tf trapFrame) {
	t := tf.t
	if tf.fault != nil {
		k.triggerPanic(tf.fault)
		k.exitThread(t, tf.fault)
		return
	}
	if t.status == Terminated {
		k.releaseExec(t)
		return
	}
	t.exec.save(tf)
	if t.status == Suspended {
		// Stopped while running user code: the call runs once resumed.
		t.syscallPending = true
		return
	}
	k.dispatch(t)
}

// Tick is the periodic timer interrupt: it advances time, counts down
// delays and timers, expires poll deadlines and ends the running thread's
// time slice.
func (k *Kernel) Tick() {
	k.mu.Lock()
	if !k.halted {
		k.ticks++
		k.delay.each(func(t *Thread) {
			if t.delay > 0 {
				t.delay--
			}
		})
		k.updateTimers()
		k.expireTimeouts()
		if cur := k.current; cur != nil && cur.status == Running {
			k.sleep(cur, 0)
		}
	}
	k.mu.Unlock()
	k.kick()
}

func (k *Kernel) kick() {
	select {
	case k.wake <- struct{}{}:
	default:
	}
}

// Run steps the kernel until ctx is done or the kernel halts. While only the
// idle thread is runnable it waits for the next tick or interrupt.
func (k *Kernel) Run(ctx context.Context) error {
	for {
		switch k.Step() {
		case StepHalted:
			return k.Err()
		case StepIdle:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-k.wake:
			}
		default:
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

// Err reports why the kernel halted, or nil while it is running.
func (k *Kernel) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch {
	case k.fault != nil:
		return fmt.Errorf("%w: %v", ErrHalted, k.fault)
	case k.closed:
		return ErrClosed
	case k.halted:
		return ErrHalted
	}
	return nil
}

// Close halts the kernel and stops every thread goroutine. It must not run
// concurrently with Step.
func (k *Kernel) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	k.closed = true
	k.halted = true
	k.threads.each(func(t *Thread) {
		k.releaseExec(t)
	})
	k.kick()
}
