package kernel

import "runtime"

// A thread's user code runs on its own goroutine, but only the goroutine
// holding the baton runs. The kernel hands the baton over by sending a
// resumeFrame and takes it back when the thread traps.

// trapFrame is the saved syscall frame of a thread.
type trapFrame struct {
	t     *Thread
	call  Sysno
	args  Args
	ret   int
	fault *PanicInfo
}

type resumeFrame struct {
	ret      int
	handlers []stagedHandler
}

// stagedHandler runs on the thread's goroutine before it returns to user
// code. Signal handlers and timer callbacks are staged this way.
type stagedHandler func(c *Context)

// execContext is the opaque per-thread execution context.
type execContext struct {
	started  bool
	released bool
	resume   chan resumeFrame
	frame    trapFrame
	staged   fifo[stagedHandler]
}

func (x *execContext) seed(depth int) {
	if depth <= 0 {
		depth = 1
	}
	x.resume = make(chan resumeFrame)
	x.staged = newFifo[stagedHandler](depth)
}

func (x *execContext) save(tf trapFrame) {
	x.frame = tf
}

// restore builds the frame the thread resumes with: the saved return value
// plus every staged handler.
func (x *execContext) restore() resumeFrame {
	fr := resumeFrame{ret: x.frame.ret}
	for {
		h, ok := x.staged.pop()
		if !ok {
			break
		}
		fr.handlers = append(fr.handlers, h)
	}
	return fr
}

// stage queues h, dropping the oldest staged handler when full. It reports
// whether a handler was dropped.
func (x *execContext) stage(h stagedHandler) bool {
	return x.staged.pushOverwrite(h)
}

func (k *Kernel) stage(t *Thread, h stagedHandler) {
	if t.exec.stage(h) {
		k.log.Warn().
			Uint32("tid", uint32(t.id)).
			Str("name", t.name).
			Msg("signal queue full, dropped oldest handler")
	}
}

// switchTo passes the baton to t and blocks until some thread traps.
// It is called without the kernel lock.
func (k *Kernel) switchTo(t *Thread, fr resumeFrame) trapFrame {
	if !t.exec.started {
		t.exec.started = true
		go k.threadMain(t, fr)
	} else {
		t.exec.resume <- fr
	}
	return <-k.traps
}

// releaseExec stops the goroutine of a terminated thread. The thread that
// currently holds the baton is released by Step once its trap lands.
func (k *Kernel) releaseExec(t *Thread) {
	if t == k.running {
		return
	}
	x := &t.exec
	if x.released {
		return
	}
	x.released = true
	if x.started {
		close(x.resume)
	}
}

func (k *Kernel) threadMain(t *Thread, first resumeFrame) {
	c := &Context{k: k, t: t}
	defer func() {
		if r := recover(); r != nil {
			k.traps <- trapFrame{t: t, fault: &PanicInfo{
				Thread: t.id,
				Task:   t.task.id,
				Name:   t.name,
				Value:  r,
				Stack:  captureStack(),
			}}
		}
	}()
	c.runStaged(first.handlers)
	t.entry(c)
	if t.task.main == t {
		c.Exit(0)
	} else {
		c.ThreadExit(nil)
	}
	runtime.Goexit()
}
