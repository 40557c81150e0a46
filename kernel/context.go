package kernel

import (
	"runtime"
	"time"
)

// Context provides thread-local access to kernel operations. Every method
// traps into the kernel; it is only valid on the goroutine of the thread it
// was handed to.
type Context struct {
	k *Kernel
	t *Thread
}

// Tid returns the calling thread's ID.
func (c *Context) Tid() ThreadID { return c.t.id }

// Pid returns the calling thread's task ID.
func (c *Context) Pid() TaskID { return c.t.task.id }

// Syscall traps into the kernel and returns the raw return slot.
func (c *Context) Syscall(call Sysno, args Args) int {
	c.k.traps <- trapFrame{t: c.t, call: call, args: args}
	fr, ok := <-c.t.exec.resume
	if !ok {
		runtime.Goexit()
	}
	c.runStaged(fr.handlers)
	return fr.ret
}

func (c *Context) runStaged(hs []stagedHandler) {
	for _, h := range hs {
		h(c)
	}
}

func (c *Context) call(n Sysno, args ...any) int {
	var a Args
	copy(a[:], args)
	return c.Syscall(n, a)
}

func (c *Context) callErr(n Sysno, args ...any) error {
	return result(c.call(n, args...))
}

func (c *Context) callInt(n Sysno, args ...any) (int, error) {
	ret := c.call(n, args...)
	if ret < 0 {
		return 0, Errno(-ret)
	}
	return ret, nil
}

// Yield gives up the processor to threads of equal priority.
func (c *Context) Yield() { c.call(SysYield) }

// Delay sleeps for n ticks.
func (c *Context) Delay(n uint32) { c.call(SysDelay, n) }

// Sleep sleeps for at least d.
func (c *Context) Sleep(d time.Duration) {
	c.Delay(uint32(c.k.durationToTicks(d)))
}

// Spawn starts a new task. A zero prio inherits the caller's.
func (c *Context) Spawn(name string, fn TaskFunc, prio int) (TaskID, error) {
	ret, err := c.callInt(SysSpawn, name, fn, prio)
	return TaskID(ret), err
}

// Exit terminates the calling task. It does not return.
func (c *Context) Exit(code int) {
	c.call(SysExit, code)
	runtime.Goexit()
}

// Getpid returns the task ID as seen by the kernel.
func (c *Context) Getpid() TaskID { return TaskID(c.call(SysGetpid)) }

// Gettid returns the thread ID as seen by the kernel.
func (c *Context) Gettid() ThreadID { return ThreadID(c.call(SysGettid)) }

// SetProgName renames the calling task.
func (c *Context) SetProgName(name string) error { return c.callErr(SysSetProgName, name) }

// GetPriority returns the priority of tid (0 for the caller).
func (c *Context) GetPriority(tid ThreadID) (int, error) {
	return c.callInt(SysGetPriority, tid)
}

// SetPriority changes the priority of tid (0 for the caller).
func (c *Context) SetPriority(tid ThreadID, prio int) error {
	return c.callErr(SysSetPriority, tid, prio)
}

// Threads lists every thread in the system.
func (c *Context) Threads() []ThreadInfo {
	var out []ThreadInfo
	c.call(SysThreadInfo, &out)
	return out
}

// Open opens path in the kernel namespace and returns a descriptor.
func (c *Context) Open(path string, flags int) (int, error) {
	return c.callInt(SysOpen, path, flags)
}

func (c *Context) Close(fd int) error { return c.callErr(SysClose, fd) }

func (c *Context) Read(fd int, p []byte) (int, error) { return c.callInt(SysRead, fd, p) }

func (c *Context) Write(fd int, p []byte) (int, error) { return c.callInt(SysWrite, fd, p) }

func (c *Context) Ioctl(fd int, cmd uint32, arg uintptr) error {
	return c.callErr(SysIoctl, fd, cmd, arg)
}

func (c *Context) Lseek(fd int, off int64, whence int) (int64, error) {
	ret, err := c.callInt(SysLseek, fd, off, whence)
	return int64(ret), err
}

func (c *Context) Fstat(fd int) (FileInfo, error) {
	var fi FileInfo
	err := c.callErr(SysFstat, fd, &fi)
	return fi, err
}

// Pipe returns a connected read and write descriptor pair.
func (c *Context) Pipe() (r, w int, err error) {
	var fds [2]int
	if err := c.callErr(SysPipe, &fds); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// Mkfifo creates a named pipe at path.
func (c *Context) Mkfifo(path string) error { return c.callErr(SysMkfifo, path) }

func (c *Context) ReadDir(path string) ([]DirEntry, error) {
	var ents []DirEntry
	err := c.callErr(SysReadDir, path, &ents)
	return ents, err
}

// Poll waits until one of fds is ready or timeout passes. A negative
// timeout waits forever; zero only scans.
func (c *Context) Poll(fds []PollFd, timeout time.Duration) (int, error) {
	ticks := -1
	if timeout >= 0 {
		ticks = int(c.k.durationToTicks(timeout))
	}
	return c.callInt(SysPoll, fds, ticks)
}

// ThreadCreate starts fn(arg) on a new thread of the calling task.
func (c *Context) ThreadCreate(fn ThreadFunc, arg any, attr *ThreadAttr) (ThreadID, error) {
	ret, err := c.callInt(SysThreadCreate, fn, arg, attr)
	return ThreadID(ret), err
}

// Join waits for tid to exit and returns its return value.
func (c *Context) Join(tid ThreadID) (any, error) {
	var v any
	err := c.callErr(SysThreadJoin, tid, &v)
	return v, err
}

func (c *Context) Detach(tid ThreadID) error { return c.callErr(SysThreadDetach, tid) }

func (c *Context) Cancel(tid ThreadID) error { return c.callErr(SysThreadCancel, tid) }

// ThreadExit terminates the calling thread with v. It does not return.
func (c *Context) ThreadExit(v any) {
	c.call(SysThreadExit, v)
	runtime.Goexit()
}

// Kill sends sig to a thread.
func (c *Context) Kill(tid ThreadID, sig Signal) error {
	return c.callErr(SysThreadKill, tid, sig)
}

// KillTask sends sig to every thread of a task.
func (c *Context) KillTask(pid TaskID, sig Signal) error {
	return c.callErr(SysKill, pid, sig)
}

// Raise sends sig to the calling thread.
func (c *Context) Raise(sig Signal) error { return c.callErr(SysRaise, sig) }

func (c *Context) Lock(m *Mutex) error { return c.callErr(SysMutexLock, m) }

func (c *Context) TryLock(m *Mutex) error { return c.callErr(SysMutexTryLock, m) }

func (c *Context) Unlock(m *Mutex) error { return c.callErr(SysMutexUnlock, m) }

// Wait releases m, sleeps on cv and re-locks m once woken.
func (c *Context) Wait(cv *Cond, m *Mutex) error {
	if err := c.callErr(SysCondWait, cv, m); err != nil {
		return err
	}
	return c.Lock(m)
}

func (c *Context) Signal(cv *Cond) error { return c.callErr(SysCondSignal, cv) }

func (c *Context) Broadcast(cv *Cond) error { return c.callErr(SysCondBroadcast, cv) }

func (c *Context) SemInit(s *Semaphore, value int) error {
	return c.callErr(SysSemInit, s, value)
}

func (c *Context) Post(s *Semaphore) error { return c.callErr(SysSemPost, s) }

func (c *Context) SemWait(s *Semaphore) error { return c.callErr(SysSemWait, s) }

func (c *Context) TryWait(s *Semaphore) error { return c.callErr(SysSemTryWait, s) }

func (c *Context) SemValue(s *Semaphore) (int, error) {
	var v int
	err := c.callErr(SysSemGetValue, s, &v)
	return v, err
}

// Sigaction installs act for sig and returns the previous disposition.
func (c *Context) Sigaction(sig Signal, act *Sigaction) (Sigaction, error) {
	var old Sigaction
	err := c.callErr(SysSigaction, sig, act, &old)
	return old, err
}

// Sigwait blocks until one of set is raised on the caller.
func (c *Context) Sigwait(set SigSet) (Signal, error) {
	var sig Signal
	err := c.callErr(SysSigwait, set, &sig)
	return sig, err
}

func (c *Context) TimerCreate(ev *SigEvent) (TimerID, error) {
	var id TimerID
	err := c.callErr(SysTimerCreate, ev, &id)
	return id, err
}

func (c *Context) TimerDelete(id TimerID) error { return c.callErr(SysTimerDelete, id) }

func (c *Context) TimerSettime(id TimerID, spec ItimerSpec) (ItimerSpec, error) {
	var old ItimerSpec
	err := c.callErr(SysTimerSettime, id, 0, &spec, &old)
	return old, err
}

func (c *Context) TimerGettime(id TimerID) (ItimerSpec, error) {
	var cur ItimerSpec
	err := c.callErr(SysTimerGettime, id, &cur)
	return cur, err
}

// Now returns the monotonic time since boot at tick resolution.
func (c *Context) Now() time.Duration {
	var d time.Duration
	c.call(SysClockGettime, &d)
	return d
}

// MqOpen opens or creates a message queue. attr may be nil.
func (c *Context) MqOpen(name string, flags int, attr *MQAttr) (int, error) {
	return c.callInt(SysMqOpen, name, flags, attr)
}

func (c *Context) MqClose(mqd int) error { return c.callErr(SysMqClose, mqd) }

func (c *Context) MqUnlink(name string) error { return c.callErr(SysMqUnlink, name) }

func (c *Context) MqSend(mqd int, msg []byte, prio uint) error {
	return c.callErr(SysMqSend, mqd, msg, prio)
}

// MqReceive receives the oldest message into buf, which must hold MsgSize
// bytes.
func (c *Context) MqReceive(mqd int, buf []byte) (int, uint, error) {
	var prio uint
	n, err := c.callInt(SysMqReceive, mqd, buf, &prio)
	return n, prio, err
}

func (c *Context) MqGetattr(mqd int) (MQAttr, error) {
	var attr MQAttr
	err := c.callErr(SysMqGetattr, mqd, &attr)
	return attr, err
}

func (c *Context) MqSetattr(mqd int, attr MQAttr) (MQAttr, error) {
	var old MQAttr
	err := c.callErr(SysMqSetattr, mqd, &attr, &old)
	return old, err
}
