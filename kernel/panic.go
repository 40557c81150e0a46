package kernel

import (
	"errors"
	"fmt"
)

// ErrHalted is returned by Run after a thread faulted.
var ErrHalted = errors.New("kernel: halted")

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("kernel: closed")

// ErrForeignContext is the fault value when a thread traps through a
// Context that belongs to another thread.
var ErrForeignContext = errors.New("kernel: context used off its thread")

// PanicInfo contains details about a thread fault: a Go panic raised on the
// thread's goroutine.
type PanicInfo struct {
	Thread ThreadID
	Task   TaskID
	Name   string
	Value  any
	Stack  []byte
}

func (p *PanicInfo) Error() string {
	return fmt.Sprintf("thread %d (%s) faulted: %v", p.Thread, p.Name, p.Value)
}

// InPanicMode reports whether a thread fault halted the kernel.
func (k *Kernel) InPanicMode() bool {
	return k.panicActive.Load()
}

// Fault returns the fault that halted the kernel, if any.
func (k *Kernel) Fault() *PanicInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fault
}

// triggerPanic halts the kernel. It must be called with the lock held; the
// fault hook runs later, outside the lock, via reportFault.
func (k *Kernel) triggerPanic(info *PanicInfo) {
	if k.fault != nil {
		return
	}
	k.fault = info
	k.halted = true
	k.panicActive.Store(true)
	k.log.Error().
		Uint32("tid", uint32(info.Thread)).
		Uint32("pid", uint32(info.Task)).
		Str("name", info.Name).
		Interface("panic", info.Value).
		Msg("thread fault, kernel halted")
}

func (k *Kernel) reportFault() {
	k.panicOnce.Do(func() {
		if fn := k.cfg.OnFault; fn != nil {
			fn(*k.fault)
		}
	})
}
