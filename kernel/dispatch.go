package kernel

// Args are the four argument registers of a trapped syscall. Out-parameters
// are passed as pointers and written by the kernel.
type Args [4]any

// arg returns argument i as a T, or T's zero value when absent or of
// another type.
func arg[T any](a *Args, i int) T {
	v, _ := a[i].(T)
	return v
}

// Poll is the outcome of one invocation of a syscall handler.
type Poll struct {
	Ret     int
	Pending bool
}

// Done completes the call with ret in the return slot.
func Done(ret int) Poll { return Poll{Ret: ret} }

// Fail completes the call with -err in the return slot.
func Fail(err Errno) Poll { return Poll{Ret: -int(err)} }

// Pending reports that the caller was blocked; the handler runs again,
// from the top, when the caller is next scheduled.
func Pending() Poll { return Poll{Pending: true} }

// handler implements one syscall. It runs with interrupts masked. A handler
// may run several times for one call, so effects that must happen once per
// call are guarded by !t.syscallPending.
type handler func(k *Kernel, t *Thread, a *Args) Poll

var syscallTable [numSysno]handler

func init() {
	syscallTable = [numSysno]handler{
		SysYield:         sysYield,
		SysDelay:         sysDelay,
		SysSpawn:         sysSpawn,
		SysExit:          sysExit,
		SysGetpid:        sysGetpid,
		SysGettid:        sysGettid,
		SysSetProgName:   sysSetProgName,
		SysGetPriority:   sysGetPriority,
		SysSetPriority:   sysSetPriority,
		SysThreadInfo:    sysThreadInfo,
		SysOpen:          sysOpen,
		SysClose:         sysClose,
		SysRead:          sysRead,
		SysWrite:         sysWrite,
		SysIoctl:         sysIoctl,
		SysLseek:         sysLseek,
		SysFstat:         sysFstat,
		SysPipe:          sysPipe,
		SysMkfifo:        sysMkfifo,
		SysReadDir:       sysReadDir,
		SysPoll:          sysPoll,
		SysThreadCreate:  sysThreadCreate,
		SysThreadJoin:    sysThreadJoin,
		SysThreadDetach:  sysThreadDetach,
		SysThreadCancel:  sysThreadCancel,
		SysThreadExit:    sysThreadExit,
		SysThreadKill:    sysThreadKill,
		SysMutexLock:     sysMutexLock,
		SysMutexTryLock:  sysMutexTryLock,
		SysMutexUnlock:   sysMutexUnlock,
		SysCondWait:      sysCondWait,
		SysCondSignal:    sysCondSignal,
		SysCondBroadcast: sysCondBroadcast,
		SysSemInit:       sysSemInit,
		SysSemPost:       sysSemPost,
		SysSemWait:       sysSemWait,
		SysSemTryWait:    sysSemTryWait,
		SysSemGetValue:   sysSemGetValue,
		SysSigaction:     sysSigaction,
		SysSigwait:       sysSigwait,
		SysKill:          sysKill,
		SysRaise:         sysRaise,
		SysTimerCreate:   sysTimerCreate,
		SysTimerDelete:   sysTimerDelete,
		SysTimerSettime:  sysTimerSettime,
		SysTimerGettime:  sysTimerGettime,
		SysClockGettime:  sysClockGettime,
		SysMqOpen:        sysMqOpen,
		SysMqClose:       sysMqClose,
		SysMqUnlink:      sysMqUnlink,
		SysMqSend:        sysMqSend,
		SysMqReceive:     sysMqReceive,
		SysMqGetattr:     sysMqGetattr,
		SysMqSetattr:     sysMqSetattr,
	}
}

// dispatch invokes the handler for t's saved frame.
func (k *Kernel) dispatch(t *Thread) {
	f := &t.exec.frame
	if f.call >= numSysno || k.syscalls[f.call] == nil {
		k.log.Warn().
			Uint32("tid", uint32(t.id)).
			Stringer("call", f.call).
			Msg("unknown syscall")
		t.syscallPending = false
		f.ret = -int(ENOSYS)
		return
	}

	p := k.syscalls[f.call](k, t, &f.args)
	if t.status == Terminated {
		return
	}
	if p.Pending {
		t.syscallPending = true
		return
	}
	t.syscallPending = false
	f.ret = p.Ret
}
