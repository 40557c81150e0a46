package kernel

import "strconv"

// Sysno is a syscall number.
type Sysno uint8

const (
	SysYield Sysno = iota
	SysDelay
	SysSpawn
	SysExit
	SysGetpid
	SysGettid
	SysSetProgName
	SysGetPriority
	SysSetPriority
	SysThreadInfo

	SysOpen
	SysClose
	SysRead
	SysWrite
	SysIoctl
	SysLseek
	SysFstat
	SysPipe
	SysMkfifo
	SysReadDir
	SysPoll

	SysThreadCreate
	SysThreadJoin
	SysThreadDetach
	SysThreadCancel
	SysThreadExit
	SysThreadKill

	SysMutexLock
	SysMutexTryLock
	SysMutexUnlock
	SysCondWait
	SysCondSignal
	SysCondBroadcast
	SysSemInit
	SysSemPost
	SysSemWait
	SysSemTryWait
	SysSemGetValue

	SysSigaction
	SysSigwait
	SysKill
	SysRaise

	SysTimerCreate
	SysTimerDelete
	SysTimerSettime
	SysTimerGettime
	SysClockGettime

	SysMqOpen
	SysMqClose
	SysMqUnlink
	SysMqSend
	SysMqReceive
	SysMqGetattr
	SysMqSetattr

	numSysno
)

var sysnoNames = [numSysno]string{
	SysYield:         "yield",
	SysDelay:         "delay",
	SysSpawn:         "spawn",
	SysExit:          "exit",
	SysGetpid:        "getpid",
	SysGettid:        "gettid",
	SysSetProgName:   "setprogname",
	SysGetPriority:   "getpriority",
	SysSetPriority:   "setpriority",
	SysThreadInfo:    "thread_info",
	SysOpen:          "open",
	SysClose:         "close",
	SysRead:          "read",
	SysWrite:         "write",
	SysIoctl:         "ioctl",
	SysLseek:         "lseek",
	SysFstat:         "fstat",
	SysPipe:          "pipe",
	SysMkfifo:        "mkfifo",
	SysReadDir:       "readdir",
	SysPoll:          "poll",
	SysThreadCreate:  "pthread_create",
	SysThreadJoin:    "pthread_join",
	SysThreadDetach:  "pthread_detach",
	SysThreadCancel:  "pthread_cancel",
	SysThreadExit:    "pthread_exit",
	SysThreadKill:    "pthread_kill",
	SysMutexLock:     "mutex_lock",
	SysMutexTryLock:  "mutex_trylock",
	SysMutexUnlock:   "mutex_unlock",
	SysCondWait:      "cond_wait",
	SysCondSignal:    "cond_signal",
	SysCondBroadcast: "cond_broadcast",
	SysSemInit:       "sem_init",
	SysSemPost:       "sem_post",
	SysSemWait:       "sem_wait",
	SysSemTryWait:    "sem_trywait",
	SysSemGetValue:   "sem_getvalue",
	SysSigaction:     "sigaction",
	SysSigwait:       "sigwait",
	SysKill:          "kill",
	SysRaise:         "raise",
	SysTimerCreate:   "timer_create",
	SysTimerDelete:   "timer_delete",
	SysTimerSettime:  "timer_settime",
	SysTimerGettime:  "timer_gettime",
	SysClockGettime:  "clock_gettime",
	SysMqOpen:        "mq_open",
	SysMqClose:       "mq_close",
	SysMqUnlink:      "mq_unlink",
	SysMqSend:        "mq_send",
	SysMqReceive:     "mq_receive",
	SysMqGetattr:     "mq_getattr",
	SysMqSetattr:     "mq_setattr",
}

func (n Sysno) String() string {
	if n < numSysno && sysnoNames[n] != "" {
		return sysnoNames[n]
	}
	return "sys" + strconv.Itoa(int(n))
}
