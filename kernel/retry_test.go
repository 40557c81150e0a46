package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollDeadlineIsArmedOnce(t *testing.T) {
	k := newTestKernel(t, Config{TickHz: 1000})
	require.NoError(t, k.RegisterDevice("/dev/quiet", NewPipe(8)))
	require.NoError(t, k.RegisterDevice("/dev/busy", NewPipe(8)))

	var deadlines []uint64
	k.syscalls[SysPoll] = func(k *Kernel, t *Thread, a *Args) Poll {
		p := sysPoll(k, t, a)
		deadlines = append(deadlines, t.pollDeadline)
		return p
	}

	var (
		n       = -1
		pollErr error
		at      time.Duration
	)
	spawn(t, k, "poller", 2, func(c *Context) {
		fd, _ := c.Open("/dev/quiet", O_RDONLY)
		n, pollErr = c.Poll([]PollFd{{Fd: fd, Events: PollIn}}, 5*time.Millisecond)
		at = c.Now()
	})
	// Every write notifies pollers, so the poller rescans without its own
	// descriptor becoming ready.
	spawn(t, k, "noise", 1, func(c *Context) {
		fd, _ := c.Open("/dev/busy", O_WRONLY)
		for i := 0; i < 3; i++ {
			c.Delay(1)
			_, _ = c.Write(fd, []byte{byte(i)})
		}
	})

	runUntilIdle(t, k)
	tickN(t, k, 4)
	require.Equal(t, -1, n)

	tickN(t, k, 1)
	require.NoError(t, pollErr)
	require.Zero(t, n)
	require.Equal(t, 5*time.Millisecond, at)
	require.Equal(t, []uint64{5, 5, 5, 5, 5}, deadlines)
}

func TestPollReturnsReadyDescriptors(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		immediate, zero, woke int
		revents              []PollEvents
	)
	spawn(t, k, "a", 2, func(c *Context) {
		r, w, _ := c.Pipe()
		fds := []PollFd{{Fd: r, Events: PollIn}, {Fd: w, Events: PollOut}, {Fd: 12, Events: PollIn}}
		immediate, _ = c.Poll(fds, -1)
		for _, pf := range fds {
			revents = append(revents, pf.Revents)
		}
		zero, _ = c.Poll(fds[:1], 0)

		tid, _ := c.ThreadCreate(func(c *Context, _ any) any {
			c.Delay(2)
			_, _ = c.Write(w, []byte("x"))
			return nil
		}, nil, nil)
		woke, _ = c.Poll(fds[:1], -1)
		_, _ = c.Join(tid)
	})

	runUntilIdle(t, k)
	tickN(t, k, 2)

	require.Equal(t, 2, immediate)
	require.Equal(t, []PollEvents{0, PollOut, PollNval}, revents)
	require.Zero(t, zero)
	require.Equal(t, 1, woke)
}

func TestUnknownSyscallIsENOSYS(t *testing.T) {
	k := newTestKernel(t, Config{})
	var rets []int
	spawn(t, k, "a", 2, func(c *Context) {
		rets = append(rets, c.Syscall(numSysno, Args{}))
		rets = append(rets, c.Syscall(Sysno(255), Args{}))
	})
	k.syscalls[SysYield] = nil
	spawn(t, k, "b", 1, func(c *Context) {
		rets = append(rets, c.Syscall(SysYield, Args{}))
	})

	runUntilIdle(t, k)
	require.Equal(t, []int{-int(ENOSYS), -int(ENOSYS), -int(ENOSYS)}, rets)
}

func TestPendingHandlerRunsAgainUntilComplete(t *testing.T) {
	k := newTestKernel(t, Config{})
	var sem Semaphore
	calls := 0
	k.syscalls[SysSemWait] = func(k *Kernel, t *Thread, a *Args) Poll {
		calls++
		return sysSemWait(k, t, a)
	}

	var err error = EIO
	spawn(t, k, "waiter", 2, func(c *Context) {
		err = c.SemWait(&sem)
	})
	spawn(t, k, "poster", 1, func(c *Context) {
		c.Delay(1)
		_ = c.Post(&sem)
	})

	runUntilIdle(t, k)
	require.Equal(t, 1, calls)

	tickN(t, k, 1)
	require.Equal(t, 2, calls)
	require.NoError(t, err)
}
