package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinReturnsThreadValue(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		got     any
		joinErr error
	)
	spawn(t, k, "main", 2, func(c *Context) {
		tid, err := c.ThreadCreate(func(c *Context, arg any) any {
			c.Delay(2)
			return arg.(int) * 2
		}, 21, nil)
		if err != nil {
			joinErr = err
			return
		}
		got, joinErr = c.Join(tid)
	})

	runUntilIdle(t, k)
	require.Nil(t, got)
	tickN(t, k, 2)

	require.NoError(t, joinErr)
	require.Equal(t, 42, got)
}

func TestJoinErrors(t *testing.T) {
	k := newTestKernel(t, Config{})
	var errs []error
	record := func(err error) { errs = append(errs, err) }

	spawn(t, k, "main", 2, func(c *Context) {
		_, err := c.Join(c.Tid())
		record(err)
		_, err = c.Join(ThreadID(0xFFFF))
		record(err)

		idle := func(c *Context, _ any) any { c.Delay(10); return nil }
		detached, _ := c.ThreadCreate(idle, nil, &ThreadAttr{Detached: true})
		_, err = c.Join(detached)
		record(err)
		record(c.Detach(detached))

		joinable, _ := c.ThreadCreate(idle, nil, nil)
		record(c.Detach(joinable))
		_, err = c.Join(joinable)
		record(err)
	})

	runUntilIdle(t, k)
	assert.Equal(t, []error{EDEADLK, ESRCH, EINVAL, EINVAL, nil, EINVAL}, errs)
}

func TestMutualJoinIsDeadlock(t *testing.T) {
	k := newTestKernel(t, Config{})
	var err error
	spawn(t, k, "main", 2, func(c *Context) {
		self := c.Tid()
		peer, _ := c.ThreadCreate(func(c *Context, _ any) any {
			_, _ = c.Join(self)
			return nil
		}, nil, nil)
		c.Yield()
		_, err = c.Join(peer)
	})

	runUntilIdle(t, k)
	require.ErrorIs(t, err, EDEADLK)
}

func TestSecondJoinerIsRejected(t *testing.T) {
	k := newTestKernel(t, Config{})
	var errs []error
	var target ThreadID

	spawn(t, k, "main", 3, func(c *Context) {
		target, _ = c.ThreadCreate(func(c *Context, _ any) any {
			c.Delay(5)
			return "done"
		}, nil, &ThreadAttr{Priority: 1})
		first, _ := c.ThreadCreate(func(c *Context, _ any) any {
			v, err := c.Join(target)
			errs = append(errs, err)
			return v
		}, nil, &ThreadAttr{Priority: 2})
		c.Delay(1)
		_, err := c.Join(target)
		errs = append(errs, err)
		v, err := c.Join(first)
		errs = append(errs, err)
		if v != "done" {
			errs = append(errs, EIO)
		}
	})

	runUntilIdle(t, k)
	tickN(t, k, 5)
	require.Equal(t, []error{EINVAL, nil, nil}, errs)
}

func TestCancelThread(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		v     any
		errs  []error
		after bool
	)
	spawn(t, k, "main", 2, func(c *Context) {
		tid, _ := c.ThreadCreate(func(c *Context, _ any) any {
			c.Delay(100)
			after = true
			return nil
		}, nil, nil)
		c.Yield()
		errs = append(errs, c.Cancel(tid))
		errs = append(errs, c.Cancel(tid))
		var err error
		v, err = c.Join(tid)
		errs = append(errs, err)
	})

	runUntilIdle(t, k)
	require.Equal(t, []error{nil, ESRCH, nil}, errs)
	require.Equal(t, Canceled, v)
	require.False(t, after)
}

func TestThreadTableFull(t *testing.T) {
	// The idle thread takes one slot.
	k := newTestKernel(t, Config{MaxThreads: 3})
	var errs []error
	spawn(t, k, "main", 2, func(c *Context) {
		_, err := c.ThreadCreate(func(c *Context, _ any) any { return nil }, nil, nil)
		errs = append(errs, err)
		_, err = c.ThreadCreate(func(c *Context, _ any) any { return nil }, nil, nil)
		errs = append(errs, err)
	})
	runUntilIdle(t, k)
	require.Equal(t, []error{nil, EAGAIN}, errs)

	_, err := k.CreateTask("late", func(c *Context) {}, 1)
	require.ErrorIs(t, err, EAGAIN)
}

func TestThreadSlotsRetiredOrReclaimed(t *testing.T) {
	for _, tc := range []struct {
		name     string
		reclaim  bool
		sameSlot bool
	}{
		{name: "retired", reclaim: false, sameSlot: false},
		{name: "reclaimed", reclaim: true, sameSlot: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newTestKernel(t, Config{ReclaimSlots: tc.reclaim})
			var first, second ThreadID
			var staleErr error
			spawn(t, k, "main", 2, func(c *Context) {
				quick := func(c *Context, _ any) any { return nil }
				first, _ = c.ThreadCreate(quick, nil, nil)
				_, _ = c.Join(first)
				second, _ = c.ThreadCreate(quick, nil, nil)
				_, _ = c.Join(second)
				_, staleErr = c.Join(first)
			})
			runUntilIdle(t, k)

			require.NotEqual(t, first, second)
			require.Equal(t, tc.sameSlot, first&0xFFFF == second&0xFFFF)
			require.ErrorIs(t, staleErr, ESRCH)
		})
	}
}

func TestTaskExitTerminatesAllThreads(t *testing.T) {
	k := newTestKernel(t, Config{})
	spins := 0
	spawn(t, k, "main", 2, func(c *Context) {
		for i := 0; i < 3; i++ {
			_, _ = c.ThreadCreate(func(c *Context, _ any) any {
				for {
					c.Delay(1)
					spins++
				}
			}, nil, nil)
		}
		c.Delay(2)
		c.Exit(3)
	})

	runUntilIdle(t, k)
	require.Len(t, k.Threads(), 5)
	tickN(t, k, 2)

	threads := k.Threads()
	require.Len(t, threads, 1)
	require.Equal(t, "idle", threads[0].Name)
	require.Equal(t, 1, k.tasks.len())
	// Main wakes ahead of the spinners on the second tick.
	require.Equal(t, 3, spins)
}

func TestProcessIdentity(t *testing.T) {
	k := newTestKernel(t, Config{})
	var (
		pid, child TaskID
		tids       []ThreadID
		errs       []error
		childPrio  int
		names      []string
	)
	pid = spawn(t, k, "parent", 3, func(c *Context) {
		tids = append(tids, c.Tid(), c.Gettid())
		errs = append(errs, c.SetProgName("renamed"))
		errs = append(errs, c.SetProgName("a-name-that-is-longer-than-thirty-two-bytes"))
		var err error
		child, err = c.Spawn("child", func(c *Context) {
			childPrio, _ = c.GetPriority(0)
		}, 0)
		errs = append(errs, err)
		for _, ti := range c.Threads() {
			names = append(names, ti.Name)
		}
		_, err = c.Spawn("bad", nil, 0)
		errs = append(errs, err)
	})

	runUntilIdle(t, k)

	require.Len(t, tids, 2)
	require.Equal(t, tids[0], tids[1])
	require.NotEqual(t, pid, child)
	require.Equal(t, []error{nil, ENAMETOOLONG, nil, EINVAL}, errs)
	require.Equal(t, 3, childPrio)
	require.Equal(t, []string{"idle", "renamed", "child"}, names)
}

func TestThreadFaultHaltsKernel(t *testing.T) {
	var faults []PanicInfo
	k := newTestKernel(t, Config{OnFault: func(p PanicInfo) { faults = append(faults, p) }})

	spawn(t, k, "bystander", 1, func(c *Context) { c.Delay(1000) })
	spawn(t, k, "crasher", 2, func(c *Context) {
		c.Yield()
		panic("boom")
	})

	var last StepResult
	for i := 0; i < 100 && last != StepHalted; i++ {
		last = k.Step()
	}
	require.Equal(t, StepHalted, last)
	require.Equal(t, StepHalted, k.Step())

	require.True(t, k.InPanicMode())
	require.Len(t, faults, 1)
	require.Equal(t, "boom", faults[0].Value)
	require.Equal(t, "crasher", faults[0].Name)
	require.ErrorIs(t, k.Err(), ErrHalted)
	require.Contains(t, k.Err().Error(), "boom")
	require.Same(t, k.Fault(), k.fault)
}

func TestRunStopsOnContextAndClose(t *testing.T) {
	k := New(Config{})
	done := make(chan struct{})
	spawn(t, k, "a", 2, func(c *Context) {
		c.Delay(1)
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- k.Run(ctx) }()

	// Run waits for the tick while idle.
	time.Sleep(10 * time.Millisecond)
	k.Tick()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("thread did not run after tick")
	}

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	k.Close()
	require.ErrorIs(t, k.Err(), ErrClosed)
	require.Equal(t, StepHalted, k.Step())
}

func TestContextUsedOffItsThreadHaltsKernel(t *testing.T) {
	var faults []PanicInfo
	k := newTestKernel(t, Config{OnFault: func(p PanicInfo) { faults = append(faults, p) }})

	var worker ThreadID
	spawn(t, k, "main", 2, func(c *Context) {
		parent := c
		tid, err := c.ThreadCreate(func(c *Context, _ any) any {
			parent.Yield()
			return nil
		}, nil, nil)
		if err != nil {
			return
		}
		worker = tid
		_, _ = c.Join(tid)
	})

	var last StepResult
	for i := 0; i < 100 && last != StepHalted; i++ {
		last = k.Step()
	}
	require.Equal(t, StepHalted, last)
	require.NotZero(t, worker)

	f := k.Fault()
	require.NotNil(t, f)
	require.Equal(t, worker, f.Thread)
	err, ok := f.Value.(error)
	require.True(t, ok)
	require.ErrorIs(t, err, ErrForeignContext)
	require.Len(t, faults, 1)
	require.ErrorIs(t, k.Err(), ErrHalted)
}
