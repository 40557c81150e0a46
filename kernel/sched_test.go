package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStepIdleWithNoThreads(t *testing.T) {
	k := newTestKernel(t, Config{})
	require.Equal(t, StepIdle, k.Step())
	require.Equal(t, "idle", k.Step().String())
}

func TestHigherPriorityRunsFirst(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	spawn(t, k, "low", 1, func(c *Context) { tr.add("low") })
	spawn(t, k, "high", 3, func(c *Context) { tr.add("high") })
	spawn(t, k, "mid", 2, func(c *Context) { tr.add("mid") })

	runUntilIdle(t, k)

	if diff := cmp.Diff([]string{"high", "mid", "low"}, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestEqualPriorityRunsInArrivalOrder(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	for _, name := range []string{"a", "b", "c"} {
		name := name
		spawn(t, k, name, 2, func(c *Context) {
			tr.add(name + "1")
			c.Yield()
			tr.add(name + "2")
		})
	}

	runUntilIdle(t, k)

	want := []string{"a1", "b1", "c1", "a2", "b2", "c2"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestTickEndsTimeSlice(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	for _, name := range []string{"a", "b"} {
		name := name
		spawn(t, k, name, 2, func(c *Context) {
			for i := 0; i < 3; i++ {
				tr.add(name)
				c.Getpid()
			}
		})
	}

	for i := 0; i < 6; i++ {
		require.Equal(t, StepRan, k.Step())
		k.Tick()
	}

	want := []string{"a", "b", "a", "b", "a", "b"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunningThreadKeepsCPUWithoutTick(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	for _, name := range []string{"a", "b"} {
		name := name
		spawn(t, k, name, 2, func(c *Context) {
			for i := 0; i < 2; i++ {
				tr.add(name)
				c.Getpid()
			}
		})
	}

	runUntilIdle(t, k)

	if diff := cmp.Diff([]string{"a", "a", "b", "b"}, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestDelayWaitsForTicks(t *testing.T) {
	k := newTestKernel(t, Config{TickHz: 1000})
	var tr trace
	spawn(t, k, "sleeper", 2, func(c *Context) {
		tr.add("before")
		c.Delay(3)
		tr.add("after %v", c.Now())
	})

	runUntilIdle(t, k)
	tickN(t, k, 2)
	require.Equal(t, []string{"before"}, tr.events)

	tickN(t, k, 1)
	require.Equal(t, []string{"before", "after 3ms"}, tr.events)
}

func TestWokenHigherPriorityPreemptsWaker(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	var sem Semaphore
	spawn(t, k, "high", 3, func(c *Context) {
		tr.add("high-wait")
		if err := c.SemWait(&sem); err != nil {
			tr.add("error %v", err)
		}
		tr.add("high-woke")
	})
	spawn(t, k, "low", 1, func(c *Context) {
		tr.add("low-post")
		_ = c.Post(&sem)
		tr.add("low-after")
	})

	runUntilIdle(t, k)

	want := []string{"high-wait", "low-post", "high-woke", "low-after"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunningThreadAlwaysHasHighestReadyPriority(t *testing.T) {
	k := newTestKernel(t, Config{})
	var violations []string
	for i, prio := range []int{1, 4, 2, 5, 3} {
		prio := prio
		spawn(t, k, string(rune('a'+i)), prio, func(c *Context) {
			for j := 0; j < 3; j++ {
				// The kernel is parked waiting for this thread's trap.
				if top := k.highestReady(); top > prio {
					violations = append(violations, c.t.name)
				}
				c.Yield()
			}
		})
	}

	runUntilIdle(t, k)
	require.Empty(t, violations)
}

func TestSetPriorityRequeuesReadyThread(t *testing.T) {
	k := newTestKernel(t, Config{})
	var tr trace
	var lowTid ThreadID
	var setErr error
	spawn(t, k, "boss", 3, func(c *Context) {
		info, _ := threadByNameCtx(c, "low")
		lowTid = info.ID
		setErr = c.SetPriority(lowTid, 4)
		tr.add("boss")
	})
	spawn(t, k, "mid", 2, func(c *Context) { tr.add("mid") })
	spawn(t, k, "low", 1, func(c *Context) { tr.add("low") })

	runUntilIdle(t, k)

	if diff := cmp.Diff([]string{"low", "boss", "mid"}, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
	require.NotZero(t, lowTid)
	require.NoError(t, setErr)
}

func threadByNameCtx(c *Context, name string) (ThreadInfo, bool) {
	for _, ti := range c.Threads() {
		if ti.Name == name {
			return ti, true
		}
	}
	return ThreadInfo{}, false
}

func TestSetPriorityRejectsOutOfRange(t *testing.T) {
	k := newTestKernel(t, Config{MaxPriority: 5})
	var errs []error
	spawn(t, k, "a", 2, func(c *Context) {
		errs = append(errs, c.SetPriority(0, 0))
		errs = append(errs, c.SetPriority(0, 6))
		errs = append(errs, c.SetPriority(ThreadID(0xFFFF), 1))
	})
	runUntilIdle(t, k)
	require.Equal(t, []error{EINVAL, EINVAL, ESRCH}, errs)
}

func TestSetPriorityRangeFollowsTarget(t *testing.T) {
	k := newTestKernel(t, Config{MaxPriority: 5})
	var errs []error
	var prios []int

	spawn(t, k, "user", 1, func(c *Context) { c.Delay(100) })
	_, err := k.CreateKernelTask("kworker", func(c *Context) {
		info, ok := threadByNameCtx(c, "user")
		if !ok {
			return
		}
		// Reserved levels are for kernel threads only.
		errs = append(errs, c.SetPriority(info.ID, 6))
		errs = append(errs, c.SetPriority(info.ID, 4))
		errs = append(errs, c.SetPriority(0, 7))
		p, _ := c.GetPriority(info.ID)
		prios = append(prios, p)
		p, _ = c.GetPriority(0)
		prios = append(prios, p)
	}, 6)
	require.NoError(t, err)

	runUntilIdle(t, k)
	require.Equal(t, []error{EINVAL, nil, nil}, errs)
	require.Equal(t, []int{4, 7}, prios)
}
