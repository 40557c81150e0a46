package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMutexExcludesAcrossYields(t *testing.T) {
	k := newTestKernel(t, Config{})
	var m Mutex
	var tr trace
	inside := 0
	maxInside := 0
	for _, name := range []string{"a", "b", "c"} {
		name := name
		spawn(t, k, name, 2, func(c *Context) {
			for i := 0; i < 3; i++ {
				if err := c.Lock(&m); err != nil {
					tr.add("lock error %v", err)
					return
				}
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				tr.add(name + "+")
				c.Yield()
				tr.add(name + "-")
				inside--
				_ = c.Unlock(&m)
				c.Yield()
			}
		})
	}

	runUntilIdle(t, k)

	require.Equal(t, 1, maxInside)
	require.Len(t, tr.events, 18)
	for i := 0; i < len(tr.events); i += 2 {
		enter, leave := tr.events[i], tr.events[i+1]
		require.Equal(t, enter[:1]+"+", enter)
		require.Equal(t, enter[:1]+"-", leave)
	}
	require.Zero(t, m.Owner())
}

func TestMutexErrors(t *testing.T) {
	k := newTestKernel(t, Config{})
	var m Mutex
	var ownerErrs, otherErrs []error
	spawn(t, k, "owner", 2, func(c *Context) {
		ownerErrs = append(ownerErrs, c.Lock(&m))
		ownerErrs = append(ownerErrs, c.Lock(&m))
		c.Delay(2)
		ownerErrs = append(ownerErrs, c.Unlock(&m))
	})
	spawn(t, k, "other", 1, func(c *Context) {
		otherErrs = append(otherErrs, c.Unlock(&m))
		otherErrs = append(otherErrs, c.TryLock(&m))
		otherErrs = append(otherErrs, c.Lock(&m))
		otherErrs = append(otherErrs, c.Unlock(&m))
	})

	runUntilIdle(t, k)
	require.Equal(t, []error{nil, EDEADLK}, ownerErrs)
	require.Equal(t, []error{EPERM, EBUSY}, otherErrs)

	tickN(t, k, 2)
	require.Equal(t, []error{nil, EDEADLK, nil}, ownerErrs)
	require.Equal(t, []error{EPERM, EBUSY, nil, nil}, otherErrs)
}

func TestMutexWakesHighestPriorityWaiter(t *testing.T) {
	k := newTestKernel(t, Config{})
	var m Mutex
	var tr trace
	spawn(t, k, "holder", 5, func(c *Context) {
		_ = c.Lock(&m)
		c.Delay(5)
		_ = c.Unlock(&m)
	})
	// Waiters queue up in the order w1, w3, w2.
	for _, w := range []struct {
		name  string
		prio  int
		delay uint32
	}{{"w1", 1, 0}, {"w3", 3, 1}, {"w2", 2, 2}} {
		w := w
		spawn(t, k, w.name, w.prio, func(c *Context) {
			if w.delay > 0 {
				c.Delay(w.delay)
			}
			_ = c.Lock(&m)
			tr.add(w.name)
			_ = c.Unlock(&m)
		})
	}

	runUntilIdle(t, k)
	tickN(t, k, 4)
	require.Empty(t, tr.events)
	require.Equal(t, 3, m.q.Len())

	tickN(t, k, 1)
	if diff := cmp.Diff([]string{"w3", "w2", "w1"}, tr.events); diff != "" {
		t.Fatalf("wake order mismatch (-want +got):\n%s", diff)
	}
}

// A low-priority owner is not boosted while a high-priority thread waits on
// its mutex, so a medium-priority thread still preempts it.
func TestMutexDoesNotBoostOwnerPriority(t *testing.T) {
	k := newTestKernel(t, Config{})
	var m Mutex
	var gate Semaphore
	var tr trace
	var lowTid ThreadID
	ownerPrio := -1

	spawn(t, k, "high", 3, func(c *Context) {
		c.Delay(1)
		tr.add("high-lock")
		_ = c.Lock(&m)
		tr.add("high-acquired")
		_ = c.Unlock(&m)
	})
	spawn(t, k, "mid", 2, func(c *Context) {
		c.Delay(1)
		ownerPrio, _ = c.GetPriority(lowTid)
		tr.add("mid-run")
		_ = c.Post(&gate)
	})
	spawn(t, k, "low", 1, func(c *Context) {
		lowTid = c.Tid()
		_ = c.Lock(&m)
		tr.add("low-locked")
		_ = c.SemWait(&gate)
		tr.add("low-unlock")
		_ = c.Unlock(&m)
	})

	runUntilIdle(t, k)
	tickN(t, k, 1)

	want := []string{"low-locked", "high-lock", "mid-run", "low-unlock", "high-acquired"}
	if diff := cmp.Diff(want, tr.events); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 1, ownerPrio)
}

func TestMutexZeroValueIsUnlocked(t *testing.T) {
	var m Mutex
	require.Zero(t, m.Owner())
}

func TestKilledOwnerHandsMutexToWaiter(t *testing.T) {
	k := newTestKernel(t, Config{})
	var m Mutex
	var (
		lockErr error
		owned   bool
		killErr error
	)

	ownerPid := spawn(t, k, "owner", 3, func(c *Context) {
		_ = c.Lock(&m)
		c.Delay(100)
	})
	spawn(t, k, "waiter", 2, func(c *Context) {
		lockErr = c.Lock(&m)
		owned = m.Owner() == c.Tid()
	})
	spawn(t, k, "killer", 1, func(c *Context) {
		c.Delay(1)
		killErr = c.KillTask(ownerPid, SIGKILL)
	})

	runUntilIdle(t, k)
	info, ok := threadByName(k, "waiter")
	require.True(t, ok)
	require.True(t, info.Pending)
	require.False(t, owned)

	tickN(t, k, 1)
	require.NoError(t, killErr)
	require.NoError(t, lockErr)
	require.True(t, owned)
	_, ok = threadByName(k, "waiter")
	require.False(t, ok)
	// The waiter exited holding the lock, which released it again.
	require.Zero(t, m.Owner())
}
