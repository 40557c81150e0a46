package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	k := New(cfg)
	t.Cleanup(k.Close)
	return k
}

// runUntilIdle steps k until only the idle thread is runnable.
func runUntilIdle(t *testing.T, k *Kernel) {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		switch r := k.Step(); r {
		case StepIdle:
			return
		case StepHalted:
			require.FailNow(t, "kernel halted", "err: %v", k.Err())
		}
	}
	require.FailNow(t, "kernel never went idle")
}

// tickN delivers n ticks, letting the system settle after each.
func tickN(t *testing.T, k *Kernel, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		k.Tick()
		runUntilIdle(t, k)
	}
}

func spawn(t *testing.T, k *Kernel, name string, prio int, fn TaskFunc) TaskID {
	t.Helper()
	pid, err := k.CreateTask(name, fn, prio)
	require.NoError(t, err)
	return pid
}

// trace records events from thread goroutines. Only one goroutine runs at a
// time, so appends need no locking.
type trace struct {
	events []string
}

func (tr *trace) add(format string, args ...any) {
	tr.events = append(tr.events, fmt.Sprintf(format, args...))
}

func threadByName(k *Kernel, name string) (ThreadInfo, bool) {
	for _, ti := range k.Threads() {
		if ti.Name == name {
			return ti, true
		}
	}
	return ThreadInfo{}, false
}
