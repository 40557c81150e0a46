package app

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ember/hal"
	"ember/kernel"
)

func settle(t *testing.T, k *kernel.Kernel) {
	t.Helper()
	for i := 0; i < 10_000; i++ {
		switch k.Step() {
		case kernel.StepIdle:
			return
		case kernel.StepHalted:
			require.FailNow(t, "kernel halted", "err: %v", k.Err())
		}
	}
	require.FailNow(t, "kernel never went idle")
}

func tickN(t *testing.T, k *kernel.Kernel, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		k.Tick()
		settle(t, k)
	}
}

// captureFile is a console stand-in: writes are recorded and reads return
// injected input.
type captureFile struct {
	out   bytes.Buffer
	in    []byte
	readQ kernel.WaitQueue
}

func (f *captureFile) Read(op *kernel.FileOp, p []byte, _ int64) (int, error) {
	if len(f.in) == 0 {
		if op.NonBlocking() {
			return 0, kernel.EAGAIN
		}
		return 0, op.Block(&f.readQ)
	}
	n := copy(p, f.in)
	f.in = f.in[n:]
	return n, nil
}

func (f *captureFile) Write(op *kernel.FileOp, p []byte, _ int64) (int, error) {
	return f.out.Write(p)
}

func (f *captureFile) Ioctl(*kernel.FileOp, uint32, uintptr) error { return kernel.ENOTTY }

func (f *captureFile) Poll(events kernel.PollEvents) kernel.PollEvents {
	r := kernel.PollOut
	if len(f.in) > 0 {
		r |= kernel.PollIn
	}
	return r & events
}

// inject delivers input from interrupt context.
func (f *captureFile) inject(k *kernel.Kernel, s string) {
	k.Interrupt(func(irq *kernel.IRQ) {
		f.in = append(f.in, s...)
		irq.WakeAll(&f.readQ)
		irq.NotifyPollers()
	})
}

func (f *captureFile) lines() []string {
	s := strings.TrimSuffix(f.out.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type testFB struct {
	mu   sync.Mutex
	w, h int
	buf  []byte
}

func newTestFB(w, h int) *testFB { return &testFB{w: w, h: h, buf: make([]byte, w*h*2)} }

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Present() error          { return nil }

func (f *testFB) Update(fn func(buf []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.buf)
}

func (f *testFB) ClearRGB(r, g, b uint8) {
	p := hal.RGB565(r, g, b)
	f.Update(func(buf []byte) {
		for i := 0; i+1 < len(buf); i += 2 {
			buf[i], buf[i+1] = byte(p), byte(p>>8)
		}
	})
}

// count returns how many pixels hold p.
func (f *testFB) count(p uint16) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := 0; i+1 < len(f.buf); i += 2 {
		if uint16(f.buf[i])|uint16(f.buf[i+1])<<8 == p {
			n++
		}
	}
	return n
}

type lineLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLog) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *lineLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *lineLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// notifyWriter records writes and signals each one.
type notifyWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	wrote chan struct{}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	n, err := w.buf.Write(p)
	w.mu.Unlock()
	select {
	case w.wrote <- struct{}{}:
	default:
	}
	return n, err
}

func (w *notifyWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

type testSerial struct {
	io.Reader
	io.Writer
}

type testTime struct{ ch chan uint64 }

func (t testTime) Ticks() <-chan uint64 { return t.ch }

type testDisplay struct{ fb hal.Framebuffer }

func (d testDisplay) Framebuffer() hal.Framebuffer { return d.fb }

type testHAL struct {
	log    *lineLog
	serial hal.Serial
	time   hal.Time
	disp   hal.Display
}

func (h *testHAL) Logger() hal.Logger { return h.log }

func (h *testHAL) Display() hal.Display { return h.disp }

func (h *testHAL) Input() hal.Input { return nil }

func (h *testHAL) Time() hal.Time { return h.time }

func (h *testHAL) Serial() hal.Serial { return h.serial }

var _ hal.HAL = (*testHAL)(nil)
