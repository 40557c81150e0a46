// Package serial implements the console character device: a byte stream
// between kernel threads and a host port such as stdio or a UART.
package serial

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"

	"ember/kernel"
)

// Ioctl commands.
const (
	// IoctlFlushRx discards buffered input.
	IoctlFlushRx uint32 = 0x5401
)

const (
	defaultRxSize = 256
	defaultTxSize = 256
	readChunk     = 64
)

// Config configures a Console. Zero fields take defaults.
type Config struct {
	RxSize int
	TxSize int

	// Port is the host side of the line. Nil leaves the console unattached:
	// output goes only to Tap and input only comes from Feed.
	Port io.ReadWriter

	// Tap receives a copy of everything transmitted.
	Tap io.Writer

	Logger zerolog.Logger
}

// Console is a kernel.File backed by two rings. Kernel threads fill tx and
// drain rx with interrupts masked; Run moves bytes between the rings and
// the port and raises an interrupt whenever waiters may proceed.
type Console struct {
	k    *kernel.Kernel
	port io.ReadWriter
	tap  io.Writer
	log  zerolog.Logger

	rx *ring
	tx *ring

	rxIn   chan []byte
	txKick chan struct{}

	readQ  kernel.WaitQueue
	writeQ kernel.WaitQueue

	overruns atomic.Int64
}

var _ kernel.File = (*Console)(nil)

// New returns a console that raises interrupts on k.
func New(k *kernel.Kernel, cfg Config) *Console {
	if cfg.RxSize <= 0 {
		cfg.RxSize = defaultRxSize
	}
	if cfg.TxSize <= 0 {
		cfg.TxSize = defaultTxSize
	}
	return &Console{
		k:      k,
		port:   cfg.Port,
		tap:    cfg.Tap,
		log:    cfg.Logger.With().Str("component", "console").Logger(),
		rx:     newRing(cfg.RxSize),
		tx:     newRing(cfg.TxSize),
		rxIn:   make(chan []byte, 16),
		txKick: make(chan struct{}, 1),
	}
}

// Read returns whatever input is buffered, at least one byte. With nothing
// buffered a blocking caller sleeps until input arrives.
func (c *Console) Read(op *kernel.FileOp, p []byte, _ int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.rx.len() == 0 {
		if op.NonBlocking() {
			return 0, kernel.EAGAIN
		}
		op.SetRequest(1)
		return 0, op.Block(&c.readQ)
	}
	n := c.rx.read(p)
	if c.rx.len() > 0 {
		op.WakeHighest(&c.readQ, nil)
	}
	return n, nil
}

// Write queues as much of p as fits for transmission and returns the count.
// With no room at all a blocking caller sleeps until Run drains the line.
func (c *Console) Write(op *kernel.FileOp, p []byte, _ int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.tx.avail() == 0 {
		if op.NonBlocking() {
			return 0, kernel.EAGAIN
		}
		op.SetRequest(1)
		return 0, op.Block(&c.writeQ)
	}
	n := c.tx.write(p)
	select {
	case c.txKick <- struct{}{}:
	default:
	}
	return n, nil
}

func (c *Console) Ioctl(op *kernel.FileOp, cmd uint32, _ uintptr) error {
	switch cmd {
	case IoctlFlushRx:
		c.rx.discard()
		return nil
	default:
		return kernel.ENOTTY
	}
}

func (c *Console) Poll(events kernel.PollEvents) kernel.PollEvents {
	var r kernel.PollEvents
	if c.rx.len() > 0 {
		r |= kernel.PollIn
	}
	if c.tx.avail() > 0 {
		r |= kernel.PollOut
	}
	return r & events
}

func (c *Console) Stat() kernel.FileInfo {
	return kernel.FileInfo{Name: "console", Size: int64(c.rx.len()), Mode: kernel.ModeChar}
}

// Feed queues input as if it had arrived on the port. It blocks until Run
// accepts it or ctx is done.
func (c *Console) Feed(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	b := append([]byte(nil), p...)
	select {
	case c.rxIn <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Overruns returns the number of input bytes dropped because rx was full.
func (c *Console) Overruns() int64 { return c.overruns.Load() }

// Run services the line until ctx is done or the port fails on write.
func (c *Console) Run(ctx context.Context) error {
	if c.port != nil {
		// Port reads cannot be interrupted, so the reader is left detached
		// and exits on its own once the port reports an error.
		go c.readPort(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-c.rxIn:
			c.receive(b)
		case <-c.txKick:
			if err := c.transmit(); err != nil {
				return err
			}
		}
	}
}

func (c *Console) readPort(ctx context.Context) {
	buf := make([]byte, readChunk)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			select {
			case c.rxIn <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn().Err(err).Msg("port read failed")
			}
			return
		}
	}
}

// receive moves input into rx and wakes a reader. Only one goroutine may
// call it at a time.
func (c *Console) receive(p []byte) {
	n := c.rx.write(p)
	if dropped := len(p) - n; dropped > 0 {
		c.overruns.Add(int64(dropped))
		c.log.Warn().Int("dropped", dropped).Msg("rx overrun")
	}
	if n == 0 {
		return
	}
	c.k.Interrupt(func(irq *kernel.IRQ) {
		irq.WakeHighest(&c.readQ, nil)
		irq.NotifyPollers()
	})
}

// transmit drains tx to the port and tap, then wakes writers.
func (c *Console) transmit() error {
	buf := make([]byte, c.tx.cap())
	n := c.tx.read(buf)
	if n == 0 {
		return nil
	}
	out := buf[:n]
	if c.tap != nil {
		_, _ = c.tap.Write(out)
	}
	var err error
	if c.port != nil {
		if _, err = c.port.Write(out); err != nil {
			c.log.Error().Err(err).Msg("port write failed")
		}
	}
	c.k.Interrupt(func(irq *kernel.IRQ) {
		irq.WakeAll(&c.writeQ)
		irq.NotifyPollers()
	})
	return err
}
