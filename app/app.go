// Package app boots the kernel on a HAL: it wires the tick source, the
// console line, the keyboard and the monitor, and starts the configured
// demo tasks.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ember/app/monitor"
	"ember/drivers/serial"
	"ember/hal"
	"ember/internal/buildinfo"
	"ember/internal/config"
	"ember/kernel"
)

type system struct {
	h       hal.HAL
	k       *kernel.Kernel
	console *serial.Console
	mon     *monitor.Monitor
	log     zerolog.Logger
}

// NewLogger returns the system logger writing through the HAL logger.
func NewLogger(h hal.HAL, cfg config.Log, level zerolog.Level) zerolog.Logger {
	var w io.Writer = hal.LogWriter{L: h.Logger()}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Main returns the HAL entry point for cfg.
func Main(cfg config.Config) hal.App {
	return func(ctx context.Context, h hal.HAL) error {
		return Boot(ctx, h, cfg, NewLogger(h, cfg.Log, cfg.Level()))
	}
}

// Boot starts the system on h and runs it until ctx is done or the kernel
// halts. After a fault on a machine with a display, Boot keeps the fault
// screen up until ctx is done.
func Boot(ctx context.Context, h hal.HAL, cfg config.Config, log zerolog.Logger) error {
	s, err := newSystem(h, cfg, log)
	if err != nil {
		return err
	}
	defer s.k.Close()

	log.Info().
		Str("version", buildinfo.Short()).
		Int("hz", s.k.Config().TickHz).
		Strs("demos", cfg.Boot.Demos).
		Msg("booting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.k.Run(gctx)
		if errors.Is(err, kernel.ErrHalted) && h.Display() != nil {
			<-gctx.Done()
		}
		return err
	})
	g.Go(func() error { return s.console.Run(gctx) })
	if t := h.Time(); t != nil {
		g.Go(func() error { return pumpTicks(gctx, s.k, t.Ticks()) })
	}
	if in := h.Input(); in != nil && in.Keyboard() != nil {
		g.Go(func() error { return s.pumpKeys(gctx, in.Keyboard().Events()) })
	}
	if s.mon != nil {
		g.Go(func() error { return s.mon.Run(gctx) })
	}
	return g.Wait()
}

func newSystem(h hal.HAL, cfg config.Config, log zerolog.Logger) (*system, error) {
	s := &system{h: h, log: log}

	kcfg := cfg.KernelConfig(log)
	kcfg.OnFault = s.onFault
	s.k = kernel.New(kcfg)

	var tap io.Writer
	if cfg.Boot.Monitor {
		if d := h.Display(); d != nil && d.Framebuffer() != nil {
			s.mon = monitor.New(s.k, d.Framebuffer(), monitor.Config{Logger: log})
			tap = s.mon.Tap()
		}
	}

	var port io.ReadWriter
	if sp := h.Serial(); sp != nil {
		port = sp
	}
	s.console = serial.New(s.k, serial.Config{Port: port, Tap: tap, Logger: log})

	path := cfg.Boot.Console
	if path == "" {
		path = "/dev/console"
	}
	if err := s.k.RegisterDevice(path, s.console); err != nil {
		s.k.Close()
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	if err := startDemos(s.k, path, cfg.Boot.Demos); err != nil {
		s.k.Close()
		return nil, err
	}
	return s, nil
}

func (s *system) onFault(info kernel.PanicInfo) {
	if s.mon != nil {
		s.mon.Halt()
	}
	showPanic(s.h, info)
}

// pumpTicks turns the HAL tick stream into kernel ticks, catching up on any
// the stream dropped.
func pumpTicks(ctx context.Context, k *kernel.Kernel, ticks <-chan uint64) error {
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq, ok := <-ticks:
			if !ok {
				return nil
			}
			for ; last < seq; last++ {
				k.Tick()
			}
		}
	}
}

func (s *system) pumpKeys(ctx context.Context, events <-chan hal.KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if b := keyBytes(ev); len(b) > 0 {
				if err := s.console.Feed(ctx, b); err != nil {
					return err
				}
			}
		}
	}
}

// keyBytes encodes a key press the way a VT100 terminal sends it.
func keyBytes(ev hal.KeyEvent) []byte {
	if !ev.Press {
		return nil
	}
	if ev.Rune != 0 {
		return utf8.AppendRune(nil, ev.Rune)
	}
	switch ev.Code {
	case hal.KeyEnter:
		return []byte{'\n'}
	case hal.KeyBackspace:
		return []byte{0x7F}
	case hal.KeyTab:
		return []byte{'\t'}
	case hal.KeyEscape:
		return []byte{0x1B}
	case hal.KeyUp:
		return []byte("\x1b[A")
	case hal.KeyDown:
		return []byte("\x1b[B")
	case hal.KeyRight:
		return []byte("\x1b[C")
	case hal.KeyLeft:
		return []byte("\x1b[D")
	case hal.KeyHome:
		return []byte("\x1b[H")
	case hal.KeyEnd:
		return []byte("\x1b[F")
	case hal.KeyDelete:
		return []byte("\x1b[3~")
	}
	return nil
}
