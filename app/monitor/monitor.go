// Package monitor draws a live view of the kernel on a framebuffer: a
// thread table on top and a terminal pane mirroring console output below.
package monitor

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"

	"ember/hal"
	"ember/kernel"
)

const (
	lineHeight = 10
	fontOffset = 7
	maxRows    = 12
)

var (
	font = &proggy.TinySZ8pt7b

	colorBG      = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xFF}
	colorHeader  = color.RGBA{R: 0x60, G: 0xD0, B: 0x60, A: 0xFF}
	colorText    = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	colorRunning = color.RGBA{R: 0xFF, G: 0xC0, B: 0x40, A: 0xFF}
	colorBlocked = color.RGBA{R: 0x80, G: 0x80, B: 0x90, A: 0xFF}
	colorRule    = color.RGBA{R: 0x40, G: 0x40, B: 0x50, A: 0xFF}
)

type Config struct {
	// Interval is the frame period. Zero means 100ms.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Monitor renders frames from its own goroutine via Run.
type Monitor struct {
	k        *kernel.Kernel
	canvas   *Canvas
	table    *View
	pane     *View
	term     *tinyterm.Terminal
	rows     int
	interval time.Duration
	log      zerolog.Logger

	in      chan []byte
	dropped atomic.Int64

	mu     sync.Mutex
	halted bool
}

// New returns a monitor drawing k onto fb.
func New(k *kernel.Kernel, fb hal.Framebuffer, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	c := NewCanvas(fb)
	w, h := c.Size()
	// The table takes at most half the screen.
	tableH := min(int16(lineHeight*(maxRows+1)), h/2)
	m := &Monitor{
		k:        k,
		canvas:   c,
		table:    c.View(0, 0, w, tableH),
		pane:     c.View(0, tableH+2, w, h-tableH-2),
		rows:     int(tableH/lineHeight) - 1,
		interval: cfg.Interval,
		log:      cfg.Logger.With().Str("component", "monitor").Logger(),
		in:       make(chan []byte, 64),
	}
	_ = c.FillRectangle(0, 0, w, h, colorBG)
	_ = c.FillRectangle(0, tableH, w, 2, colorRule)
	m.term = tinyterm.NewTerminal(m.pane)
	m.term.Configure(&tinyterm.Config{
		Font:       font,
		FontHeight: lineHeight,
		FontOffset: fontOffset,
	})
	pw, ph := m.pane.Size()
	_ = m.pane.FillRectangle(0, 0, pw, ph, colorBG)
	return m
}

// Tap returns a writer whose bytes show up in the terminal pane. Writes
// never block; output is dropped while the pane is behind.
func (m *Monitor) Tap() *Tap { return &Tap{m: m} }

type Tap struct {
	m *Monitor
}

func (t *Tap) Write(p []byte) (int, error) {
	b := bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\r', '\n'})
	select {
	case t.m.in <- b:
	default:
		t.m.dropped.Add(int64(len(p)))
	}
	return len(p), nil
}

// Dropped returns the number of tapped bytes the pane never showed.
func (m *Monitor) Dropped() int64 { return m.dropped.Load() }

// Halt stops drawing. It waits for a frame in progress, after which the
// framebuffer belongs to the caller.
func (m *Monitor) Halt() {
	m.mu.Lock()
	m.halted = true
	m.mu.Unlock()
}

// Run draws a frame every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := m.Frame(); err != nil {
				return err
			}
		}
	}
}

// Frame draws one frame.
func (m *Monitor) Frame() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halted || m.k.InPanicMode() {
		return nil
	}
	for drained := false; !drained; {
		select {
		case b := <-m.in:
			_, _ = m.term.Write(b)
		default:
			drained = true
		}
	}
	m.drawTable(m.k.Threads())
	return m.canvas.Display()
}

func (m *Monitor) drawTable(threads []kernel.ThreadInfo) {
	w, h := m.table.Size()
	_ = m.table.FillRectangle(0, 0, w, h, colorBG)

	header := fmt.Sprintf("tick %-8d  TID  PID PRI STATE     NAME", m.k.Ticks())
	tinyfont.WriteLine(m.table, font, 2, fontOffset, header, colorHeader)

	for i, ti := range threads {
		if i == m.rows-1 && len(threads) > m.rows {
			line := fmt.Sprintf("... %d more", len(threads)-i)
			tinyfont.WriteLine(m.table, font, 2, int16(lineHeight*(i+1)+fontOffset), line, colorText)
			break
		}
		tinyfont.WriteLine(m.table, font, 2, int16(lineHeight*(i+1)+fontOffset), formatThread(ti), statusColor(ti))
	}
}

func formatThread(ti kernel.ThreadInfo) string {
	state := ti.Status.String()
	if ti.Pending {
		state += "*"
	}
	name := ti.Name
	if ti.Kernel {
		name = "[" + name + "]"
	}
	return fmt.Sprintf("%14s %4d %4d %3d %-9s %s", "", uint16(ti.ID), uint16(ti.Task), ti.Priority, state, name)
}

func statusColor(ti kernel.ThreadInfo) color.RGBA {
	switch ti.Status {
	case kernel.Running:
		return colorRunning
	case kernel.Wait, kernel.Suspended:
		return colorBlocked
	default:
		return colorText
	}
}
