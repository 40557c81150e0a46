// Package hal is the boundary between the kernel and the machine it runs
// on: the tick source, the serial line, the display and the keyboard.
package hal

import (
	"context"
	"errors"
	"io"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	// Update runs fn with exclusive access to the pixel bytes.
	Update(fn func(buf []byte))
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
	KeyF1
	KeyF2
	KeyF3
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
}

// Time provides the tick stream that drives the scheduler. Each value is
// the running tick count.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is the console line.
type Serial interface {
	io.Reader
	io.Writer
}

// HAL provides the only contact point between the OS and the outside world.
// Display and Input return nil when the platform has none.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Time() Time
	Serial() Serial
}

// App is the OS entry point a runner drives. It returns when ctx is done or
// the system stops.
type App func(ctx context.Context, h HAL) error
