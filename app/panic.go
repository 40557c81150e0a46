package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"ember/app/monitor"
	"ember/hal"
	"ember/kernel"
)

const (
	panicFontHeight = int16(10)
	panicFontOffset = int16(7)
)

// showPanic reports a thread fault on the HAL logger and, when there is a
// display, paints the fault screen over whatever was shown.
func showPanic(h hal.HAL, info kernel.PanicInfo) {
	lines := panicLines(info)
	if l := h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	disp := h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}

	c := monitor.NewCanvas(fb)
	w, hgt := c.Size()
	_ = c.FillRectangle(0, 0, w, hgt, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})

	font := &proggy.TinySZ8pt7b
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		_ = c.Display()
		return
	}
	cols := w / fontWidth
	if cols <= 0 {
		cols = 1
	}

	fg := color.RGBA{A: 0xFF}
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 && y+panicFontHeight <= hgt {
			chunk, rest := takeRunes(line, cols)
			drawTextLine(c, font, fontWidth, panicFontOffset, 0, y, chunk, fg)
			y += panicFontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = c.Display()
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"Ember Panic:",
		fmt.Sprintf("thread: %d (%s) task: %d", info.Thread, info.Name, info.Task),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func drawTextLine(
	d drivers.Displayer,
	font tinyfont.Fonter,
	fontWidth, fontOffset int16,
	x0, y0 int16,
	s string,
	fg color.RGBA,
) {
	x := x0
	for _, r := range s {
		tinyfont.DrawChar(d, font, x, y0+fontOffset, r, fg)
		x += fontWidth
	}
}

// takeRunes splits s after n runes.
func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	var i int
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
