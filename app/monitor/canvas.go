package monitor

import (
	"image/color"

	"tinygo.org/x/drivers"

	"ember/hal"
)

// Canvas is an RGB565 back buffer the size of a framebuffer. Drawing goes
// to the back buffer; Display copies it out and presents it.
type Canvas struct {
	fb     hal.Framebuffer
	width  int16
	height int16
	pix    []uint16
	views  []*View
}

// NewCanvas returns a canvas for fb.
func NewCanvas(fb hal.Framebuffer) *Canvas {
	w, h := fb.Width(), fb.Height()
	return &Canvas{fb: fb, width: int16(w), height: int16(h), pix: make([]uint16, w*h)}
}

func (c *Canvas) Size() (x, y int16) { return c.width, c.height }

func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.pix[int(y)*int(c.width)+int(x)] = hal.RGB565(col.R, col.G, col.B)
}

func (c *Canvas) FillRectangle(x, y, width, height int16, col color.RGBA) error {
	p := hal.RGB565(col.R, col.G, col.B)
	for yy := max(y, 0); yy < min(y+height, c.height); yy++ {
		row := int(yy) * int(c.width)
		for xx := max(x, 0); xx < min(x+width, c.width); xx++ {
			c.pix[row+int(xx)] = p
		}
	}
	return nil
}

func (c *Canvas) Display() error {
	if c.fb.Format() != hal.PixelFormatRGB565 {
		return hal.ErrNotImplemented
	}
	for _, v := range c.views {
		v.compose()
	}
	stride := c.fb.StrideBytes()
	c.fb.Update(func(buf []byte) {
		for y := 0; y < int(c.height); y++ {
			row := c.pix[y*int(c.width) : (y+1)*int(c.width)]
			off := y * stride
			for x, p := range row {
				if off+2*x+1 >= len(buf) {
					break
				}
				buf[off+2*x] = byte(p)
				buf[off+2*x+1] = byte(p >> 8)
			}
		}
	})
	return c.fb.Present()
}

// View is a rectangular window onto a canvas with its own pixel memory.
// It scrolls the way display controllers do: SetScroll picks the memory
// line shown at the top and lines wrap around. The canvas composes its
// views on Display.
type View struct {
	c      *Canvas
	x0, y0 int16
	w, h   int16
	scroll int16
	pix    []uint16
}

var _ drivers.Displayer = (*View)(nil)

// View returns the w×h region of c at x, y.
func (c *Canvas) View(x, y, w, h int16) *View {
	v := &View{c: c, x0: x, y0: y, w: w, h: h, pix: make([]uint16, int(w)*int(h))}
	c.views = append(c.views, v)
	return v
}

func (v *View) Size() (x, y int16) { return v.w, v.h }

func (v *View) SetPixel(x, y int16, col color.RGBA) {
	if x < 0 || y < 0 || x >= v.w || y >= v.h {
		return
	}
	v.pix[int(y)*int(v.w)+int(x)] = hal.RGB565(col.R, col.G, col.B)
}

func (v *View) FillRectangle(x, y, width, height int16, col color.RGBA) error {
	p := hal.RGB565(col.R, col.G, col.B)
	for yy := max(y, 0); yy < min(y+height, v.h); yy++ {
		row := int(yy) * int(v.w)
		for xx := max(x, 0); xx < min(x+width, v.w); xx++ {
			v.pix[row+int(xx)] = p
		}
	}
	return nil
}

func (v *View) SetScroll(line int16) {
	if v.h > 0 {
		v.scroll = ((line % v.h) + v.h) % v.h
	}
}

// SetRotation accepts only the native orientation.
func (v *View) SetRotation(r drivers.Rotation) error {
	if r != drivers.Rotation0 {
		return hal.ErrNotImplemented
	}
	return nil
}

func (v *View) Display() error { return v.c.Display() }

// compose copies the view into the canvas, screen row 0 showing memory
// line scroll.
func (v *View) compose() {
	for row := int16(0); row < v.h; row++ {
		y := v.y0 + row
		if y < 0 || y >= v.c.height {
			continue
		}
		mem := (row + v.scroll) % v.h
		src := v.pix[int(mem)*int(v.w) : int(mem+1)*int(v.w)]
		for x, p := range src {
			cx := int(v.x0) + x
			if cx < 0 || cx >= int(v.c.width) {
				continue
			}
			v.c.pix[int(y)*int(v.c.width)+cx] = p
		}
	}
}
