package scope

import (
	"fmt"
	"image/color"

	"minirtos/hal"
	"minirtos/kernel"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

var (
	colorBG       = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorFG       = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	colorHeaderBG = color.RGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff}

	colorRunning = color.RGBA{R: 0x4a, G: 0xdf, B: 0x6a, A: 0xff}
	colorReady   = color.RGBA{R: 0xff, G: 0xdd, B: 0x66, A: 0xff}
	colorBlocked = color.RGBA{R: 0x24, G: 0x24, B: 0x24, A: 0xff}
)

const (
	fontHeight = 6
	fontOffset = 5
	rowGap     = 2
	labelChars = 8
)

func levelColor(l Level) (color.RGBA, bool) {
	switch l {
	case LevelRunning:
		return colorRunning, true
	case LevelReady:
		return colorReady, true
	case LevelBlocked:
		return colorBlocked, true
	default:
		return colorBG, false
	}
}

// Render draws the timeline into fb and presents it. The newest column is at
// the right edge.
func (s *Scope) Render(fb hal.Framebuffer) error {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return hal.ErrNotImplemented
	}
	d := NewDisplay(fb)
	w, h := d.Size()
	font := &tinyfont.TomThumb

	_ = d.FillRectangle(0, 0, w, h, colorBG)
	_ = d.FillRectangle(0, 0, w, fontHeight+rowGap*2, colorHeaderBG)
	tinyfont.WriteLine(d, font, 1, rowGap+fontOffset, fmt.Sprintf("t=%d sw=%d", s.tick, s.switches), colorFG)

	_, charW := tinyfont.LineWidth(font, "0")
	labelW := int16(charW)*labelChars + rowGap
	cols := s.Columns()
	if cols == 0 || w <= labelW {
		return d.Display()
	}
	cellW := (w - labelW) / int16(cols)
	if cellW <= 0 {
		cellW = 1
	}
	rowH := int16(fontHeight + rowGap*2)

	y := rowH + rowGap
	for id := range s.names {
		if y+rowH > h {
			break
		}
		tinyfont.WriteLine(d, font, 1, y+rowGap+fontOffset, fitText(s.names[id], labelChars), colorFG)
		for age := 0; age < cols; age++ {
			x := w - int16(age+1)*cellW
			if x < labelW {
				break
			}
			c, ok := levelColor(s.Cell(kernel.TaskID(id), age))
			if !ok {
				continue
			}
			_ = d.FillRectangle(x, y+1, cellW, rowH-2, c)
		}
		y += rowH
	}
	return d.Display()
}

// Display adapts an RGB565 framebuffer to drivers.Displayer so tinyfont can
// draw into it. Display() presents the frame.
type Display struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*Display)(nil)

// NewDisplay returns a Display over fb.
func NewDisplay(fb hal.Framebuffer) *Display {
	return &Display{fb: fb}
}

func (d *Display) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *Display) SetPixel(x, y int16, c color.RGBA) {
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	pixel := rgb565From888(c.R, c.G, c.B)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *Display) Display() error {
	return d.fb.Present()
}

func (d *Display) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	buf := d.fb.Buffer()
	w, h := d.fb.Width(), d.fb.Height()

	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

func (d *Display) SetRotation(rotation drivers.Rotation) error {
	_ = rotation
	return nil
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func fitText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
