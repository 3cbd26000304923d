package app

import (
	"fmt"
	"image/color"
	"strings"

	"minirtos/app/scope"
	"minirtos/hal"
	"minirtos/kernel"

	"tinygo.org/x/tinyfont"
)

const (
	faultLineHeight = 6
	faultLineOffset = 5
)

func (a *App) framebuffer() hal.Framebuffer {
	disp := a.h.Display()
	if disp == nil {
		return nil
	}
	fb := disp.Framebuffer()
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	return fb
}

// onFault records the first kernel fault, logs it with its stack, and
// replaces the scope with a fault screen.
func (a *App) onFault(f kernel.Fault) {
	a.mu.Lock()
	a.fault = &f
	a.mu.Unlock()

	lines := faultLines(f, a.sys.Name(f.Task))
	for _, line := range lines {
		a.logf("%s", line)
	}

	fb := a.framebuffer()
	if fb == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)

	d := scope.NewDisplay(fb)
	font := &tinyfont.TomThumb
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	cols := 1
	if outboxWidth > 0 {
		cols = fb.Width() / int(outboxWidth)
	}

	fg := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y)+faultLineHeight > fb.Height() {
				_ = d.Display()
				return
			}
			chunk, rest := splitAt(line, cols)
			tinyfont.WriteLine(d, font, 0, y+faultLineOffset, chunk, fg)
			y += faultLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = d.Display()
}

func faultLines(f kernel.Fault, name string) []string {
	lines := []string{
		"kernel fault:",
		fmt.Sprintf("task: %d %s", f.Task, name),
		"reason: " + f.Reason,
	}
	if len(f.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(f.Stack), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func splitAt(s string, n int) (prefix, rest string) {
	if n <= 0 || len(s) <= n {
		return s, ""
	}
	return s[:n], s[n:]
}
