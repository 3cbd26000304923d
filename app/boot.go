package app

import (
	"fmt"
	"image/color"

	"minirtos/app/scope"
	"minirtos/internal/buildinfo"

	"tinygo.org/x/tinyfont"
)

// bootScreen shows the build and task set until the monitor first redraws.
func (a *App) bootScreen() {
	fb := a.framebuffer()
	if fb == nil {
		return
	}
	fb.ClearRGB(0, 0, 0)

	d := scope.NewDisplay(fb)
	font := &tinyfont.TomThumb
	fg := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	tinyfont.WriteLine(d, font, 2, 8, "minirtos "+buildinfo.Short(), fg)
	tinyfont.WriteLine(d, font, 2, 16, fmt.Sprintf("%s policy, %d tasks", a.cfg.Policy, len(a.cfg.Tasks)), fg)
	_ = d.Display()
}
