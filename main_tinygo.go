//go:build tinygo

package main

import (
	"minirtos/app"
	"minirtos/hal"
)

func main() {
	app.Run(hal.New())
}
