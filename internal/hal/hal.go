// Package hal is a small hardware abstraction layer for the button inputs.
// On Linux it drives the Raspberry Pi GPIO through periph.io (hal_periph.go);
// elsewhere, or when built with the "disablegpio" tag, a stub is used so the
// daemon can run on a desktop machine without Pi hardware (hal_stub.go).
//
// Pins are addressed by their BCM numbers.
package hal

import (
	"periph.io/x/conn/v3/gpio"
)

// Inputs is the set of GPIO operations the button dispatcher needs.
type Inputs interface {
	// ConfigurePullUp configures pin as a digital input with the internal
	// pull-up enabled, so an open button reads High and a pressed one Low.
	ConfigurePullUp(pin int) error
	// Read returns the current level of a configured pin.
	Read(pin int) (gpio.Level, error)
	// ReleaseAll returns every configured pin to its idle state.  It is
	// safe to call when nothing was configured.
	ReleaseAll() error
}

// Pressed interprets a level read from a pulled-up input: the button shorts
// the pin to ground, so Low means pressed.
func Pressed(l gpio.Level) bool {
	return l == gpio.Low
}
