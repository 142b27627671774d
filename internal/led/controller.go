// Package led drives a board status LED from the relay's connection state.
package led

// Pattern is the visible state of the status LED.
type Pattern string

const (
	PatternOff   Pattern = "off"
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller abstracts a single status LED.
type Controller interface {
	Set(p Pattern) error
	// Name identifies the LED, e.g. its sysfs name.
	Name() string
}
