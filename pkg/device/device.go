// Package device abstracts the analog front-end of the meter: one ADC input
// and a two-line amplifier gain select per channel.
package device

// Input is one analog channel of the front-end.
type Input interface {
	Get() uint16          // One conversion, left aligned to 16 bits as TinyGo's machine.ADC does
	SetScale(scale uint8) // Drives the gain select lines
}

// Resolution of the values returned by Input.Get.
const Resolution = 16

// Pin is a digital output line.
type Pin interface {
	Set(high bool)
}

// ScaleSelect drives the two gain select lines of an amplifier.
type ScaleSelect struct {
	Bit0 Pin // Lower bit
	Bit1 Pin // Higher bit
}

// SetScale writes scale onto the select lines. Only the two low bits are used.
func (s ScaleSelect) SetScale(scale uint8) {
	s.Bit0.Set(scale&1 != 0)
	s.Bit1.Set(scale&2 != 0)
}
