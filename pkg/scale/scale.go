// Package scale selects and applies the gain scale of a measurement channel.
//
// Scale 0 is the widest range and scale NumScales-1 the most sensitive one;
// the threshold table is ordered accordingly (min and max non-increasing with
// the index). A reading above the band moves one step toward Widest, a reading
// below it one step toward Narrowest.
package scale

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/itohio/gomm/pkg/sample"
)

const (
	// NumScales is the number of gain scales per channel.
	NumScales = 4
	// Widest is the least sensitive scale.
	Widest uint8 = 0
	// Narrowest is the most sensitive scale.
	Narrowest uint8 = NumScales - 1
)

// Overload is reported as the value of a valid reading that exceeds the widest scale.
var Overload = math32.Inf(1)

// Threshold is the valid band of one scale in physical units.
type Threshold struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// Reading is the result of one evaluation.
type Reading struct {
	Valid bool
	Value float32
}

// Overloaded reports whether the reading is the overload sentinel.
func (r Reading) Overloaded() bool {
	return r.Valid && math32.IsInf(r.Value, 1)
}

// Switch drives the amplifier gain selection of a channel.
type Switch interface {
	SetScale(scale uint8)
}

// Selector holds the active scale and gains of one channel and runs auto-ranging.
// It is not safe for concurrent use; the control loop owns it.
type Selector struct {
	channel    Channel
	sampler    *sample.Sampler
	sw         Switch
	thresholds [NumScales]Threshold
	gains      [NumScales]float32
	divisor    float32 // Extra divisor after the gain: sense resistor for current, 1 for voltage
	active     uint8
	held       bool
}

// New creates a Selector for channel ch and selects the widest scale.
// Gains start out invalid and must be set with SetGains before readings become valid.
func New(ch Channel, sampler *sample.Sampler, sw Switch, thresholds [NumScales]Threshold, divisor float32) *Selector {
	if divisor <= 0 {
		divisor = 1
	}

	s := &Selector{
		channel:    ch,
		sampler:    sampler,
		sw:         sw,
		thresholds: thresholds,
		divisor:    divisor,
	}
	s.SelectScale(Widest)
	return s
}

// Channel returns the channel this selector serves.
func (s *Selector) Channel() Channel {
	return s.channel
}

// Sampler returns the channel's sample buffer.
func (s *Selector) Sampler() *sample.Sampler {
	return s.sampler
}

// Scale returns the active scale.
func (s *Selector) Scale() uint8 {
	return s.active
}

// Threshold returns the valid band of a scale.
func (s *Selector) Threshold(scale uint8) Threshold {
	return s.thresholds[scale]
}

// Divisor returns the divisor applied after the gain.
func (s *Selector) Divisor() float32 {
	return s.divisor
}

// SelectScale switches the amplifier to scale and clears the sample buffer,
// whose samples belong to the previous gain. Out of range values are ignored.
func (s *Selector) SelectScale(scale uint8) bool {
	if scale >= NumScales {
		return false
	}

	s.active = scale
	if s.sw != nil {
		s.sw.SetScale(scale)
	}
	s.sampler.Reset()
	return true
}

// Hold suspends auto-ranging while set. Evaluate keeps reporting readings.
func (s *Selector) Hold(hold bool) {
	s.held = hold
}

// Held reports whether auto-ranging is suspended.
func (s *Selector) Held() bool {
	return s.held
}

// Gains returns a copy of the gain table.
func (s *Selector) Gains() [NumScales]float32 {
	return s.gains
}

// SetGains replaces the whole gain table. Nothing is changed if any gain is invalid.
func (s *Selector) SetGains(gains [NumScales]float32) error {
	for i, g := range gains {
		if !ValidGain(g) {
			return fmt.Errorf("%s gain %d is invalid: %v", s.channel, i, g)
		}
	}
	s.gains = gains
	return nil
}

// SetGain replaces the gain of one scale.
func (s *Selector) SetGain(scale uint8, gain float32) error {
	if scale >= NumScales {
		return fmt.Errorf("scale out of range: %d", scale)
	}
	if !ValidGain(gain) {
		return fmt.Errorf("%s gain %d is invalid: %v", s.channel, scale, gain)
	}
	s.gains[scale] = gain
	return nil
}

// Apply converts a raw pin voltage measured on scale into physical units.
func (s *Selector) Apply(scale uint8, raw float32) float32 {
	return raw / s.gains[scale] / s.divisor
}

// Evaluate converts the smoothed sample buffer into a reading and auto-ranges.
//
// At most one scale switch happens per call. A switch clears the buffer, so the
// reading of that cycle is invalid: the old-scale value must not be reported
// under the new scale.
func (s *Selector) Evaluate() Reading {
	raw, ok := s.sampler.Smoothed()
	if !ok || !ValidGain(s.gains[s.active]) {
		return Reading{}
	}

	value := s.Apply(s.active, raw)
	band := s.thresholds[s.active]

	switch {
	case value > band.Max:
		if s.active == Widest || s.held {
			return Reading{Valid: true, Value: Overload}
		}
		s.SelectScale(s.active - 1)
		return Reading{}

	case value < band.Min:
		if s.active == Narrowest || s.held {
			return Reading{Valid: true, Value: value}
		}
		s.SelectScale(s.active + 1)
		return Reading{}
	}

	return Reading{Valid: true, Value: value}
}

// ValidGain reports whether g can be used as a divisor.
func ValidGain(g float32) bool {
	return g > 0 && !math32.IsInf(g, 0) && !math32.IsNaN(g)
}
