// Package calib implements the calibration session: deriving a scale gain
// from a reference value supplied by the operator.
package calib

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
)

// Session is the calibration state machine. At most one channel is calibrated
// at a time. Like the selectors it drives, it is owned by the control loop.
type Session struct {
	selectors      [scale.NumChannels]*scale.Selector
	store          *settings.Store
	requireSettled bool

	active  bool
	channel scale.Channel
	backup  [scale.NumScales]float32 // Gains of the channel when the session started
}

// New creates an idle session over the voltage and current selectors.
// With requireSettled the reference capture waits for a full sample buffer,
// otherwise the mean of whatever has been sampled since the last scale change is used.
func New(voltage, current *scale.Selector, store *settings.Store, requireSettled bool) *Session {
	return &Session{
		selectors:      [scale.NumChannels]*scale.Selector{voltage, current},
		store:          store,
		requireSettled: requireSettled,
	}
}

// Active returns the channel being calibrated, ok is false when idle.
func (s *Session) Active() (ch scale.Channel, ok bool) {
	return s.channel, s.active
}

// Start begins calibrating ch and holds its auto-ranging.
func (s *Session) Start(ch scale.Channel) error {
	if s.active {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, s.channel)
	}
	if int(ch) >= scale.NumChannels {
		return fmt.Errorf("%w: channel %d", ErrInvalidArgument, ch)
	}

	sel := s.selectors[ch]
	s.active = true
	s.channel = ch
	s.backup = sel.Gains()
	sel.Hold(true)
	return nil
}

// Scale returns the scale of the channel being calibrated.
func (s *Session) Scale() (uint8, error) {
	if !s.active {
		return 0, ErrNotCalibrating
	}
	return s.selectors[s.channel].Scale(), nil
}

// SetScale selects the scale to calibrate.
func (s *Session) SetScale(n int) error {
	if !s.active {
		return ErrNotCalibrating
	}
	if n < 0 || n >= scale.NumScales {
		return fmt.Errorf("%w: scale %d, want 0-%d", ErrInvalidArgument, n, scale.NumScales-1)
	}

	s.selectors[s.channel].SelectScale(uint8(n))
	return nil
}

// Record derives the gain of the active scale from measured, the true value in
// volts or amperes applied to the input. The gain is kept in memory until Save.
func (s *Session) Record(measured float32) (float32, error) {
	if !s.active {
		return 0, ErrNotCalibrating
	}
	if math32.IsNaN(measured) || math32.IsInf(measured, 0) || measured <= 0 {
		return 0, fmt.Errorf("%w: reference %v", ErrInvalidArgument, measured)
	}

	sel := s.selectors[s.channel]
	active := sel.Scale()
	band := sel.Threshold(active)
	if measured < band.Min || measured > band.Max {
		return 0, fmt.Errorf("%w: %v%s not in [%v, %v] of scale %d", ErrOutOfRange, measured, sel.Channel().Unit(), band.Min, band.Max, active)
	}

	raw, ok := s.rawMean(sel)
	if !ok {
		return 0, ErrNotSettled
	}

	gain := raw / measured / sel.Divisor()
	if err := sel.SetGain(active, gain); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return gain, nil
}

// Gains returns the in-memory gains of both channels, saved or not.
func (s *Session) Gains() settings.Settings {
	var out settings.Settings
	for ch, sel := range s.selectors {
		out.Gains[ch] = sel.Gains()
	}
	return out
}

// Save persists the in-memory gains and ends the session. It blocks until the
// storage commit completes. On failure the session stays active so the
// operator can retry or exit.
func (s *Session) Save() error {
	if !s.active {
		return ErrNotCalibrating
	}

	if err := s.store.Save(s.Gains()); err != nil {
		return err
	}

	s.end()
	return nil
}

// Cancel ends the session and restores the gains the channel had when it started.
// Calling it while idle does nothing.
func (s *Session) Cancel() {
	if !s.active {
		return
	}

	// The backup came from the selector, which only ever holds validated gains.
	_ = s.selectors[s.channel].SetGains(s.backup)
	s.end()
}

func (s *Session) end() {
	s.selectors[s.channel].Hold(false)
	s.active = false
}

func (s *Session) rawMean(sel *scale.Selector) (float32, bool) {
	if s.requireSettled && !sel.Sampler().Settled() {
		return 0, false
	}
	return sel.Sampler().RawMean()
}
