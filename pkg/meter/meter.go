package meter

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/itohio/gomm/pkg/calib"
	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/device"
	"github.com/itohio/gomm/pkg/sample"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
)

// Display receives the readings once per evaluate period. An invalid reading
// renders as a placeholder, scale.Overload as an overload indicator.
type Display interface {
	UpdateVoltage(valid bool, value float32)
	UpdateCurrent(valid bool, value float32)
}

// Uplink forwards the readings to a host.
type Uplink interface {
	Send(voltage, current scale.Reading) error
}

// Clock is a monotonic millisecond counter. It may wrap around.
type Clock interface {
	Millis() uint32
}

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis returns the milliseconds elapsed since creation.
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

type request struct {
	fn   func(*calib.Session) error
	done chan error
}

// Meter is the control loop. It owns the samplers, selectors and calibration
// session of both channels; none of them may be touched from another goroutine
// except through Exec.
type Meter struct {
	voltage *scale.Selector
	current *scale.Selector
	session *calib.Session
	store   *settings.Store

	samplePeriod   uint32 // ms
	evaluatePeriod uint32 // ms
	lastSample     uint32
	lastEvaluate   uint32
	started        bool

	readings [scale.NumChannels]scale.Reading
	requests chan request

	// Update callbacks
	callbacks []func(voltage, current scale.Reading)
	cbMu      sync.RWMutex
}

// New creates the control loop over the two front-end inputs and loads the
// calibration gains from store.
func New(cfg *config.Config, voltage, current device.Input, store *settings.Store) *Meter {
	newSampler := func(in device.Input) *sample.Sampler {
		return sample.New(in, cfg.ADC.Samples, cfg.ADC.VRef, device.Resolution)
	}

	m := &Meter{
		voltage:        scale.New(scale.Voltage, newSampler(voltage), voltage, cfg.Voltage.Thresholds, 1),
		current:        scale.New(scale.Current, newSampler(current), current, cfg.Current.Thresholds, cfg.SenseResistor),
		store:          store,
		samplePeriod:   uint32(cfg.Loop.SamplePeriod.Milliseconds()),
		evaluatePeriod: uint32(cfg.Loop.EvaluatePeriod.Milliseconds()),
		requests:       make(chan request),
	}
	m.session = calib.New(m.voltage, m.current, store, cfg.Calibration.RequireSettled)
	m.applySettings(store.Load())

	return m
}

// applySettings installs gains scale by scale, falling back to the store
// defaults. A scale left without a usable gain reports invalid readings.
func (m *Meter) applySettings(s settings.Settings) {
	defaults := m.store.Defaults()
	for _, sel := range []*scale.Selector{m.voltage, m.current} {
		ch := sel.Channel()
		for i := uint8(0); i < scale.NumScales; i++ {
			if err := sel.SetGain(i, s.Gains[ch][i]); err == nil {
				continue
			}
			if err := sel.SetGain(i, defaults.Gains[ch][i]); err != nil {
				log.Printf("meter: %s scale %d has no usable gain: %v", ch, i, err)
			}
		}
	}
}

// Selector returns the selector of a channel.
func (m *Meter) Selector(ch scale.Channel) *scale.Selector {
	if ch == scale.Current {
		return m.current
	}
	return m.voltage
}

// Session returns the calibration session. Only safe to use from the loop's goroutine.
func (m *Meter) Session() *calib.Session {
	return m.session
}

// Readings returns the results of the last evaluation.
func (m *Meter) Readings() (voltage, current scale.Reading) {
	return m.readings[scale.Voltage], m.readings[scale.Current]
}

// OnUpdate registers a callback invoked after every evaluation.
// The callback should return as fast as possible.
func (m *Meter) OnUpdate(callback func(voltage, current scale.Reading)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// AttachDisplay forwards every evaluation to d.
func (m *Meter) AttachDisplay(d Display) {
	m.OnUpdate(func(voltage, current scale.Reading) {
		d.UpdateVoltage(voltage.Valid, voltage.Value)
		d.UpdateCurrent(current.Valid, current.Value)
	})
}

// AttachUplink forwards every evaluation to u. Send errors are passed to onError if set.
func (m *Meter) AttachUplink(u Uplink, onError func(error)) {
	m.OnUpdate(func(voltage, current scale.Reading) {
		if err := u.Send(voltage, current); err != nil && onError != nil {
			onError(err)
		}
	})
}

// Tick runs whatever is due at time now (ms): queued requests, a sample of
// both channels every sample period, an evaluation every evaluate period.
// It never blocks.
func (m *Meter) Tick(now uint32) {
	m.serveRequests()

	if !m.started {
		m.started = true
		m.lastSample = now
		m.lastEvaluate = now
		m.sample()
		return
	}

	if now-m.lastSample >= m.samplePeriod {
		m.lastSample = now
		m.sample()
	}

	if now-m.lastEvaluate >= m.evaluatePeriod {
		m.lastEvaluate = now
		m.evaluate()
	}
}

// Run drives Tick from clock once per millisecond and serves Exec requests
// until ctx is done.
func (m *Meter) Run(ctx context.Context, clock Clock) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.requests:
			req.done <- req.fn(m.session)
		case <-ticker.C:
			m.Tick(clock.Millis())
		}
	}
}

// Exec runs fn on the loop's goroutine, between two ticks, and returns its result.
// Use it to reach the session while Run is active elsewhere.
func (m *Meter) Exec(ctx context.Context, fn func(*calib.Session) error) error {
	req := request{fn: fn, done: make(chan error, 1)}

	select {
	case m.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Meter) serveRequests() {
	for {
		select {
		case req := <-m.requests:
			req.done <- req.fn(m.session)
		default:
			return
		}
	}
}

func (m *Meter) sample() {
	m.voltage.Sampler().Sample()
	m.current.Sampler().Sample()
}

func (m *Meter) evaluate() {
	m.readings[scale.Voltage] = m.voltage.Evaluate()
	m.readings[scale.Current] = m.current.Evaluate()
	m.notifyCallbacks()
}

// notifyCallbacks invokes all registered callbacks with the current readings.
func (m *Meter) notifyCallbacks() {
	m.cbMu.RLock()
	callbacks := make([]func(voltage, current scale.Reading), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	voltage, current := m.Readings()
	for _, cb := range callbacks {
		if cb != nil {
			cb(voltage, current)
		}
	}
}
