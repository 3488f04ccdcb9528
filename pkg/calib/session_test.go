package calib

import (
	"errors"
	"testing"

	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/sample"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	session *Session
	voltage *scale.Selector
	current *scale.Selector
	mem     *settings.Memory
	store   *settings.Store
}

// newFixture builds selectors whose ADC LSB is 1 mV so raw sample values read as millivolts.
func newFixture(t *testing.T, requireSettled bool) *fixture {
	t.Helper()
	cfg := config.Default()

	voltage := scale.New(scale.Voltage, sample.New(nil, sample.DefaultSize, 4.096, 12), nil, cfg.Voltage.Thresholds, 1)
	current := scale.New(scale.Current, sample.New(nil, sample.DefaultSize, 4.096, 12), nil, cfg.Current.Thresholds, cfg.SenseResistor)
	require.NoError(t, voltage.SetGains(cfg.Voltage.Gains))
	require.NoError(t, current.SetGains(cfg.Current.Gains))

	mem := settings.NewMemory()
	store := settings.NewStore(mem, settings.Default(cfg))

	return &fixture{
		session: New(voltage, current, store, requireSettled),
		voltage: voltage,
		current: current,
		mem:     mem,
		store:   store,
	}
}

func fill(sel *scale.Selector, millivolts uint16) {
	for i := 0; i < sel.Sampler().Size(); i++ {
		sel.Sampler().Add(millivolts)
	}
}

func TestIdleOperationsFail(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.session.Scale()
	assert.ErrorIs(t, err, ErrNotCalibrating)
	assert.ErrorIs(t, err, ErrWrongState)

	assert.ErrorIs(t, f.session.SetScale(1), ErrWrongState)

	_, err = f.session.Record(1)
	assert.ErrorIs(t, err, ErrWrongState)

	assert.ErrorIs(t, f.session.Save(), ErrWrongState)
	assert.Nil(t, f.mem.Raw())

	f.session.Cancel() // no-op
	_, ok := f.session.Active()
	assert.False(t, ok)
}

func TestStart_AlreadyActive(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.session.Start(scale.Voltage))
	assert.True(t, f.voltage.Held())

	err := f.session.Start(scale.Current)
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.False(t, f.current.Held(), "current channel untouched")

	ch, ok := f.session.Active()
	assert.True(t, ok)
	assert.Equal(t, scale.Voltage, ch)

	assert.ErrorIs(t, f.session.Start(scale.Voltage), ErrAlreadyActive)
}

func TestSetScale(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Current))

	require.NoError(t, f.session.SetScale(2))
	s, err := f.session.Scale()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), s)
	assert.Equal(t, uint8(2), f.current.Scale())
	assert.Equal(t, uint8(0), f.voltage.Scale())

	for _, bad := range []int{-1, 4, 100} {
		fill(f.current, 100)
		err := f.session.SetScale(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, uint8(2), f.current.Scale())
		assert.Equal(t, sample.DefaultSize, f.current.Sampler().Filled())
	}
}

func TestRecord_BelowBand(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	fill(f.voltage, 2000)

	before := f.voltage.Gains()
	_, err := f.session.Record(5.0) // scale 0 band is [6, 14]
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, before, f.voltage.Gains())
}

func TestRecord_InvalidReference(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	require.NoError(t, f.session.SetScale(3)) // [0, 1.3]
	fill(f.voltage, 1000)

	for _, v := range []float32{0, -1, scale.Overload} {
		_, err := f.session.Record(v)
		assert.ErrorIs(t, err, ErrInvalidArgument, "reference %v", v)
	}
}

func TestRecord_VoltageGain(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	require.NoError(t, f.session.SetScale(1)) // [2.8, 6.5]
	fill(f.voltage, 2250)                      // 2.25 V at the ADC pin

	gain, err := f.session.Record(5.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, gain, 1e-5)
	assert.InDelta(t, 0.45, f.voltage.Gains()[1], 1e-5)

	// Not persisted until Save.
	assert.Nil(t, f.mem.Raw())
}

func TestRecord_CurrentGainUsesSenseResistor(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Current))
	fill(f.current, 2000) // 2 V at the ADC pin on scale 0

	// 2 V / 0.8 A / 0.5 Ohm
	gain, err := f.session.Record(0.8)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, gain, 1e-5)
}

func TestRecord_RequireSettled(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	f.voltage.Sampler().Add(2000)

	_, err := f.session.Record(8)
	assert.ErrorIs(t, err, ErrNotSettled)
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestRecord_PartialBufferAllowed(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.session.Start(scale.Voltage))

	_, err := f.session.Record(8)
	assert.ErrorIs(t, err, ErrNotSettled, "empty buffer")

	f.voltage.Sampler().Add(2000)
	gain, err := f.session.Record(8)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, gain, 1e-5)
}

func TestRecord_NoSignal(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	fill(f.voltage, 0)

	_, err := f.session.Record(8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSave_Persists(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Voltage))
	require.NoError(t, f.session.SetScale(1))
	fill(f.voltage, 2250)
	_, err := f.session.Record(5.0)
	require.NoError(t, err)

	require.NoError(t, f.session.Save())
	_, ok := f.session.Active()
	assert.False(t, ok)
	assert.False(t, f.voltage.Held())

	loaded, err := settings.Decode(f.mem.Raw())
	require.NoError(t, err)
	assert.InDelta(t, 0.45, loaded.Gains[scale.Voltage][1], 1e-5)
	assert.Equal(t, f.current.Gains(), loaded.Gains[scale.Current])
}

func TestSave_FailureKeepsSession(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.session.Start(scale.Current))
	fill(f.current, 2000)
	_, err := f.session.Record(0.8)
	require.NoError(t, err)

	f.mem.CommitErr = errors.New("flash write failed")
	assert.Error(t, f.session.Save())

	ch, ok := f.session.Active()
	assert.True(t, ok)
	assert.Equal(t, scale.Current, ch)

	require.NoError(t, f.session.Save())
	assert.NotNil(t, f.mem.Raw())
}

func TestCancel_RestoresGains(t *testing.T) {
	f := newFixture(t, true)
	before := f.voltage.Gains()

	require.NoError(t, f.session.Start(scale.Voltage))
	fill(f.voltage, 2000)
	_, err := f.session.Record(8)
	require.NoError(t, err)
	assert.NotEqual(t, before, f.voltage.Gains())

	f.session.Cancel()
	assert.Equal(t, before, f.voltage.Gains())
	assert.False(t, f.voltage.Held())
	assert.Nil(t, f.mem.Raw())

	// A new session may start on the other channel.
	require.NoError(t, f.session.Start(scale.Current))
}
