package device

import (
	"math/rand"
	"sync"

	"github.com/itohio/gomm/pkg/config"
)

// Mock simulates the dual channel front-end for testing and development.
type Mock struct {
	Voltage *MockInput
	Current *MockInput
}

// MockInput simulates one amplifier + ADC chain. The physical input is
// multiplied by the true gain of the selected scale (and the sense resistor
// for current), noise is added, and the result is clamped to the reference
// and quantised by a converter of the configured resolution, left aligned to 16 bits.
type MockInput struct {
	mu       sync.Mutex
	vref     float32
	bits     int // Converter resolution
	gains    [config.NumScales]float32
	transfer float32 // Volts per physical unit before the amplifier
	noise    float32
	rng      *rand.Rand

	input float32
	scale uint8
	reads int
}

var _ Input = (*MockInput)(nil)

// NewMock creates a simulated front-end whose hardware gains equal the configured defaults.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	m := &Mock{
		Voltage: NewMockInput(cfg.ADC.VRef, cfg.Voltage.Gains, 1, cfg.Mock.NoiseLevel, cfg.Mock.Seed, cfg.Mock.Voltage),
		Current: NewMockInput(cfg.ADC.VRef, cfg.Current.Gains, cfg.SenseResistor, cfg.Mock.NoiseLevel, cfg.Mock.Seed+1, cfg.Mock.Current),
	}
	m.Voltage.bits = cfg.ADC.Resolution
	m.Current.bits = cfg.ADC.Resolution
	return m
}

// NewMockInput creates one simulated channel.
func NewMockInput(vref float32, gains [config.NumScales]float32, transfer, noise float32, seed int64, input float32) *MockInput {
	return &MockInput{
		vref:     vref,
		bits:     12,
		gains:    gains,
		transfer: transfer,
		noise:    noise,
		rng:      rand.New(rand.NewSource(seed)),
		input:    input,
	}
}

// SetInput sets the simulated physical input (V or A).
func (m *MockInput) SetInput(v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = v
}

// Input returns the simulated physical input.
func (m *MockInput) Input() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

// SetGain changes the true hardware gain of a scale, e.g. to simulate component tolerance.
func (m *MockInput) SetGain(scale uint8, gain float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(scale) < len(m.gains) {
		m.gains[scale] = gain
	}
}

// SetScale simulates the gain select lines.
func (m *MockInput) SetScale(scale uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scale = scale & 3
}

// Scale returns the selected scale.
func (m *MockInput) Scale() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale
}

// Reads returns the number of conversions performed.
func (m *MockInput) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Get performs one simulated conversion.
func (m *MockInput) Get() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	pin := m.input * m.transfer * m.gains[m.scale]
	if m.noise > 0 {
		pin += (m.rng.Float32()*2 - 1) * m.noise
	}

	if pin <= 0 {
		return 0
	}
	full := uint32(1) << uint(m.bits)
	code := uint32(pin / m.vref * float32(full))
	if code >= full {
		code = full - 1
	}
	return uint16(code << uint(Resolution-m.bits))
}
