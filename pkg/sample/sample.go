// Package sample implements the per-channel raw ADC buffer and its moving average.
package sample

// DefaultSize is the number of raw samples averaged by a Sampler.
const DefaultSize = 10

// ADC is a source of raw conversions. machine.ADC satisfies it on TinyGo targets.
type ADC interface {
	Get() uint16
}

// Sampler keeps the last N raw ADC readings of one channel.
type Sampler struct {
	adc    ADC
	buf    []uint16
	head   int // Next write position
	filled int // Saturates at len(buf)
	lsb    float32
}

// New creates a Sampler reading from adc, averaging size samples and converting
// the mean to volts with vref / 2^resolution.
func New(adc ADC, size int, vref float32, resolution int) *Sampler {
	if size <= 0 {
		size = DefaultSize
	}

	return &Sampler{
		adc: adc,
		buf: make([]uint16, size),
		lsb: adcToVoltage(1, vref, resolution),
	}
}

// Sample reads one conversion from the ADC and pushes it into the buffer.
// Should be called repeatedly with a constant interval.
func (s *Sampler) Sample() {
	s.Add(s.adc.Get())
}

// Add pushes a raw reading, evicting the oldest one when the buffer is full.
func (s *Sampler) Add(raw uint16) {
	s.buf[s.head] = raw
	s.head = (s.head + 1) % len(s.buf)
	if s.filled < len(s.buf) {
		s.filled++
	}
}

// Reset drops all buffered samples. Needless to clear the memory itself.
func (s *Sampler) Reset() {
	s.head = 0
	s.filled = 0
}

// Smoothed returns the mean of a full buffer in volts.
// ok is false until the buffer has been filled since the last Reset.
func (s *Sampler) Smoothed() (volts float32, ok bool) {
	if s.filled < len(s.buf) {
		return 0, false
	}
	return s.mean(), true
}

// RawMean returns the mean of whatever is buffered in volts, before any gain is applied.
// Unlike Smoothed it accepts a partially filled buffer; ok is false only when it is empty.
func (s *Sampler) RawMean() (volts float32, ok bool) {
	if s.filled == 0 {
		return 0, false
	}
	return s.mean(), true
}

// Filled returns the number of buffered samples.
func (s *Sampler) Filled() int {
	return s.filled
}

// Size returns the buffer capacity.
func (s *Sampler) Size() int {
	return len(s.buf)
}

// Settled reports whether the buffer is full.
func (s *Sampler) Settled() bool {
	return s.filled == len(s.buf)
}

func (s *Sampler) mean() float32 {
	var sum uint32
	start := s.head - s.filled
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < s.filled; i++ {
		sum += uint32(s.buf[(start+i)%len(s.buf)])
	}
	return float32(sum) / float32(s.filled) * s.lsb
}

// adcToVoltage converts an ADC reading of the given resolution to volts.
func adcToVoltage(adc uint32, vref float32, resolution int) float32 {
	return float32(adc) * vref / float32(uint32(1)<<uint(resolution))
}
