package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gomm/pkg/scale"
	"gopkg.in/yaml.v3"
)

// NumScales is the number of gain scales per channel.
const NumScales = scale.NumScales

// Config represents the multimeter configuration.
type Config struct {
	ADC           ADCConfig         `yaml:"adc"`
	Voltage       ChannelConfig     `yaml:"voltage"`
	Current       ChannelConfig     `yaml:"current"`
	SenseResistor float32           `yaml:"sense_resistor"` // Current sense resistor (Ohm)
	Loop          LoopConfig        `yaml:"loop"`
	Calibration   CalibrationConfig `yaml:"calibration"`
	Settings      SettingsConfig    `yaml:"settings"`
	Uplink        UplinkConfig      `yaml:"uplink"`
	MQTT          MQTTConfig        `yaml:"mqtt"`
	Mock          MockConfig        `yaml:"mock"`
}

// ADCConfig describes the analog to digital converter.
type ADCConfig struct {
	VRef       float32 `yaml:"vref"`       // Reference voltage (V)
	Resolution int     `yaml:"resolution"` // Bits
	Samples    int     `yaml:"samples"`    // Moving average window
}

// ChannelConfig contains the compiled-in defaults of one measurement channel.
type ChannelConfig struct {
	Gains      [NumScales]float32  `yaml:"gains"`
	Thresholds [NumScales]Threshold `yaml:"thresholds"`
}

// Threshold is the valid band of one scale in physical units.
type Threshold = scale.Threshold

// LoopConfig contains control loop periods.
type LoopConfig struct {
	SamplePeriod   time.Duration `yaml:"sample_period"`
	EvaluatePeriod time.Duration `yaml:"evaluate_period"`
}

// CalibrationConfig contains calibration behaviour switches.
type CalibrationConfig struct {
	RequireSettled bool `yaml:"require_settled"` // Reference capture needs a full sample buffer
}

// SettingsConfig selects where calibration gains are persisted.
type SettingsConfig struct {
	Backend string `yaml:"backend"` // "memory" or "pebble"
	Path    string `yaml:"path"`
}

// UplinkConfig contains the host link serial port configuration.
type UplinkConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig contains the broker configuration of the bridge.
type MQTTConfig struct {
	Server   string `yaml:"server"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// MockConfig contains simulated front-end configuration.
type MockConfig struct {
	Voltage    float32 `yaml:"voltage"`     // Simulated input voltage (V)
	Current    float32 `yaml:"current"`     // Simulated input current (A)
	NoiseLevel float32 `yaml:"noise_level"` // Noise amplitude at the ADC pin (V)
	Seed       int64   `yaml:"seed"`
}

// Default returns a default configuration with the values of the reference hardware.
func Default() *Config {
	return &Config{
		ADC: ADCConfig{
			VRef:       3.3,
			Resolution: 12,
			Samples:    10,
		},
		Voltage: ChannelConfig{
			Gains: [NumScales]float32{0.23, 0.45, 1, 2.14},
			Thresholds: [NumScales]Threshold{
				{Min: 6, Max: 14},
				{Min: 2.8, Max: 6.5},
				{Min: 1.1, Max: 3.1},
				{Min: 0, Max: 1.3},
			},
		},
		Current: ChannelConfig{
			Gains: [NumScales]float32{5, 10, 22, 47},
			Thresholds: [NumScales]Threshold{
				{Min: 0.5, Max: 1.3},
				{Min: 0.2, Max: 0.6},
				{Min: 0.1, Max: 0.25},
				{Min: 0, Max: 0.12},
			},
		},
		SenseResistor: 0.5,
		Loop: LoopConfig{
			SamplePeriod:   10 * time.Millisecond,
			EvaluatePeriod: 500 * time.Millisecond,
		},
		Calibration: CalibrationConfig{
			RequireSettled: true,
		},
		Settings: SettingsConfig{
			Backend: "memory",
			Path:    "gomm-settings",
		},
		Uplink: UplinkConfig{
			Port:     "",
			BaudRate: 115200,
		},
		MQTT: MQTTConfig{
			Server:   "tcp://localhost:1883",
			ClientID: "gomm-bridge",
			Topic:    "gomm",
		},
		Mock: MockConfig{
			Voltage:    5.0,
			Current:    0.15,
			NoiseLevel: 0.002,
			Seed:       1,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the invariants the measurement core relies on.
// Scale 0 must be the widest range: both min and max are non-increasing
// as the scale index grows, and every band has min < max.
func (c *Config) Validate() error {
	if c.ADC.VRef <= 0 {
		return errors.New("adc.vref must be positive")
	}
	if c.ADC.Resolution <= 0 || c.ADC.Resolution > 16 {
		return fmt.Errorf("adc.resolution out of range: %d", c.ADC.Resolution)
	}
	if c.ADC.Samples <= 0 || c.ADC.Samples > 255 {
		return fmt.Errorf("adc.samples out of range: %d", c.ADC.Samples)
	}
	if c.SenseResistor <= 0 {
		return errors.New("sense_resistor must be positive")
	}
	if c.Loop.SamplePeriod <= 0 || c.Loop.EvaluatePeriod <= 0 {
		return errors.New("loop periods must be positive")
	}
	if err := c.Voltage.validate(); err != nil {
		return fmt.Errorf("voltage: %w", err)
	}
	if err := c.Current.validate(); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	return nil
}

func (ch *ChannelConfig) validate() error {
	for i, g := range ch.Gains {
		if !(g > 0) || math32.IsInf(g, 0) || math32.IsNaN(g) {
			return fmt.Errorf("gain %d must be finite and positive, got %v", i, g)
		}
	}
	for i, t := range ch.Thresholds {
		if t.Min >= t.Max {
			return fmt.Errorf("threshold %d: min %v must be below max %v", i, t.Min, t.Max)
		}
		if i == 0 {
			continue
		}
		prev := ch.Thresholds[i-1]
		if t.Max > prev.Max || t.Min > prev.Min {
			return fmt.Errorf("threshold %d is wider than threshold %d", i, i-1)
		}
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Resolution == 0 {
		c.ADC.Resolution = def.ADC.Resolution
	}
	if c.ADC.Samples == 0 {
		c.ADC.Samples = def.ADC.Samples
	}
	if c.SenseResistor == 0 {
		c.SenseResistor = def.SenseResistor
	}

	if c.Loop.SamplePeriod == 0 {
		c.Loop.SamplePeriod = def.Loop.SamplePeriod
	}
	if c.Loop.EvaluatePeriod == 0 {
		c.Loop.EvaluatePeriod = def.Loop.EvaluatePeriod
	}

	if c.Settings.Backend == "" {
		c.Settings.Backend = def.Settings.Backend
	}
	if c.Settings.Path == "" {
		c.Settings.Path = def.Settings.Path
	}

	if c.Uplink.BaudRate == 0 {
		c.Uplink.BaudRate = def.Uplink.BaudRate
	}

	if c.MQTT.Server == "" {
		c.MQTT.Server = def.MQTT.Server
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
}
