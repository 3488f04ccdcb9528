// Command mmsim runs the multimeter core on a simulated front-end. Readings are
// shown on stdout and the calibration console is served on stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/console"
	"github.com/itohio/gomm/pkg/device"
	"github.com/itohio/gomm/pkg/link"
	"github.com/itohio/gomm/pkg/meter"
	"github.com/itohio/gomm/pkg/settings"
	"github.com/itohio/gomm/pkg/settings/pebblestore"
	"github.com/itohio/gomm/pkg/uplink"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port to send uplink packets to (e.g., /dev/ttyUSB0)")
		skewFlag   = flag.Float64("skew", 0, "Relative error of the simulated amplifier gains (e.g., 0.02)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override uplink port if provided via command line
	if *portFlag != "" {
		cfg.Uplink.Port = *portFlag
	}

	storage, closeStorage, err := openStorage(cfg.Settings)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	defer closeStorage()
	store := settings.NewStore(storage, settings.Default(cfg))

	// Simulated front-end whose real gains deviate from the nominal ones
	mock := device.NewMock(cfg)
	if *skewFlag != 0 {
		skew(mock.Voltage, cfg.Voltage.Gains, float32(*skewFlag))
		skew(mock.Current, cfg.Current.Gains, float32(*skewFlag))
	}

	m := meter.New(cfg, mock.Voltage, mock.Current, store)
	m.AttachDisplay(newTextDisplay(os.Stdout))

	if cfg.Uplink.Port != "" {
		l := link.New(cfg.Uplink.Port, cfg.Uplink.BaudRate, 0)
		if err := l.Connect(false); err != nil {
			log.Fatalf("Failed to open uplink: %v", err)
		}
		defer l.Close()
		m.AttachUplink(uplink.NewWriter(l), func(err error) {
			log.Printf("Uplink error: %v", err)
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry, err := newRegistry(ctx, m, mock)
	if err != nil {
		log.Fatalf("Failed to set up console: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.Run(ctx, meter.NewSystemClock()); err != nil && ctx.Err() == nil {
			log.Printf("Meter stopped: %v", err)
		}
	}()

	go func() {
		if err := registry.Serve(os.Stdin, os.Stdout); err != nil {
			log.Printf("Console error: %v", err)
		}
		cancel()
	}()

	<-done
}

func newRegistry(ctx context.Context, m *meter.Meter, mock *device.Mock) (*console.Registry, error) {
	registry := console.NewRegistry()
	for _, cmd := range []console.Command{
		console.CalCommand(m.Calibrator(ctx)),
		simCommand(mock),
		readCommand(ctx, m),
	} {
		if err := registry.Register(cmd); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// openStorage selects the settings backend named in the configuration.
func openStorage(cfg config.SettingsConfig) (settings.Storage, func(), error) {
	switch cfg.Backend {
	case "memory":
		return settings.NewMemory(), func() {}, nil
	case "pebble":
		s, err := pebblestore.Open(cfg.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Printf("Error closing settings: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown settings backend: %s", cfg.Backend)
	}
}

func skew(in *device.MockInput, gains [config.NumScales]float32, rel float32) {
	for i, g := range gains {
		// Alternate the sign so neighbouring scales disagree.
		if i%2 == 1 {
			in.SetGain(uint8(i), g*(1-rel))
		} else {
			in.SetGain(uint8(i), g*(1+rel))
		}
	}
}
