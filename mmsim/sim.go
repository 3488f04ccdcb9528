package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/itohio/gomm/pkg/calib"
	"github.com/itohio/gomm/pkg/console"
	"github.com/itohio/gomm/pkg/device"
	"github.com/itohio/gomm/pkg/meter"
	"github.com/itohio/gomm/pkg/output"
	"github.com/itohio/gomm/pkg/scale"
)

const simHelp = `Show or change the simulated inputs
  Usage: sim <u|i> [value]
	sim u 5.2 - Apply 5.2 V to the voltage input
	sim i 0.1 - Drive 0.1 A through the sense resistor
	sim u - Show the simulated input and selected scale`

// simCommand controls the simulated front-end.
func simCommand(mock *device.Mock) console.Command {
	return console.Command{
		Name:    "sim",
		Help:    simHelp,
		MinArgs: 1,
		MaxArgs: 2,
		Handler: func(w io.Writer, args []string) error {
			ch, err := scale.ParseChannel(args[0])
			if err != nil {
				return err
			}
			in := mock.Voltage
			if ch == scale.Current {
				in = mock.Current
			}

			if len(args) == 2 {
				v, err := strconv.ParseFloat(args[1], 32)
				if err != nil {
					return fmt.Errorf("%w: invalid value %q", console.ErrUsage, args[1])
				}
				in.SetInput(float32(v))
			}
			fmt.Fprintf(w, "%s input %v %s, scale %d\n", ch, in.Input(), ch.Unit(), in.Scale())
			return nil
		},
	}
}

// readCommand prints the last evaluated readings.
func readCommand(ctx context.Context, m *meter.Meter) console.Command {
	return console.Command{
		Name:    "read",
		Help:    "Show the last readings\n  Usage: read",
		Handler: func(w io.Writer, args []string) error {
			var voltage, current scale.Reading
			var scales [scale.NumChannels]uint8
			err := m.Exec(ctx, func(*calib.Session) error {
				voltage, current = m.Readings()
				scales[scale.Voltage] = m.Selector(scale.Voltage).Scale()
				scales[scale.Current] = m.Selector(scale.Current).Scale()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "U: %s (scale %d)\nI: %s (scale %d)\n",
				output.Format(voltage, scale.Voltage.Unit()), scales[scale.Voltage],
				output.Format(current, scale.Current.Unit()), scales[scale.Current])
			return nil
		},
	}
}
