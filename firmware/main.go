//go:build rp2040

//go:generate tinygo flash -target=pico

package main

import (
	"machine"
	"time"

	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/console"
	"github.com/itohio/gomm/pkg/device"
	"github.com/itohio/gomm/pkg/meter"
	"github.com/itohio/gomm/pkg/settings"
	"github.com/itohio/gomm/pkg/uplink"
)

// input joins an ADC channel and its gain select lines.
type input struct {
	machine.ADC
	device.ScaleSelect
}

// pin adapts a GPIO to device.Pin.
type pin machine.Pin

func (p pin) Set(high bool) { machine.Pin(p).Set(high) }

func newInput(adc, bit0, bit1 machine.Pin) *input {
	adc.Configure(machine.PinConfig{Mode: machine.PinInput})
	bit0.Configure(machine.PinConfig{Mode: machine.PinOutput})
	bit1.Configure(machine.PinConfig{Mode: machine.PinOutput})

	in := &input{
		ADC:         machine.ADC{Pin: adc},
		ScaleSelect: device.ScaleSelect{Bit0: pin(bit0), Bit1: pin(bit1)},
	}
	in.ADC.Configure(machine.ADCConfig{})
	return in
}

func main() {
	cfg := config.Default()

	machine.InitADC()
	voltage := newInput(PIN_USENSE, PIN_U_SCALE0, PIN_U_SCALE1)
	current := newInput(PIN_ISENSE, PIN_I_SCALE0, PIN_I_SCALE1)

	store := settings.NewStore(settings.NewFlash(machine.Flash), settings.Default(cfg))
	m := meter.New(cfg, voltage, current, store)

	// Uplink on UART0, console on the USB serial port
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{BaudRate: UPLINK_BAUD_RATE})
	m.AttachUplink(uplink.NewWriter(uart), nil)

	// Everything runs on this loop, so the console drives the session directly.
	registry := console.NewRegistry()
	if err := registry.Register(console.CalCommand(console.SessionCalibrator(m.Session()))); err != nil {
		println("console:", err.Error())
	}

	serial := machine.Serial
	line := console.NewLineReader(CONSOLE_LINE_SIZE)
	clock := meter.NewSystemClock()

	// Main loop
	for {
		for serial.Buffered() > 0 {
			data, err := serial.ReadByte()
			if err != nil {
				break
			}
			if cmd, ok := line.Feed(data); ok {
				if err := registry.Execute(serial, cmd); err != nil {
					serial.Write([]byte("error: " + err.Error() + "\n"))
				}
				serial.Write([]byte(console.Prompt))
			}
		}

		m.Tick(clock.Millis())

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(100 * time.Microsecond)
	}
}
