//go:build rp2040

package main

import "machine"

const (
	// Analog inputs
	PIN_USENSE = machine.ADC0 // GPIO26
	PIN_ISENSE = machine.ADC1 // GPIO27

	// Amplifier gain select lines
	PIN_U_SCALE0 = machine.GPIO21
	PIN_U_SCALE1 = machine.GPIO22
	PIN_I_SCALE0 = machine.GPIO23
	PIN_I_SCALE1 = machine.GPIO24

	// Uplink serial configuration
	// One 10 byte packet per evaluate period (2/s) = 20 bytes/s, far below the line rate.
	UPLINK_BAUD_RATE = 115200

	// Console line buffer
	CONSOLE_LINE_SIZE = 64
)
