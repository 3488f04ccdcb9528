package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/itohio/gomm/pkg/output"
	"github.com/itohio/gomm/pkg/scale"
)

// textDisplay renders the two readings as one text line. The meter updates
// the voltage first, so the line is written on the current update, and only
// when it differs from the previous one.
type textDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	voltage scale.Reading
	last    string
}

func newTextDisplay(w io.Writer) *textDisplay {
	return &textDisplay{w: w}
}

func (d *textDisplay) UpdateVoltage(valid bool, value float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voltage = scale.Reading{Valid: valid, Value: value}
}

func (d *textDisplay) UpdateCurrent(valid bool, value float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	line := fmt.Sprintf("U: %-10s I: %-10s",
		output.Format(d.voltage, scale.Voltage.Unit()),
		output.Format(scale.Reading{Valid: valid, Value: value}, scale.Current.Unit()))
	if line == d.last {
		return
	}
	d.last = line
	fmt.Fprintln(d.w, line)
}
