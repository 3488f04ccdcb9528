package console

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/itohio/gomm/pkg/output"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/uplink"
)

// ConsoleOutput prints packets as text lines.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsole creates an output writing to w, or stdout if w is nil.
func NewConsole(w io.Writer) output.Output {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) Publish(p uplink.Packet) error {
	_, err := fmt.Fprintf(c.w, "%s voltage=%s current=%s\n",
		p.Timestamp.Format(time.RFC3339),
		output.Format(p.VoltageReading(), scale.Voltage.Unit()),
		output.Format(p.CurrentReading(), scale.Current.Unit()))
	return err
}

func (c *ConsoleOutput) Close() error { return nil }
