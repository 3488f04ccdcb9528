package output

import (
	"github.com/dustin/go-humanize"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/uplink"
)

const (
	// Placeholder is shown for a reading that is not available yet.
	Placeholder = "---"
	// OverloadMark is shown for an overloaded reading.
	OverloadMark = "OL"
)

// Output receives decoded uplink packets.
type Output interface {
	Publish(p uplink.Packet) error
	Close() error
}

// Format renders a reading with an SI prefix, e.g. "4.99 V" or "150 mA".
func Format(r scale.Reading, unit string) string {
	switch {
	case !r.Valid:
		return Placeholder
	case r.Overloaded():
		return OverloadMark
	default:
		return humanize.SIWithDigits(float64(r.Value), 3, unit)
	}
}
