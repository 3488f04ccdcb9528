package scale

import (
	"fmt"
	"strings"
)

// Channel identifies one of the two measurement channels.
type Channel uint8

const (
	Voltage Channel = iota
	Current
)

// NumChannels is the number of measurement channels.
const NumChannels = 2

func (c Channel) String() string {
	switch c {
	case Voltage:
		return "voltage"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// Unit returns the physical unit symbol of the channel.
func (c Channel) Unit() string {
	if c == Current {
		return "A"
	}
	return "V"
}

// ParseChannel accepts the console spelling of a channel: u/v/voltage or i/current.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "u", "v", "voltage":
		return Voltage, nil
	case "i", "current":
		return Current, nil
	default:
		return 0, fmt.Errorf("unknown channel %q", s)
	}
}
