package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/output"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/uplink"
)

const (
	// DefaultTopic is used when the configuration has none.
	DefaultTopic = "gomm"
	stateSuffix  = "/state"
)

// MQTTOutput publishes packets as JSON state messages.
type MQTTOutput struct {
	client mqtt.Client
	topic  string
}

// State is the JSON payload of one packet. Values are null when invalid.
type State struct {
	Timestamp int64    `json:"timestamp"` // Unix milliseconds
	Voltage   *float32 `json:"voltage"`
	Current   *float32 `json:"current"`
	Overload  []string `json:"overload,omitempty"`
}

// NewMQTT connects to the broker.
func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTOutput{client: client, topic: topic + stateSuffix}, nil
}

func (m *MQTTOutput) Publish(p uplink.Packet) error {
	b, err := json.Marshal(NewState(p))
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 0, false, b)
	token.Wait()
	return token.Error()
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// NewState converts a packet into its JSON payload.
func NewState(p uplink.Packet) State {
	s := State{Timestamp: p.Timestamp.UnixMilli()}
	s.Voltage = stateValue(p.VoltageReading(), scale.Voltage, &s.Overload)
	s.Current = stateValue(p.CurrentReading(), scale.Current, &s.Overload)
	return s
}

func stateValue(r scale.Reading, ch scale.Channel, overload *[]string) *float32 {
	if !r.Valid {
		return nil
	}
	if r.Overloaded() {
		*overload = append(*overload, ch.String())
		return nil
	}
	v := r.Value
	return &v
}
