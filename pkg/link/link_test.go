package link

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/uplink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceive(t *testing.T) {
	var buf bytes.Buffer
	w := uplink.NewWriter(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Send(scale.Reading{Valid: true, Value: float32(i)}, scale.Reading{}))
	}

	out := make(chan uplink.Packet, 10)
	receive(context.Background(), uplink.NewReader(&buf), out)
	close(out)

	var got []float32
	for p := range out {
		assert.False(t, p.Timestamp.IsZero())
		got = append(got, p.Voltage)
	}
	assert.Equal(t, []float32{0, 1, 2}, got)
}

func TestReceive_LogsDiscardedBytes(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x13, 0x42})
	require.NoError(t, uplink.NewWriter(&buf).Send(scale.Reading{Valid: true, Value: 3}, scale.Reading{}))

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	out := make(chan uplink.Packet, 10)
	receive(context.Background(), uplink.NewReader(&buf), out)
	close(out)

	p, ok := <-out
	require.True(t, ok)
	assert.Equal(t, float32(3), p.Voltage)
	assert.Contains(t, logs.String(), "Discarded 3 bytes")
}

func TestLink_NotConnected(t *testing.T) {
	l := New("/dev/null-port", 0, 0)
	_, err := l.Write([]byte{1})
	assert.Error(t, err)
	assert.NoError(t, l.Close())
}
