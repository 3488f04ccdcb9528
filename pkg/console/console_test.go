package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/itohio/gomm/pkg/calib"
	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/sample"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop(io.Writer, []string) error { return nil }

func TestRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Command{Name: "ping", MaxArgs: 1, Handler: nop}))
	assert.Error(t, r.Register(Command{Name: "ping", Handler: nop}), "duplicate")
	assert.Error(t, r.Register(Command{Name: "bad", MinArgs: 2, MaxArgs: 1, Handler: nop}))
	assert.Error(t, r.Register(Command{Name: "nil"}))
	assert.Error(t, r.Register(Command{Handler: nop}))

	assert.Equal(t, []string{"help", "ping"}, r.Names())
}

func TestExecute(t *testing.T) {
	r := NewRegistry()
	var got []string
	require.NoError(t, r.Register(Command{
		Name:    "echo",
		Help:    "Echo arguments",
		MinArgs: 1,
		MaxArgs: 2,
		Handler: func(w io.Writer, args []string) error {
			got = args
			return nil
		},
	}))

	var out bytes.Buffer
	require.NoError(t, r.Execute(&out, `echo "hello world" x`))
	assert.Equal(t, []string{"hello world", "x"}, got)

	require.NoError(t, r.Execute(&out, "   "))

	assert.ErrorIs(t, r.Execute(&out, "echo"), ErrArgCount)
	assert.ErrorIs(t, r.Execute(&out, "echo a b c"), ErrArgCount)
	assert.ErrorIs(t, r.Execute(&out, `echo "unterminated`), ErrUsage)

	err := r.Execute(&out, "ecoh hi")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "did you mean 'echo'")

	err = r.Execute(&out, "xyzzy")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "try 'help'")
}

func TestHelp(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Command{Name: "ping", Help: "Ping", Handler: nop}))

	var out bytes.Buffer
	require.NoError(t, r.Execute(&out, "help"))
	assert.Contains(t, out.String(), "help - Display the help message")
	assert.Contains(t, out.String(), "ping - Ping")

	out.Reset()
	require.NoError(t, r.Execute(&out, "help ping"))
	assert.Equal(t, "ping - Ping\n", out.String())

	assert.ErrorIs(t, r.Execute(&out, "help nope"), ErrUnknownCommand)
}

func TestServe(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Command{Name: "ping", Handler: func(w io.Writer, _ []string) error {
		_, err := io.WriteString(w, "pong\n")
		return err
	}}))

	var out bytes.Buffer
	require.NoError(t, r.Serve(strings.NewReader("ping\n\nnope\n"), &out))
	assert.Equal(t, "> pong\n> > error: unknown command: nope, try 'help'\n> ", out.String())
}

func newCalConsole(t *testing.T) (*Registry, *scale.Selector, *settings.Memory) {
	t.Helper()
	cfg := config.Default()

	voltage := scale.New(scale.Voltage, sample.New(nil, sample.DefaultSize, 4.096, 12), nil, cfg.Voltage.Thresholds, 1)
	current := scale.New(scale.Current, sample.New(nil, sample.DefaultSize, 4.096, 12), nil, cfg.Current.Thresholds, cfg.SenseResistor)
	require.NoError(t, voltage.SetGains(cfg.Voltage.Gains))
	require.NoError(t, current.SetGains(cfg.Current.Gains))

	mem := settings.NewMemory()
	session := calib.New(voltage, current, settings.NewStore(mem, settings.Default(cfg)), true)

	r := NewRegistry()
	require.NoError(t, r.Register(CalCommand(SessionCalibrator(session))))
	return r, voltage, mem
}

func TestCal_Workflow(t *testing.T) {
	r, voltage, mem := newCalConsole(t)
	var out bytes.Buffer

	require.NoError(t, r.Execute(&out, "cal start u"))
	assert.ErrorIs(t, r.Execute(&out, "cal start i"), calib.ErrAlreadyActive)

	require.NoError(t, r.Execute(&out, "cal scale 1"))
	out.Reset()
	require.NoError(t, r.Execute(&out, "cal scale"))
	assert.Equal(t, "scale 1\n", out.String())

	for i := 0; i < voltage.Sampler().Size(); i++ {
		voltage.Sampler().Add(2250) // 2.25 V
	}

	out.Reset()
	require.NoError(t, r.Execute(&out, "cal in 5"))
	assert.Equal(t, "gain 0.45\n", out.String())

	out.Reset()
	require.NoError(t, r.Execute(&out, "cal gains"))
	assert.Equal(t, "voltage: 0.23 0.45 1 2.14\ncurrent: 5 10 22 47\n", out.String())

	require.NoError(t, r.Execute(&out, "cal save"))
	assert.NotNil(t, mem.Raw())

	assert.ErrorIs(t, r.Execute(&out, "cal save"), calib.ErrNotCalibrating)
}

func TestCal_Errors(t *testing.T) {
	r, _, _ := newCalConsole(t)
	var out bytes.Buffer

	assert.ErrorIs(t, r.Execute(&out, "cal"), ErrArgCount)
	assert.ErrorIs(t, r.Execute(&out, "cal start"), ErrUsage)
	assert.ErrorIs(t, r.Execute(&out, "cal start x"), ErrUsage)
	assert.ErrorIs(t, r.Execute(&out, "cal frobnicate"), ErrUsage)
	assert.ErrorIs(t, r.Execute(&out, "cal scale 1"), calib.ErrWrongState)

	require.NoError(t, r.Execute(&out, "cal start u"))
	assert.ErrorIs(t, r.Execute(&out, "cal scale one"), ErrUsage)
	assert.ErrorIs(t, r.Execute(&out, "cal scale 9"), calib.ErrInvalidArgument)
	assert.ErrorIs(t, r.Execute(&out, "cal in abc"), ErrUsage)
	assert.ErrorIs(t, r.Execute(&out, "cal in 5.0"), calib.ErrInvalidArgument)
	assert.ErrorIs(t, r.Execute(&out, "cal save now"), ErrUsage)

	out.Reset()
	require.NoError(t, r.Execute(&out, "cal exit"))
	assert.Equal(t, "calibration discarded\n", out.String())
	require.NoError(t, r.Execute(&out, "cal exit"), "exit is idempotent")
}

func TestLineReader(t *testing.T) {
	feed := func(l *LineReader, s string) []string {
		var lines []string
		for i := 0; i < len(s); i++ {
			if line, ok := l.Feed(s[i]); ok {
				lines = append(lines, line)
			}
		}
		return lines
	}

	l := NewLineReader(8)
	assert.Equal(t, []string{"cal save", "help"}, feed(l, "cal save\r\n\nhelp\n"))
	assert.Equal(t, []string{"cal in 5"}, feed(l, "cal im\b\x7fin 5\n"))
	assert.Equal(t, []string{"abcdefgh"}, feed(l, "abcdefghijk\n"))
	assert.Empty(t, feed(l, "\b\b\n"))
}

// unreachableCalibrator fails every call, like a session whose loop has stopped.
type unreachableCalibrator struct{ err error }

func (c unreachableCalibrator) Start(scale.Channel) error { return c.err }
func (c unreachableCalibrator) Scale() (uint8, error) { return 0, c.err }
func (c unreachableCalibrator) SetScale(int) error { return c.err }
func (c unreachableCalibrator) Record(float32) (float32, error) { return 0, c.err }
func (c unreachableCalibrator) Save() error { return c.err }
func (c unreachableCalibrator) Cancel() error { return c.err }
func (c unreachableCalibrator) Gains() (settings.Settings, error) { return settings.Settings{}, c.err }

func TestCal_UnreachableSessionReportsError(t *testing.T) {
	stopped := errors.New("meter stopped")
	r := NewRegistry()
	require.NoError(t, r.Register(CalCommand(unreachableCalibrator{err: stopped})))

	for _, line := range []string{"cal gains", "cal exit", "cal scale"} {
		var out bytes.Buffer
		assert.ErrorIs(t, r.Execute(&out, line), stopped, line)
		assert.Empty(t, out.String(), line)
	}
}
