package console

import (
	"fmt"
	"io"
	"strconv"

	"github.com/itohio/gomm/pkg/calib"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
)

// Calibrator is the calibration session as seen by the console.
// Range and state checks are its responsibility, not the console's.
type Calibrator interface {
	Start(ch scale.Channel) error
	Scale() (uint8, error)
	SetScale(n int) error
	Record(measured float32) (float32, error)
	Save() error
	Cancel() error
	Gains() (settings.Settings, error)
}

// SessionCalibrator exposes a session owned by the caller's goroutine, as on
// the single-threaded firmware.
func SessionCalibrator(s *calib.Session) Calibrator {
	return localSession{s}
}

type localSession struct {
	*calib.Session
}

func (s localSession) Cancel() error {
	s.Session.Cancel()
	return nil
}

func (s localSession) Gains() (settings.Settings, error) {
	return s.Session.Gains(), nil
}

const calHelp = `Calibrate the current and voltage scales
  Usage: cal <start|save|exit|scale|in|gains> [options]
	cal start <u|i> - Start the calibration of the voltage or current scales
	cal save - Save the calibration data and exit
	cal exit - Exit the calibration and discard the changes
	cal scale [level] - Show or set the scale level (0-3)
	cal in <value> - Input the actual value (in V or A)
	cal gains - Show the current gains`

// CalCommand returns the "cal" command bound to c.
func CalCommand(c Calibrator) Command {
	return Command{
		Name:    "cal",
		Help:    calHelp,
		MinArgs: 1,
		MaxArgs: 2,
		Handler: func(w io.Writer, args []string) error {
			return calibrate(c, w, args)
		},
	}
}

func calibrate(c Calibrator, w io.Writer, args []string) error {
	sub, rest := args[0], args[1:]

	switch sub {
	case "start":
		if len(rest) != 1 {
			return fmt.Errorf("%w: cal start <u|i>", ErrUsage)
		}
		ch, err := scale.ParseChannel(rest[0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if err := c.Start(ch); err != nil {
			return err
		}
		fmt.Fprintf(w, "calibrating %s\n", ch)

	case "scale":
		if len(rest) == 0 {
			n, err := c.Scale()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "scale %d\n", n)
			return nil
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return fmt.Errorf("%w: cal scale [0-%d]", ErrUsage, scale.NumScales-1)
		}
		if err := c.SetScale(n); err != nil {
			return err
		}
		fmt.Fprintf(w, "scale %d\n", n)

	case "in":
		if len(rest) != 1 {
			return fmt.Errorf("%w: cal in <value>", ErrUsage)
		}
		v, err := strconv.ParseFloat(rest[0], 32)
		if err != nil {
			return fmt.Errorf("%w: cal in <value>: %v", ErrUsage, err)
		}
		gain, err := c.Record(float32(v))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "gain %g\n", gain)

	case "save":
		if len(rest) != 0 {
			return fmt.Errorf("%w: cal save", ErrUsage)
		}
		if err := c.Save(); err != nil {
			return err
		}
		fmt.Fprintln(w, "calibration saved")

	case "exit":
		if len(rest) != 0 {
			return fmt.Errorf("%w: cal exit", ErrUsage)
		}
		if err := c.Cancel(); err != nil {
			return err
		}
		fmt.Fprintln(w, "calibration discarded")

	case "gains":
		g, err := c.Gains()
		if err != nil {
			return err
		}
		for ch := range g.Gains {
			fmt.Fprintf(w, "%s:", scale.Channel(ch))
			for _, v := range g.Gains[ch] {
				fmt.Fprintf(w, " %g", v)
			}
			fmt.Fprintln(w)
		}

	default:
		return fmt.Errorf("%w: unknown subcommand %q, see 'help cal'", ErrUsage, sub)
	}

	return nil
}
