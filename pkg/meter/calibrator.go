package meter

import (
	"context"

	"github.com/itohio/gomm/pkg/calib"
	"github.com/itohio/gomm/pkg/scale"
	"github.com/itohio/gomm/pkg/settings"
)

// SyncSession exposes the calibration session to another goroutine. Every
// call is executed by the loop through Exec, so scale and gain changes never
// interleave with an evaluation.
type SyncSession struct {
	ctx context.Context
	m   *Meter
}

// Calibrator returns a goroutine-safe view of the session bound to ctx.
func (m *Meter) Calibrator(ctx context.Context) *SyncSession {
	return &SyncSession{ctx: ctx, m: m}
}

// Active returns the channel being calibrated. err is set when the loop could
// not be reached, in which case ok is false.
func (s *SyncSession) Active() (ch scale.Channel, ok bool, err error) {
	err = s.m.Exec(s.ctx, func(c *calib.Session) error {
		ch, ok = c.Active()
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return ch, ok, nil
}

func (s *SyncSession) Start(ch scale.Channel) error {
	return s.m.Exec(s.ctx, func(c *calib.Session) error {
		return c.Start(ch)
	})
}

func (s *SyncSession) Scale() (n uint8, err error) {
	err = s.m.Exec(s.ctx, func(c *calib.Session) error {
		var err error
		n, err = c.Scale()
		return err
	})
	return n, err
}

func (s *SyncSession) SetScale(n int) error {
	return s.m.Exec(s.ctx, func(c *calib.Session) error {
		return c.SetScale(n)
	})
}

func (s *SyncSession) Record(measured float32) (gain float32, err error) {
	err = s.m.Exec(s.ctx, func(c *calib.Session) error {
		var err error
		gain, err = c.Record(measured)
		return err
	})
	return gain, err
}

func (s *SyncSession) Save() error {
	return s.m.Exec(s.ctx, func(c *calib.Session) error {
		return c.Save()
	})
}

func (s *SyncSession) Cancel() error {
	return s.m.Exec(s.ctx, func(c *calib.Session) error {
		c.Cancel()
		return nil
	})
}

func (s *SyncSession) Gains() (settings.Settings, error) {
	var g settings.Settings
	err := s.m.Exec(s.ctx, func(c *calib.Session) error {
		g = c.Gains()
		return nil
	})
	if err != nil {
		return settings.Settings{}, err
	}
	return g, nil
}
