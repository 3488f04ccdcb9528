package calib

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports an argument outside its valid range. No state changed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrWrongState reports an operation issued in a state that does not allow it. No state changed.
	ErrWrongState = errors.New("wrong state")
	// ErrAlreadyActive reports a start while a session is running.
	ErrAlreadyActive = errors.New("calibration already active")

	ErrNotCalibrating = fmt.Errorf("%w: not calibrating", ErrWrongState)
	ErrNotSettled     = fmt.Errorf("%w: samples not settled", ErrWrongState)
	ErrOutOfRange     = fmt.Errorf("%w: reference outside the active scale range", ErrInvalidArgument)
)
