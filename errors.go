package lightcurve

import "errors"

var (
	// ErrInvalidInitialState is returned before any integration when the initial
	// attitude or orbit cannot be propagated (non unit quaternion, orbit radius
	// below the site radius, singular inertia tensor...).
	ErrInvalidInitialState = errors.New("invalid initial state")
	// ErrIntegrationStep is returned when the step solver could not advance.
	// No partial trajectory is ever returned alongside it.
	ErrIntegrationStep = errors.New("integration step failed")
	// ErrLengthMismatch is returned when parallel sequences differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)
