package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks setup mistakes: a guarded job without a
	// description, a single-host mutex behind OnOneServer, an entry point
	// that cannot be resolved.
	ErrConfiguration = errors.New("scheduling: configuration")
	// ErrInvalidArgument marks bad values passed to a builder or constructor.
	ErrInvalidArgument = errors.New("scheduling: invalid argument")
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func argumentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
