package waypoint

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError reports a waypoint configuration that cannot produce a usable Store. It is fatal at
// startup: a follower must never be built from a configuration that failed to load.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "waypoint config: " + e.Reason
	}
	return fmt.Sprintf("waypoint config: %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newConfigError(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func wrapConfigError(err error, format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// NewMissingConfigError reports that no waypoint configuration was given at all. cause describes
// where it was expected.
func NewMissingConfigError(cause error) error {
	return wrapConfigError(cause, "no waypoints configured")
}

// IsConfigError reports whether any error in err's chain is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
