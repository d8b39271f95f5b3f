package domain

import (
	"errors"
	"fmt"
)

// ErrViolations is returned by the validate entry points when the verdict fails.
var ErrViolations = errors.New("policy violations found")

// ErrUnsupportedSchema marks a snapshot whose schema version cannot be read.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// ConfigError is a missing or invalid external configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError is a missing or unreadable input (project root, snapshot file).
type InputError struct {
	Op   string
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err carries an InputError or ConfigError.
func IsInputError(err error) bool {
	var ie *InputError
	var ce *ConfigError
	return errors.As(err, &ie) || errors.As(err, &ce)
}
