package layer

import (
	"errors"
	"fmt"

	"github.com/born-ml/seqnet/internal/activation"
)

// Sentinel errors returned by layer constructors.
var (
	// ErrNoSources is returned when a layer that combines sources has none.
	ErrNoSources = errors.New("needs at least one source")

	// ErrSourceCount is returned when a layer gets the wrong number of sources.
	ErrSourceCount = errors.New("wrong number of sources")

	// ErrWidthMismatch is returned when source shapes cannot be combined.
	ErrWidthMismatch = errors.New("source shapes do not match")

	// ErrNoDualChannel is returned when a source has no dual channel pair.
	ErrNoDualChannel = errors.New("source has no dual channel")

	// ErrMissingReference is returned when a referenced layer is absent or of the wrong kind.
	ErrMissingReference = errors.New("missing reference layer")

	// ErrNotImplemented is returned for recognised but unsupported modes.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnknownOperator is returned for binary operator names outside the enumeration.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnknownActivation is returned for activation names outside the registry.
	ErrUnknownActivation = activation.ErrUnknown

	// ErrInvalidConfig is returned for out-of-range options.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError describes a layer that could not be constructed.
type ConfigError struct {
	Layer   string // layer name
	Class   string // layer class
	Details string // what was wrong
	Err     error  // sentinel the error wraps
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s layer %q: %v", e.Class, e.Layer, e.Err)
	}
	return fmt.Sprintf("%s layer %q: %v: %s", e.Class, e.Layer, e.Err, e.Details)
}

// Unwrap returns the wrapped sentinel.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(class, name string, err error, format string, args ...any) error {
	return &ConfigError{
		Layer:   name,
		Class:   class,
		Details: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
