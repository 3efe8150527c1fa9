package pimeans

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pimeans/fabric"
)

// ConfigError indicates an invalid run configuration: zero units, zero
// clusters or features, malformed point data, or a burst buffer too small
// to hold one point. It is detected before any transfer.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// CapacityError indicates that a run's shape exceeds a fixed capacity
// limit (points per unit, features, clusters, scratch memory, or the
// fabric's bulk memory budget). It is detected at setup, never
// mid-transfer.
type CapacityError struct {
	Resource string
	Need     int
	Limit    int
	cause    error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error: %s needs %d, limit is %d", e.Resource, e.Need, e.Limit)
}

func (e *CapacityError) Unwrap() error { return e.cause }

// TransferError wraps a failure reported by the fabric while moving bytes
// between host and units. It is fatal; the run aborts without retry.
type TransferError struct {
	Symbol    string
	Direction fabric.Direction
	cause     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer error: symbol %q (%s): %v", e.Symbol, e.Direction, e.cause)
}

func (e *TransferError) Unwrap() error { return e.cause }

// LaunchError wraps a failure during a synchronous kernel launch. It is
// fatal; the run aborts without retry.
type LaunchError struct {
	Iteration int
	cause     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch error: iteration %d: %v", e.Iteration, e.cause)
}

func (e *LaunchError) Unwrap() error { return e.cause }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// translateLoadError maps a fabric image-load failure into the taxonomy:
// a blown memory budget is a capacity problem, everything else is a
// launch-path failure.
func translateLoadError(err error, units, perUnitBytes int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fabric.ErrHostMemory) {
		return &CapacityError{
			Resource: "fabric bulk memory",
			Need:     units * perUnitBytes,
			Limit:    -1,
			cause:    err,
		}
	}
	return &LaunchError{Iteration: -1, cause: err}
}
