// Package mapperr defines the error taxonomy shared by the placement and
// routing engines.
//
// Every typed error wraps one of the sentinels below, so callers may use
// either errors.Is against the sentinel or errors.As against the concrete
// type when they need the detail.
package mapperr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the mapping engines.
var (
	// ErrCapacity is returned when a resource class is oversubscribed.
	ErrCapacity = errors.New("resource class oversubscribed")

	// ErrConvergence is returned when the router cannot remove congestion.
	ErrConvergence = errors.New("routing did not converge")

	// ErrConsistency is returned when a post-routing check fails.
	ErrConsistency = errors.New("post-routing consistency check failed")

	// ErrConfig is returned for invalid engine options.
	ErrConfig = errors.New("invalid configuration")

	// ErrMapBusy is returned when a Map is already being placed or routed.
	ErrMapBusy = errors.New("map is busy with another placement or routing run")
)

// CapacityError reports a class that has more tasks than resources, or a
// fixed task that names a resource it cannot occupy.
type CapacityError struct {
	Class     string
	Tasks     int
	Resources int
	Detail    string
}

func (e *CapacityError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: class %q: %s", ErrCapacity, e.Class, e.Detail)
	}
	return fmt.Sprintf("%s: class %q needs %d resources, architecture has %d", ErrCapacity, e.Class, e.Tasks, e.Resources)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// Congestion describes one routing element whose occupancy exceeds its capacity.
type Congestion struct {
	Kind      string   `json:"kind"` // "link" or "resource"
	Name      string   `json:"name"`
	Occupancy int      `json:"occupancy"`
	Capacity  int      `json:"capacity"`
	Channels  []string `json:"channels,omitempty"`
}

// ConvergenceError is returned together with a failed routing result.
type ConvergenceError struct {
	Iterations int
	Congested  []Congestion
}

func (e *ConvergenceError) Error() string {
	names := make([]string, 0, len(e.Congested))
	for _, c := range e.Congested {
		names = append(names, fmt.Sprintf("%s %s (%d/%d)", c.Kind, c.Name, c.Occupancy, c.Capacity))
	}
	return fmt.Sprintf("%s after %d iterations: %d congested elements: %s",
		ErrConvergence, e.Iterations, len(e.Congested), strings.Join(names, ", "))
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// ConsistencyError lists the post-routing checks that failed. Err holds the
// combined per-check errors.
type ConsistencyError struct {
	Failed []string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConsistency, strings.Join(e.Failed, ", "), e.Err)
}

// Unwrap exposes both the sentinel and the combined check errors.
func (e *ConsistencyError) Unwrap() []error { return []error{ErrConsistency, e.Err} }

// ConfigError reports an invalid option, detected before an engine starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError is a shorthand used by the option validators.
func NewConfigError(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
