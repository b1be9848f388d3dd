package detect

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrDemotionConflict is returned when a second driver requests end-of-order
// demotion; only one maximally permissive driver may evaluate last.
var ErrDemotionConflict = errors.New("another driver is already demoted to evaluate last")

// InvalidIdentifierError reports malformed USB identifiers passed to
// Registry.AddUSBDevices. The registration is rejected as a whole; no
// identifier from the same call is stored.
type InvalidIdentifierError struct {
	Driver string
	Kind   ConnectionKind
	IDs    []string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid USB IDs for driver %q, kind %s: %s",
		e.Driver, e.Kind, strings.Join(e.IDs, ", "))
}

// UnknownDriverError reports a query against a driver name that was never
// registered for auto-detection.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("no detection data for driver %q", e.Driver)
}

// IsUnknownDriver reports whether err wraps an UnknownDriverError.
func IsUnknownDriver(err error) bool {
	var target *UnknownDriverError
	return errors.As(err, &target)
}

// IsInvalidIdentifier reports whether err wraps an InvalidIdentifierError.
func IsInvalidIdentifier(err error) bool {
	var target *InvalidIdentifierError
	return errors.As(err, &target)
}
