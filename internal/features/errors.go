package features

import (
	"errors"
	"fmt"
)

// ErrDomain is matched by every DomainError via errors.Is.
var ErrDomain = errors.New("input outside estimator domain")

// DomainError reports degenerate input that an estimator refuses to turn into
// a number: empty curves, mismatched kinematic series, or a non-positive ego
// speed. Callers decide whether to hold the last good value or skip the frame.
type DomainError struct {
	Op     string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is lets errors.Is(err, ErrDomain) match any DomainError.
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}

func domainErr(op, format string, args ...interface{}) error {
	return &DomainError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
