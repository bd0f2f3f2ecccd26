package store

import "fmt"

type staticErr string

func (e staticErr) Error() string { return string(e) }

// ErrRejected matches every RejectedMutation through errors.Is.
var ErrRejected error = staticErr("mutation rejected")

// RejectedMutation is returned when a mutation's precondition fails.
// Nothing is written when it is returned.
type RejectedMutation struct {
	Op     string
	Reason string
}

func (e *RejectedMutation) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

func (e *RejectedMutation) Is(target error) bool { return target == ErrRejected }

func reject(op, format string, args ...any) error {
	return &RejectedMutation{Op: op, Reason: fmt.Sprintf(format, args...)}
}
