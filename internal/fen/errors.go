package fen

import "fmt"

type staticErr string

func (e staticErr) Error() string { return string(e) }

// ErrDecode matches every DecodeError through errors.Is.
var ErrDecode error = staticErr("board decode failed")

// DecodeError reports a board serialization that does not match the grammar.
type DecodeError struct {
	Input  string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode board %q: %s: %s", e.Input, e.Field, e.Reason)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func fail(input, field, format string, args ...any) error {
	return &DecodeError{Input: input, Field: field, Reason: fmt.Sprintf(format, args...)}
}
