package router

import (
	"fmt"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// ErrParse matches every ParseError through errors.Is.
var ErrParse error = staticErr("payload parse failed")

// ParseError reports a structured payload that could not be parsed.
type ParseError struct {
	Channel string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Channel, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
