package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run.
type Kind string

const (
	KindUsage      Kind = "usage"
	KindResolution Kind = "resolution"
	KindLoad       Kind = "load"
	KindInference  Kind = "inference"
	KindPersist    Kind = "persist"
	KindInternal   Kind = "internal"
)

// Error is a failed pipeline step.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func fail(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
