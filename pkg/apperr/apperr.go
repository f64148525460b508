// Package apperr classifies failures surfaced by the bistro services so the
// HTTP and gRPC layers can map them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	NotFound
	InvalidArgument
	InvalidState
	PermissionDenied
	CutoffExpired
	StorageError
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidArgument:
		return "invalid argument"
	case InvalidState:
		return "invalid state"
	case PermissionDenied:
		return "permission denied"
	case CutoffExpired:
		return "cutoff expired"
	case StorageError:
		return "storage error"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinels such as
// ErrInvalidArgument work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrInvalidArgument matches any InvalidArgument error under errors.Is.
var ErrInvalidArgument = &Error{Kind: InvalidArgument}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Message returns the human readable message of the outermost *Error, or
// err.Error() for unclassified errors.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
