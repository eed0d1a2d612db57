package swaperr

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrInput is returned for malformed caller supplied data: script text,
	// key or hash encodings, addresses.
	ErrInput = Register(2, "input error")

	// ErrTransaction is returned when a transaction cannot be built or
	// signed, ie. a missing funding output or a violated precondition.
	ErrTransaction = Register(3, "transaction error")

	// ErrNetwork is returned for transport failures and broadcast
	// rejections. It is the only kind worth retrying.
	ErrNetwork = Register(4, "network error")

	// ErrKey is returned for blinding and unblinding failures.
	ErrKey = Register(5, "key error")
)

// Register returns a root error kind. It panics if code was already taken,
// so it must be called only during program initialization.
func Register(code uint32, description string) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %q", code, e.desc))
	}
	err := &Error{
		code: code,
		desc: description,
	}
	usedCodes[err.code] = err
	return err
}

// Code 1 is reserved for errors that do not belong to any kind.
var usedCodes = map[uint32]*Error{
	1: nil,
}

// Error is a root error kind. Every error returned by this module wraps
// exactly one of them.
type Error struct {
	code uint32
	desc string
}

func (e Error) Error() string {
	return e.desc
}

func (e Error) Code() uint32 {
	return e.code
}

// New returns an error of this kind carrying the given description.
func (e *Error) New(description string) error {
	return Wrap(e, description)
}

func (e *Error) Newf(description string, args ...interface{}) error {
	return e.New(fmt.Sprintf(description, args...))
}

// Wrap labels cause with this kind. The cause message is kept, the cause
// itself is not part of the chain.
func (e *Error) Wrap(cause error, description string) error {
	if cause == nil {
		return nil
	}
	return Wrap(e, fmt.Sprintf("%s: %s", description, cause))
}

func (e *Error) Wrapf(cause error, format string, args ...interface{}) error {
	return e.Wrap(cause, fmt.Sprintf(format, args...))
}

// Matches reports whether err is of this kind, following Cause along the
// way. Naming it Is would make errors.Is match any two errors of the same
// kind.
func (kind *Error) Matches(err error) bool {
	if kind == nil {
		if err == nil {
			return true
		}
		return reflect.ValueOf(err).IsNil()
	}

	for {
		if err == kind {
			return true
		}

		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return false
		}
	}
}

// Wrap extends err with a description. A stack trace is attached at the
// innermost wrap only. Wrapping nil returns nil.
func Wrap(err error, description string) error {
	if err == nil {
		return nil
	}

	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}

	return &wrappedError{
		parent: err,
		msg:    description,
	}
}

func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// KindOf returns the root kind of err, or nil if err carries none.
func KindOf(err error) *Error {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e
		}
		c, ok := err.(causer)
		if !ok {
			return nil
		}
		err = c.Cause()
	}
	return nil
}

type wrappedError struct {
	msg    string
	parent error
}

func (e *wrappedError) Error() string {
	return fmt.Sprintf("%s: %s", e.msg, e.parent.Error())
}

func (e *wrappedError) Cause() error {
	return e.parent
}

func (e *wrappedError) Unwrap() error {
	return e.parent
}

type causer interface {
	Cause() error
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func stackTrace(err error) errors.StackTrace {
	for {
		if st, ok := err.(stackTracer); ok {
			return st.StackTrace()
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return nil
		}
	}
}
