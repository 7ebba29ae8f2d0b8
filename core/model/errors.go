package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so transports can pick a status code.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindInvalidState    ErrorKind = "invalid_state"
	KindNoCapacity      ErrorKind = "no_capacity"
	KindExternalService ErrorKind = "external_service"
	KindValidation      ErrorKind = "validation"
	KindInternal        ErrorKind = "internal"
)

var (
	ErrIncidentNotFound       = errors.New("incident not found")
	ErrVehicleNotFound        = errors.New("vehicle not found")
	ErrHospitalNotFound       = errors.New("hospital not found")
	ErrIncidentAlreadyHandled = errors.New("incident already handled")
	ErrNoVehicleAvailable     = errors.New("no vehicle available")
	ErrNoHospitalAvailable    = errors.New("no hospital available")
)

// Error carries a kind next to the wrapped cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements the kinded interface used by KindOf.
func (e *Error) ErrorKind() ErrorKind { return e.Kind }

// Wrap attaches kind to err. A nil err yields nil.
func Wrap(kind ErrorKind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// NotFound wraps one of the *NotFound sentinels with the missing id.
func NotFound(sentinel error, id string) error {
	return &Error{Kind: KindNotFound, Err: fmt.Errorf("%w: %s", sentinel, id)}
}

// InvalidState reports an operation attempted from the wrong status.
func InvalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Msg: msg}
}

// Validation reports malformed input.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// KindOf returns the kind of the first kinded error in the chain, or
// KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k interface{ ErrorKind() ErrorKind }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrIncidentNotFound), errors.Is(err, ErrVehicleNotFound), errors.Is(err, ErrHospitalNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoVehicleAvailable), errors.Is(err, ErrNoHospitalAvailable):
		return KindNoCapacity
	case errors.Is(err, ErrIncidentAlreadyHandled):
		return KindInvalidState
	}
	return KindInternal
}

// IsKind is shorthand for KindOf(err) == kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
