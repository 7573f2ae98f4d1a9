// Package ddserrors implements the typed error taxonomy of spec §7: a closed
// set of Kind values carried by a single Error struct, in the style of the
// teacher's internal/errors.NetworkError (Operation/Err/Details fields, an
// Unwrap method so callers can still errors.Is/errors.As through to the
// underlying cause).
package ddserrors

import "github.com/pkg/errors"

// Kind is one of the error kinds of spec §7.
type Kind int

const (
	NotEnabled Kind = iota
	BadParameter
	PreconditionNotMet
	ImmutablePolicy
	InconsistentPolicy
	Timeout
	IllegalOperation
	OutOfResources
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case NotEnabled:
		return "NotEnabled"
	case BadParameter:
		return "BadParameter"
	case PreconditionNotMet:
		return "PreconditionNotMet"
	case ImmutablePolicy:
		return "ImmutablePolicy"
	case InconsistentPolicy:
		return "InconsistentPolicy"
	case Timeout:
		return "Timeout"
	case IllegalOperation:
		return "IllegalOperation"
	case OutOfResources:
		return "OutOfResources"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error is the error type every public dds operation returns on failure
// (spec §7: "all public operations return a result"). Operation names the
// call that failed (e.g. "delete_publisher"), Details adds human-readable
// context, and Err wraps a lower-level cause when one exists.
type Error struct {
	Kind      Kind
	Operation string
	Details   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Operation
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, operation, details string) *Error {
	return &Error{Kind: kind, Operation: operation, Details: details}
}

// Wrap builds an *Error around a lower-level cause, annotated via
// github.com/pkg/errors so the original stack trace survives.
func Wrap(kind Kind, operation string, err error) *Error {
	return &Error{Kind: kind, Operation: operation, Err: errors.WithStack(err)}
}

// Is reports whether err is a *Error of the given kind, for callers that only
// care about the taxonomy (e.g. "was this a Timeout?").
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NetworkError mirrors the teacher's internal/errors.NetworkError for
// transport-layer failures, which spec §7 says are logged, never returned to
// a caller: Send/Recv failures are swallowed by the engine and recovered via
// RTPS's own retransmission, so this type carries no Kind and is never
// wrapped into *Error.
type NetworkError struct {
	Operation string
	Err       error
	Details   string
}

func (e *NetworkError) Error() string {
	msg := "network: " + e.Operation
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }
