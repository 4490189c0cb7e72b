// Package cdserr defines the error kinds raised across the mapping and
// extraction pipelines, each tagged with the scope at which it occurred.
package cdserr

import "fmt"

// Scope identifies the stage of the pipeline an error was raised from.
type Scope string

const (
	ScopeRun      Scope = "run"
	ScopeMapping  Scope = "mapping"
	ScopeRow      Scope = "row"
	ScopeResource Scope = "resource"
)

// Kind enumerates the distinct error conditions the toolbox can raise.
type Kind string

const (
	ConfigMissing    Kind = "CONFIG_MISSING"
	UnknownTable     Kind = "UNKNOWN_TABLE"
	UnknownProcessor Kind = "UNKNOWN_PROCESSOR"
	UnknownStrategy  Kind = "UNKNOWN_STRATEGY"
	MissingColumn    Kind = "MISSING_COLUMN"
	ProcessorFailure Kind = "PROCESSOR_FAILURE"
	BadTimestamp     Kind = "BAD_TIMESTAMP"
	TransportFailure Kind = "TRANSPORT_FAILURE"
	EmptyTable       Kind = "EMPTY_TABLE"
	BadLine          Kind = "BAD_LINE"
)

// Error is the toolbox's error type: a Kind and a Scope, plus whatever
// context and cause led to it.
type Error struct {
	Kind    Kind
	Scope   Scope
	Msg     string
	Subject string // table name, processor name, column name, etc.
	Cause   error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	subject := e.Subject
	if subject != "" {
		subject = fmt.Sprintf(" %q", subject)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]%s: %s: %v", e.Kind, e.Scope, subject, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s[%s]%s: %s", e.Kind, e.Scope, subject, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no subject or cause.
func New(kind Kind, scope Scope, msg string) *Error {
	return &Error{Kind: kind, Scope: scope, Msg: msg}
}

// Wrap constructs an Error around a cause, naming the subject it concerns.
func Wrap(kind Kind, scope Scope, subject, msg string, cause error) *Error {
	return &Error{Kind: kind, Scope: scope, Subject: subject, Msg: msg, Cause: cause}
}

// Is reports whether err is an *Error of the given kind, honoring wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
