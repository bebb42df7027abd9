// Package fault defines the failure kinds a resolution run can end with.
// Every failure that crosses a component boundary is an *Error carrying its
// Kind, so hosts can branch with errors.Is against the Err* sentinels.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// SpecNotFound: a referenced variable has no declaration.
	SpecNotFound Kind = iota + 1
	// MalformedSpec: a declaration is not a mapping or lacks a name.
	MalformedSpec
	// UnresolvableExpression: template evaluation did not converge.
	UnresolvableExpression
	// Aborted: the operator sent the interrupt sequence.
	Aborted
	// NotInteractive: prompting was attempted without a terminal.
	NotInteractive
	// PersistenceFailure: the fact artifact could not be written.
	PersistenceFailure
)

func (k Kind) String() string {
	switch k {
	case SpecNotFound:
		return "spec-not-found"
	case MalformedSpec:
		return "malformed-spec"
	case UnresolvableExpression:
		return "unresolvable-expression"
	case Aborted:
		return "aborted"
	case NotInteractive:
		return "not-interactive"
	case PersistenceFailure:
		return "persistence-failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrSpecNotFound           = &Error{Kind: SpecNotFound}
	ErrMalformedSpec          = &Error{Kind: MalformedSpec}
	ErrUnresolvableExpression = &Error{Kind: UnresolvableExpression}
	ErrAborted                = &Error{Kind: Aborted}
	ErrNotInteractive         = &Error{Kind: NotInteractive}
	ErrPersistenceFailure     = &Error{Kind: PersistenceFailure}
)

// Error is a structured failure. Partial holds the fact set as it stood when
// the failure happened; it is informational only and never persisted.
type Error struct {
	Kind    Kind
	Name    string // variable involved, if any
	Expr    string // expression involved, if any
	Msg     string
	Err     error
	Partial map[string]any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.defaultMessage()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) defaultMessage() string {
	switch e.Kind {
	case SpecNotFound:
		return fmt.Sprintf("%s not found in vars", e.Name)
	case MalformedSpec:
		if e.Name != "" {
			return fmt.Sprintf("variable %s is malformed", e.Name)
		}
		return "malformed variable declaration"
	case UnresolvableExpression:
		return "could not render: " + e.Expr
	case Aborted:
		return "user requested abort!"
	case NotInteractive:
		return "not waiting for response to prompt as stdin is not interactive"
	case PersistenceFailure:
		return "could not persist facts"
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is regardless of the other fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// WithPartial records a copy of the partial fact set on the first *Error in
// err's chain. err is returned as is.
func WithPartial(err error, partial map[string]any) error {
	var fe *Error
	if !errors.As(err, &fe) || fe.Partial != nil {
		return err
	}
	cp := make(map[string]any, len(partial))
	for k, v := range partial {
		cp[k] = v
	}
	fe.Partial = cp
	return err
}
