// Package fault classifies domain failures so that every layer can tell a bad
// request from a lost race without string matching.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindPermission     Kind = "permission"
	KindImmutableField Kind = "immutable_field"
	KindNotFound       Kind = "not_found"
	KindTransition     Kind = "transition"
)

// Sentinels matched through errors.Is for any *Error of the same kind.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrPermission     = errors.New("permission denied")
	ErrImmutableField = errors.New("immutable field")
	ErrNotFound       = errors.New("not found")
	ErrTransition     = errors.New("illegal transition")
)

var sentinels = map[Kind]error{
	KindValidation:     ErrValidation,
	KindConflict:       ErrConflict,
	KindPermission:     ErrPermission,
	KindImmutableField: ErrImmutableField,
	KindNotFound:       ErrNotFound,
	KindTransition:     ErrTransition,
}

// Error carries the kind, the offending field (may be empty) and the violated rule.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, msg)
	}
	return msg
}

// Message is the rule description without the field prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return sentinels[e.Kind].Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func New(kind Kind, field string, err error) *Error {
	if err == nil {
		err = sentinels[kind]
	}
	return &Error{Kind: kind, Field: field, Err: err}
}

func Validation(field string, err error) *Error     { return New(KindValidation, field, err) }
func Conflict(field string, err error) *Error       { return New(KindConflict, field, err) }
func Permission(field string, err error) *Error     { return New(KindPermission, field, err) }
func ImmutableField(field string, err error) *Error { return New(KindImmutableField, field, err) }
func NotFound(field string, err error) *Error       { return New(KindNotFound, field, err) }
func Transition(field string, err error) *Error     { return New(KindTransition, field, err) }

// As extracts the outermost classified error.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf reports the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return ""
}
