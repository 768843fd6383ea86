// Package sqlerr defines the error taxonomy shared by the lexer, parser,
// executor and storage layers.
//
// Every error carries a Kind so callers can branch with errors.Is against the
// sentinel values below:
//
//	if errors.Is(err, sqlerr.ErrConstraint) { ... }
package sqlerr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind uint8

const (
	KindLex Kind = iota + 1
	KindParse
	KindSchema
	KindType
	KindConstraint
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "LexError"
	case KindParse:
		return "ParseError"
	case KindSchema:
		return "SchemaError"
	case KindType:
		return "TypeError"
	case KindConstraint:
		return "ConstraintViolation"
	case KindStorage:
		return "StorageError"
	default:
		return "Error"
	}
}

// Sentinels for errors.Is. They carry no message.
var (
	ErrLex        = &Error{Kind: KindLex}
	ErrParse      = &Error{Kind: KindParse}
	ErrSchema     = &Error{Kind: KindSchema}
	ErrType       = &Error{Kind: KindType}
	ErrConstraint = &Error{Kind: KindConstraint}
	ErrStorage    = &Error{Kind: KindStorage}
)

// Error is a classified engine error. Line and Column are 1-based and only
// set for lexer and parser errors.
type Error struct {
	Kind    Kind
	Message string
	Line    int
	Column  int
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d, column %d", msg, e.Line, e.Column)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels by kind. Two concrete errors match only when they are
// the same pointer.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Cause == nil && t.Line == 0 {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ---- constructors ----

func Lexf(line, col int, format string, args ...any) *Error {
	return &Error{Kind: KindLex, Message: fmt.Sprintf(format, args...), Line: line, Column: col}
}

func Parsef(line, col int, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...), Line: line, Column: col}
}

func Schemaf(format string, args ...any) *Error {
	return &Error{Kind: KindSchema, Message: fmt.Sprintf(format, args...)}
}

func Typef(format string, args ...any) *Error {
	return &Error{Kind: KindType, Message: fmt.Sprintf(format, args...)}
}

func Constraintf(format string, args ...any) *Error {
	return &Error{Kind: KindConstraint, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps an I/O or encoding failure.
func Storage(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Cause: cause}
}
