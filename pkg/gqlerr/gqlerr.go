// Package gqlerr defines the stable error taxonomy exposed across GraphLite's
// coordinator boundary.
//
// Every error that escapes the lexer, parser, planner, executor, storage
// manager or session/transaction manager is (or wraps) one of the Kinds
// below. Each carries a stable code, a human-readable message and, where
// meaningful, a source location: a (line, column) span for parse/semantic
// errors, an operator name for execution errors, or an entity id for
// storage errors.
package gqlerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the taxonomy's error classes.
type Kind string

const (
	KindSyntax             Kind = "SyntaxError"
	KindSemantic           Kind = "SemanticError"
	KindType               Kind = "TypeError"
	KindNotFound           Kind = "NotFound"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindConflict           Kind = "Conflict"
	KindTimeout            Kind = "Timeout"
	KindCorruption         Kind = "Corruption"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindInternal           Kind = "Internal"
)

// Location pinpoints where an error originated.
//
// For parse/semantic errors, Line/Column/Token describe a source span. For
// execution errors, Operator names the physical operator that failed. For
// storage errors, EntityID names the node/edge/key involved. Zero values
// mean "not applicable" and are omitted by Error().
type Location struct {
	Line     int
	Column   int
	Token    string
	Operator string
	EntityID string
}

func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Token != "":
		return fmt.Sprintf("line %d, column %d, near %q", l.Line, l.Column, l.Token)
	case l.Line > 0:
		return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
	case l.Operator != "":
		return fmt.Sprintf("operator %s", l.Operator)
	case l.EntityID != "":
		return fmt.Sprintf("entity %s", l.EntityID)
	default:
		return ""
	}
}

// Error is the concrete type behind every taxonomy member. Callers should
// match on Kind via errors.As/Is rather than type-asserting concrete
// constructors.
type Error struct {
	Kind     Kind
	Message  string
	Loc      Location
	Expected []string // parser: human-readable expectation list
	Wrapped  error
}

func (e *Error) Error() string {
	loc := e.Loc.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, loc)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Code returns the stable taxonomy code for this error.
func (e *Error) Code() string { return string(e.Kind) }

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing error, keeping
// it reachable via errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// At attaches a source location and returns the same error for chaining.
func (e *Error) At(loc Location) *Error {
	e.Loc = loc
	return e
}

// WithExpected attaches the parser's expectation list.
func (e *Error) WithExpected(tokens ...string) *Error {
	e.Expected = tokens
	return e
}

// Is reports whether err carries the given Kind, looking through wraps.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindInternal if err isn't a tagged
// Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Convenience constructors used throughout the core.

func Syntax(loc Location, format string, args ...any) *Error {
	return New(KindSyntax, format, args...).At(loc)
}

func Semantic(loc Location, format string, args ...any) *Error {
	return New(KindSemantic, format, args...).At(loc)
}

func TypeErr(format string, args ...any) *Error {
	return New(KindType, format, args...)
}

func NotFound(entityID string) *Error {
	return New(KindNotFound, "%s not found", entityID).At(Location{EntityID: entityID})
}

func AlreadyExists(entityID string) *Error {
	return New(KindAlreadyExists, "%s already exists", entityID).At(Location{EntityID: entityID})
}

func PermissionDenied(format string, args ...any) *Error {
	return New(KindPermissionDenied, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Timeout(format string, args ...any) *Error {
	return New(KindTimeout, format, args...)
}

func Corruption(entityID string, err error) *Error {
	return Wrap(KindCorruption, err, "corrupted value for %s", entityID).At(Location{EntityID: entityID})
}

func StorageUnavailable(err error) *Error {
	return Wrap(KindStorageUnavailable, err, "storage unavailable")
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, format, args...)
}
