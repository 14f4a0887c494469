// Package apperr defines the error kinds surfaced by the API and translates
// them into HTTP responses.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Service code wraps one of these so handlers and the global
// error handler can pick a status code with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries a client-safe message and the kind it belongs to.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newError(ErrUnauthorized, format, args...)
}

// NotFoundIfNoRows converts pgx.ErrNoRows into a not-found error naming the
// missing entity. Other errors pass through unchanged.
func NotFoundIfNoRows(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("%s not found", entity)
	}
	return err
}

// InUse converts a foreign key violation raised by a delete into a conflict
// naming the entity that is still referenced.
func InUse(err error, entity string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return Conflict("%s is still referenced by other records", entity)
	}
	return err
}

// Duplicate converts a unique violation into a conflict carrying msg.
func Duplicate(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return Conflict("%s", msg)
	}
	return err
}

// Is reports whether err belongs to the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
