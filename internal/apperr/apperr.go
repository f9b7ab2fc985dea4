// Package apperr defines the error taxonomy shared by the store, the project
// service, and the HTTP layer. Storage driver errors are folded into these
// sentinels at the store boundary so callers only ever match on errors.Is.
package apperr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrUnauthenticated means no user identity was present in the request
	// context. The HTTP layer renders it as a redirect-to-sign-in.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoActiveTenant means the user is authenticated but has no
	// organization selected.
	ErrNoActiveTenant = errors.New("no active organization")

	// ErrNotFound means the referenced entity does not exist or does not
	// belong to the caller's organization. The two cases are deliberately
	// indistinguishable so a guessed id leaks nothing across tenants.
	ErrNotFound = errors.New("not found")

	// ErrConflict is a uniqueness or foreign-key violation reported by the
	// store. Callers treat it as the conflict-resolution signal rather than
	// pre-checking, so concurrent duplicate writes settle on exactly one
	// winner.
	ErrConflict = errors.New("constraint violation")

	// ErrInvalid marks input rejected before any write was attempted.
	ErrInvalid = errors.New("invalid input")
)

// Classify maps GORM sentinels and raw PostgreSQL driver errors onto the
// taxonomy. Anything unrecognised passes through unchanged and is treated as
// fatal to the current request only.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrConflict
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation,
			pgerrcode.ForeignKeyViolation,
			pgerrcode.NotNullViolation,
			pgerrcode.CheckViolation,
			pgerrcode.ExclusionViolation:
			return ErrConflict
		}
	}
	return err
}
