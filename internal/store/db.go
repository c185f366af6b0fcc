package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wallet/internal/apperr"
	"wallet/internal/db"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is satisfied by *sqlx.DB and *sqlx.Tx.
type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
}

// translate maps driver errors onto the apperr taxonomy and prefixes op.
func translate(op, entity string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, apperr.NotFound("%s not found", entity))
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, apperr.Conflict("%s already exists", entity))
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, apperr.NotFound("wallet not found"))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
