// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package postgres implements the identity repositories over PostgreSQL.
// Graph invariants live in the schema: unique indexes on username, email,
// and the follow pair, a self-follow check constraint, and foreign keys on
// both edge endpoints. Constraint violations are translated back into the
// domain error taxonomy.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db abstracts query execution so repositories work against both
// *pgxpool.Pool and pgxmock in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgErrCode returns the PostgreSQL error code if err is a PgError.
func pgErrCode(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// isUniqueViolation reports whether err is a uniqueness-constraint
// violation, optionally on the named constraint.
func isUniqueViolation(err error, constraintName string) bool {
	code, constraint, ok := pgErrCode(err)
	if !ok || code != pgerrcode.UniqueViolation {
		return false
	}
	return constraintName == "" || constraint == constraintName
}

// isForeignKeyViolation reports whether err is a foreign-key violation.
func isForeignKeyViolation(err error) bool {
	code, _, ok := pgErrCode(err)
	return ok && code == pgerrcode.ForeignKeyViolation
}

// isCheckViolation reports whether err is a check-constraint violation.
func isCheckViolation(err error) bool {
	code, _, ok := pgErrCode(err)
	return ok && code == pgerrcode.CheckViolation
}
