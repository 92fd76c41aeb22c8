// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/identity"
)

// Constraint names from the users table schema.
const (
	usernameUniqueConstraint = "users_username_key"
	emailUniqueConstraint    = "users_email_key"
)

const userColumns = `id, username, password_hash, email, first_name, last_name, avatar_url, bio, created_at, updated_at`

// UserRepository implements identity.UserRepository using PostgreSQL.
type UserRepository struct {
	db db
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db db) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. The database assigns the id and timestamps,
// which are written back into user.
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, first_name, last_name, avatar_url, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Bio,
	)

	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err, usernameUniqueConstraint) {
			return oops.Code("USER_USERNAME_TAKEN").
				With("username", user.Username).
				Wrap(identity.ErrConflict)
		}
		if isUniqueViolation(err, emailUniqueConstraint) {
			return oops.Code("USER_EMAIL_TAKEN").Wrap(identity.ErrConflict)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// List returns all users ordered by ID.
func (r *UserRepository) List(ctx context.Context) ([]*identity.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "query users").
			Wrap(err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// UpdateProfile applies a partial update: nil fields keep their stored
// value via COALESCE, so the statement is the same shape regardless of
// which fields are supplied.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update identity.ProfileUpdate) (*identity.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET
			email      = COALESCE($2, email),
			first_name = COALESCE($3, first_name),
			last_name  = COALESCE($4, last_name),
			avatar_url = COALESCE($5, avatar_url),
			bio        = COALESCE($6, bio),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`,
		id,
		update.Email,
		update.FirstName,
		update.LastName,
		update.AvatarURL,
		update.Bio,
	)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err, emailUniqueConstraint) {
			return nil, oops.Code("USER_EMAIL_TAKEN").Wrap(identity.ErrConflict)
		}
		return nil, oops.Code("USER_UPDATE_PROFILE_FAILED").
			With("operation", "update profile").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Follow edges referencing the user are removed by
// the schema's ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanUser scans a single user row.
func scanUser(row pgx.Row) (*identity.User, error) {
	var u identity.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.AvatarURL,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// collectUsers drains rows into a slice of users.
func collectUsers(rows pgx.Rows) ([]*identity.User, error) {
	var users []*identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.With("operation", "scan user row").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate user rows").Wrap(err)
	}
	return users, nil
}
