// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package identity

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is an identity record. ID is assigned by the store at creation and
// immutable afterwards, as is Username. PasswordHash is the only stored
// form of the credential; plaintext never leaves the authentication path.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        *string
	FirstName    *string
	LastName     *string
	AvatarURL    *string
	Bio          *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched; there is no way to null out a field through this type.
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	AvatarURL *string
	Bio       *string
}

// IsZero reports whether the update changes nothing.
func (u ProfileUpdate) IsZero() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil &&
		u.AvatarURL == nil && u.Bio == nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			Wrapf(ErrInvalidArgument, "username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Wrapf(ErrInvalidArgument, "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrapf(ErrInvalidArgument, "username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("IDENTITY_INVALID_USERNAME").
			Wrapf(ErrInvalidArgument, "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// UserRepository manages user persistence. Uniqueness of username and
// email is enforced by the store, not by callers; Create surfaces a
// violation as ErrConflict.
type UserRepository interface {
	// Create stores a new user and fills in ID, CreatedAt, and UpdatedAt.
	// Returns ErrConflict if the username or email is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retrieves a user by exact username.
	// Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users ordered by ID.
	List(ctx context.Context) ([]*User, error)

	// UpdateProfile applies a partial profile update and returns the
	// updated record. Returns ErrNotFound if the user does not exist and
	// ErrConflict if the new email is already taken.
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrNotFound if the user does not exist.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// Delete removes a user and, via the store's cascade, their follow
	// edges. Returns ErrNotFound if the user does not exist.
	Delete(ctx context.Context, id int64) error
}
