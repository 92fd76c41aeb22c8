// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/token"
)

// SessionTTL is the fixed session token lifetime. Callers cannot supply
// their own ttl.
const SessionTTL = 20 * time.Minute

// dummyPasswordHash is used when a user doesn't exist to prevent timing
// attacks: the unknown-username path still runs a full argon2id
// verification so it costs the same as a wrong-password attempt. This is
// NOT a real credential and will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// AuthService verifies username/password pairs against the user store and
// mints session tokens.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	codec  *token.Codec
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserRepository, hasher PasswordHasher, codec *token.Codec) (*AuthService, error) {
	if users == nil {
		return nil, oops.Code("IDENTITY_NIL_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("IDENTITY_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("IDENTITY_NIL_DEPENDENCY").Errorf("token codec is required")
	}
	return &AuthService{users: users, hasher: hasher, codec: codec}, nil
}

// Register creates a new account with a hashed credential.
// Returns ErrConflict if the username or email is already taken.
func (s *AuthService) Register(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, oops.Code("IDENTITY_REGISTER_FAILED").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// Authenticate verifies a username/password pair. Both the
// unknown-username and wrong-password paths perform exactly one hash
// verification and return the same ErrInvalidCredentials, so neither
// timing nor the error reveals which factor was wrong.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("IDENTITY_AUTH_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, oops.Code("IDENTITY_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("IDENTITY_AUTH_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return nil, oops.Code("IDENTITY_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}
	return user, nil
}

// IssueSession mints a session token for the user with the fixed TTL.
func (s *AuthService) IssueSession(user *User) (string, error) {
	if user == nil {
		return "", oops.Code("IDENTITY_NIL_USER").Errorf("user is required")
	}
	signed, err := s.codec.Issue(token.Claims{Username: user.Username, UserID: user.ID}, SessionTTL)
	if err != nil {
		return "", oops.Code("IDENTITY_ISSUE_SESSION_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}
	return signed, nil
}

// ChangePassword rotates a user's credential after verifying the current
// one. Returns ErrInvalidCredentials if the current password is wrong.
func (s *AuthService) ChangePassword(ctx context.Context, user *User, current, next string) error {
	valid, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return oops.Code("IDENTITY_AUTH_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		return oops.Code("IDENTITY_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("IDENTITY_PASSWORD_UPDATE_FAILED").
			With("user_id", user.ID).
			Wrap(err)
	}
	return nil
}
