// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package identity

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/token"
)

// SessionResolver validates a bearer token and resolves it to a live
// identity. It is the single gate every protected operation passes
// through, called fresh on every request; the token is a capability, not
// a trust anchor, so the subject is always re-resolved against the store.
type SessionResolver struct {
	users UserRepository
	codec *token.Codec
}

// NewSessionResolver creates a SessionResolver.
func NewSessionResolver(users UserRepository, codec *token.Codec) (*SessionResolver, error) {
	if users == nil {
		return nil, oops.Code("IDENTITY_NIL_DEPENDENCY").Errorf("user repository is required")
	}
	if codec == nil {
		return nil, oops.Code("IDENTITY_NIL_DEPENDENCY").Errorf("token codec is required")
	}
	return &SessionResolver{users: users, codec: codec}, nil
}

// Resolve verifies the token and looks up its subject. Every failure
// (bad signature, expiry, missing claims, or a subject that no longer
// exists) collapses to ErrUnauthenticated.
func (r *SessionResolver) Resolve(ctx context.Context, tokenString string) (*User, error) {
	claims, err := r.codec.Verify(tokenString)
	if err != nil {
		return nil, oops.Code("IDENTITY_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
	}

	user, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("IDENTITY_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
		}
		return nil, oops.Code("IDENTITY_RESOLVE_FAILED").
			With("user_id", claims.UserID).
			Wrap(err)
	}
	return user, nil
}
