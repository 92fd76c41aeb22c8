// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package identity

import "errors"

// Sentinel errors for the caller-facing outcome taxonomy. Services and
// repositories wrap these with oops codes; callers branch with errors.Is.
var (
	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned for both unknown-username and
	// wrong-password failures. The two cases are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated is returned when a session token is missing,
	// malformed, expired, or no longer resolves to a live user.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSelfFollow is returned when a user attempts to follow themselves.
	ErrSelfFollow = errors.New("cannot follow self")

	// ErrAlreadyFollowing is returned when the follow edge already exists.
	ErrAlreadyFollowing = errors.New("already following")

	// ErrNotFollowing is returned when unfollowing an edge that does not exist.
	ErrNotFollowing = errors.New("not following")

	// ErrInvalidArgument is returned for malformed input such as an
	// invalid username or an empty password.
	ErrInvalidArgument = errors.New("invalid argument")
)
