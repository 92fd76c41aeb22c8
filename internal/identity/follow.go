// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package identity

import "context"

// FollowRepository owns the directed follow edge set. Edges are add/remove
// only and carry no payload. The store enforces the graph invariants:
// an edge never points at its own source, the (follower, followee) pair is
// unique, and both endpoints must exist at insertion time. Duplicate
// detection relies on the store's uniqueness constraint rather than a
// check-then-insert, so concurrent adds of the same pair cannot both
// succeed.
type FollowRepository interface {
	// Add creates the edge follower -> followee. Returns ErrSelfFollow if
	// the ids are equal, ErrAlreadyFollowing if the edge exists, and
	// ErrNotFound if either endpoint does not.
	Add(ctx context.Context, followerID, followeeID int64) error

	// Remove deletes the edge follower -> followee. Returns ErrNotFound
	// if either endpoint does not exist and ErrNotFollowing if both exist
	// but the edge does not.
	Remove(ctx context.Context, followerID, followeeID int64) error

	// Following returns the users that id follows, ordered by edge age.
	// Returns ErrNotFound if id does not resolve to a user.
	Following(ctx context.Context, id int64) ([]*User, error)

	// Followers returns the users that follow id, ordered by edge age.
	// Returns ErrNotFound if id does not resolve to a user.
	Followers(ctx context.Context, id int64) ([]*User, error)

	// IsFollowing reports whether the edge follower -> followee exists.
	// Returns ErrNotFound if either endpoint does not exist, rather than
	// silently reporting false.
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)
}
