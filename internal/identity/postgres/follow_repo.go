// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/identity"
)

// FollowRepository implements identity.FollowRepository using PostgreSQL.
//
// Duplicate edges are ruled out by the follows primary key, not by an
// application-level existence check, so two concurrent Add calls for the
// same pair race safely: one succeeds, the other sees a uniqueness
// violation and reports ErrAlreadyFollowing.
type FollowRepository struct {
	db db
}

// NewFollowRepository creates a new FollowRepository.
func NewFollowRepository(db db) *FollowRepository {
	return &FollowRepository{db: db}
}

// Add creates the edge follower -> followee.
func (r *FollowRepository) Add(ctx context.Context, followerID, followeeID int64) error {
	// Rejected before touching the store so the outcome does not depend
	// on whether the user exists.
	if followerID == followeeID {
		return oops.Code("FOLLOW_SELF").
			With("id", followerID).
			Wrap(identity.ErrSelfFollow)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
	`, followerID, followeeID)
	if err != nil {
		switch {
		case isUniqueViolation(err, ""):
			return oops.Code("FOLLOW_DUPLICATE").
				With("follower_id", followerID).
				With("followee_id", followeeID).
				Wrap(identity.ErrAlreadyFollowing)
		case isForeignKeyViolation(err):
			return oops.Code("FOLLOW_ENDPOINT_MISSING").
				With("follower_id", followerID).
				With("followee_id", followeeID).
				Wrap(identity.ErrNotFound)
		case isCheckViolation(err):
			// Schema backstop for the guard above.
			return oops.Code("FOLLOW_SELF").
				With("id", followerID).
				Wrap(identity.ErrSelfFollow)
		}
		return oops.Code("FOLLOW_ADD_FAILED").
			With("operation", "insert follow edge").
			With("follower_id", followerID).
			With("followee_id", followeeID).
			Wrap(err)
	}
	return nil
}

// Remove deletes the edge follower -> followee.
func (r *FollowRepository) Remove(ctx context.Context, followerID, followeeID int64) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM follows
		WHERE follower_id = $1 AND followee_id = $2
	`, followerID, followeeID)
	if err != nil {
		return oops.Code("FOLLOW_REMOVE_FAILED").
			With("operation", "delete follow edge").
			With("follower_id", followerID).
			With("followee_id", followeeID).
			Wrap(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing deleted: distinguish a missing endpoint from a missing edge.
	for _, id := range []int64{followerID, followeeID} {
		exists, err := r.userExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return oops.Code("FOLLOW_ENDPOINT_MISSING").
				With("id", id).
				Wrap(identity.ErrNotFound)
		}
	}
	return oops.Code("FOLLOW_EDGE_MISSING").
		With("follower_id", followerID).
		With("followee_id", followeeID).
		Wrap(identity.ErrNotFollowing)
}

// Following returns the users that id follows.
func (r *FollowRepository) Following(ctx context.Context, id int64) ([]*identity.User, error) {
	if err := r.requireUser(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT u.`+joinUserColumns+`
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at
	`, id)
	if err != nil {
		return nil, oops.Code("FOLLOW_LIST_FAILED").
			With("operation", "query following").
			With("id", id).
			Wrap(err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Followers returns the users that follow id.
func (r *FollowRepository) Followers(ctx context.Context, id int64) ([]*identity.User, error) {
	if err := r.requireUser(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT u.`+joinUserColumns+`
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at
	`, id)
	if err != nil {
		return nil, oops.Code("FOLLOW_LIST_FAILED").
			With("operation", "query followers").
			With("id", id).
			Wrap(err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// IsFollowing reports whether the edge follower -> followee exists.
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	if err := r.requireUser(ctx, followerID); err != nil {
		return false, err
	}
	if followeeID != followerID {
		if err := r.requireUser(ctx, followeeID); err != nil {
			return false, err
		}
	}

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM follows
			WHERE follower_id = $1 AND followee_id = $2
		)
	`, followerID, followeeID).Scan(&exists)
	if err != nil {
		return false, oops.Code("FOLLOW_CHECK_FAILED").
			With("operation", "check follow edge").
			With("follower_id", followerID).
			With("followee_id", followeeID).
			Wrap(err)
	}
	return exists, nil
}

// joinUserColumns lists user columns with an explicit alias prefix slot;
// kept in sync with userColumns in user_repo.go.
const joinUserColumns = `id, u.username, u.password_hash, u.email, u.first_name, u.last_name, u.avatar_url, u.bio, u.created_at, u.updated_at`

// userExists reports whether a user row exists.
func (r *FollowRepository) userExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, oops.Code("FOLLOW_USER_LOOKUP_FAILED").
			With("operation", "check user exists").
			With("id", id).
			Wrap(err)
	}
	return exists, nil
}

// requireUser returns ErrNotFound unless the user exists.
func (r *FollowRepository) requireUser(ctx context.Context, id int64) error {
	exists, err := r.userExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(identity.ErrNotFound)
	}
	return nil
}
