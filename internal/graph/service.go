// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package graph is the policy layer over the follow edge set. Mutations
// take the resolved caller as the acting user rather than a
// client-supplied id, so a request cannot follow or unfollow on someone
// else's behalf.
package graph

import (
	"context"

	"github.com/samber/oops"

	"github.com/pipit-social/pipit/internal/identity"
)

// Service exposes authorization-aware follow operations.
type Service struct {
	follows identity.FollowRepository
}

// NewService creates a graph Service.
func NewService(follows identity.FollowRepository) (*Service, error) {
	if follows == nil {
		return nil, oops.Code("GRAPH_NIL_DEPENDENCY").Errorf("follow repository is required")
	}
	return &Service{follows: follows}, nil
}

// Follow creates the edge actor -> target. The actor is always the
// resolved caller.
func (s *Service) Follow(ctx context.Context, actor *identity.User, targetID int64) error {
	if actor == nil {
		return oops.Code("GRAPH_NIL_ACTOR").Errorf("actor is required")
	}
	return s.follows.Add(ctx, actor.ID, targetID)
}

// Unfollow removes the edge actor -> target.
func (s *Service) Unfollow(ctx context.Context, actor *identity.User, targetID int64) error {
	if actor == nil {
		return oops.Code("GRAPH_NIL_ACTOR").Errorf("actor is required")
	}
	return s.follows.Remove(ctx, actor.ID, targetID)
}

// Followers returns the users following id. Public read, no actor.
func (s *Service) Followers(ctx context.Context, id int64) ([]*identity.User, error) {
	return s.follows.Followers(ctx, id)
}

// Following returns the users id follows. Public read, no actor.
func (s *Service) Following(ctx context.Context, id int64) ([]*identity.User, error) {
	return s.follows.Following(ctx, id)
}

// CheckFollowing reports whether actor follows target.
func (s *Service) CheckFollowing(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.follows.IsFollowing(ctx, actorID, targetID)
}
