// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pipit-social/pipit/internal/identity"
)

// errorBody is the uniform JSON error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain outcome to its status code. Unrecognized
// errors become a generic 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated"})
	case errors.Is(err, identity.ErrSelfFollow):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: identity.ErrSelfFollow.Error()})
	case errors.Is(err, identity.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, identity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: identity.ErrNotFound.Error()})
	case errors.Is(err, identity.ErrConflict),
		errors.Is(err, identity.ErrAlreadyFollowing),
		errors.Is(err, identity.ErrNotFollowing):
		writeJSON(w, http.StatusConflict, errorBody{Error: conflictMessage(err)})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrAlreadyFollowing):
		return identity.ErrAlreadyFollowing.Error()
	case errors.Is(err, identity.ErrNotFollowing):
		return identity.ErrNotFollowing.Error()
	default:
		return identity.ErrConflict.Error()
	}
}

// userResponse is the public user projection. The password hash never
// appears in a response body.
type userResponse struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

func toUserResponse(u *identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
	}
}

func toUserResponses(users []*identity.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}
