// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipit-social/pipit/internal/identity"
)

// Stub services with overridable behavior per test.

type stubAuth struct {
	registerFn       func(ctx context.Context, username, password string) (*identity.User, error)
	authenticateFn   func(ctx context.Context, username, password string) (*identity.User, error)
	issueSessionFn   func(user *identity.User) (string, error)
	changePasswordFn func(ctx context.Context, user *identity.User, current, next string) error
}

func (s *stubAuth) Register(ctx context.Context, username, password string) (*identity.User, error) {
	return s.registerFn(ctx, username, password)
}

func (s *stubAuth) Authenticate(ctx context.Context, username, password string) (*identity.User, error) {
	return s.authenticateFn(ctx, username, password)
}

func (s *stubAuth) IssueSession(user *identity.User) (string, error) {
	return s.issueSessionFn(user)
}

func (s *stubAuth) ChangePassword(ctx context.Context, user *identity.User, current, next string) error {
	return s.changePasswordFn(ctx, user, current, next)
}

type stubResolver struct {
	resolveFn func(ctx context.Context, token string) (*identity.User, error)
}

func (s *stubResolver) Resolve(ctx context.Context, token string) (*identity.User, error) {
	return s.resolveFn(ctx, token)
}

type stubGraph struct {
	followFn    func(ctx context.Context, actor *identity.User, targetID int64) error
	unfollowFn  func(ctx context.Context, actor *identity.User, targetID int64) error
	followersFn func(ctx context.Context, id int64) ([]*identity.User, error)
	followingFn func(ctx context.Context, id int64) ([]*identity.User, error)
	checkFn     func(ctx context.Context, actorID, targetID int64) (bool, error)
}

func (s *stubGraph) Follow(ctx context.Context, actor *identity.User, targetID int64) error {
	return s.followFn(ctx, actor, targetID)
}

func (s *stubGraph) Unfollow(ctx context.Context, actor *identity.User, targetID int64) error {
	return s.unfollowFn(ctx, actor, targetID)
}

func (s *stubGraph) Followers(ctx context.Context, id int64) ([]*identity.User, error) {
	return s.followersFn(ctx, id)
}

func (s *stubGraph) Following(ctx context.Context, id int64) ([]*identity.User, error) {
	return s.followingFn(ctx, id)
}

func (s *stubGraph) CheckFollowing(ctx context.Context, actorID, targetID int64) (bool, error) {
	return s.checkFn(ctx, actorID, targetID)
}

type stubDirectory struct {
	getByIDFn       func(ctx context.Context, id int64) (*identity.User, error)
	listFn          func(ctx context.Context) ([]*identity.User, error)
	updateProfileFn func(ctx context.Context, id int64, update identity.ProfileUpdate) (*identity.User, error)
}

func (s *stubDirectory) GetByID(ctx context.Context, id int64) (*identity.User, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubDirectory) List(ctx context.Context) ([]*identity.User, error) {
	return s.listFn(ctx)
}

func (s *stubDirectory) UpdateProfile(ctx context.Context, id int64, update identity.ProfileUpdate) (*identity.User, error) {
	return s.updateProfileFn(ctx, id, update)
}

var alice = &identity.User{ID: 1, Username: "alice", PasswordHash: "$argon2id$secret"}

// sessionResolver accepts exactly the token "valid-token" as alice.
func sessionResolver() *stubResolver {
	return &stubResolver{
		resolveFn: func(_ context.Context, token string) (*identity.User, error) {
			if token == "valid-token" {
				return alice, nil
			}
			return nil, identity.ErrUnauthenticated
		},
	}
}

type serverStubs struct {
	auth     *stubAuth
	resolver *stubResolver
	graph    *stubGraph
	users    *stubDirectory
}

func newTestServer(t *testing.T, stubs serverStubs) *Server {
	t.Helper()
	if stubs.auth == nil {
		stubs.auth = &stubAuth{}
	}
	if stubs.resolver == nil {
		stubs.resolver = sessionResolver()
	}
	if stubs.graph == nil {
		stubs.graph = &stubGraph{}
	}
	if stubs.users == nil {
		stubs.users = &stubDirectory{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer("127.0.0.1:0", logger, stubs.auth, stubs.resolver, stubs.graph, stubs.users, nil)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestNewServer_NilDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := &stubAuth{}
	resolver := sessionResolver()
	graph := &stubGraph{}
	users := &stubDirectory{}

	tests := []struct {
		name string
		fn   func() (*Server, error)
	}{
		{"nil logger", func() (*Server, error) {
			return NewServer(":0", nil, auth, resolver, graph, users, nil)
		}},
		{"nil authenticator", func() (*Server, error) {
			return NewServer(":0", logger, nil, resolver, graph, users, nil)
		}},
		{"nil resolver", func() (*Server, error) {
			return NewServer(":0", logger, auth, nil, graph, users, nil)
		}},
		{"nil social graph", func() (*Server, error) {
			return NewServer(":0", logger, auth, resolver, nil, users, nil)
		}},
		{"nil user directory", func() (*Server, error) {
			return NewServer(":0", logger, auth, resolver, graph, nil, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := tt.fn()
			require.Error(t, err)
			assert.Nil(t, srv)
		})
	}
}

func TestHandleRegister(t *testing.T) {
	t.Run("creates user and returns 201", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			registerFn: func(_ context.Context, username, password string) (*identity.User, error) {
				assert.Equal(t, "alice", username)
				assert.Equal(t, "password123", password)
				return alice, nil
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/register", "",
			map[string]string{"username": "alice", "password": "password123"})

		require.Equal(t, http.StatusCreated, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, float64(1), body["id"])
	})

	t.Run("taken username returns 409", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			registerFn: func(_ context.Context, _, _ string) (*identity.User, error) {
				return nil, identity.ErrConflict
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/register", "",
			map[string]string{"username": "alice", "password": "password123"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid username returns 400", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			registerFn: func(_ context.Context, _, _ string) (*identity.User, error) {
				return nil, identity.ErrInvalidArgument
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/register", "",
			map[string]string{"username": "x", "password": "password123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("response never contains the password hash", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			registerFn: func(_ context.Context, _, _ string) (*identity.User, error) {
				return alice, nil
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/register", "",
			map[string]string{"username": "alice", "password": "password123"})
		assert.NotContains(t, w.Body.String(), "argon2id")
		assert.NotContains(t, w.Body.String(), "password")
	})
}

func TestHandleToken(t *testing.T) {
	t.Run("valid credentials return bearer token and user", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			authenticateFn: func(_ context.Context, _, _ string) (*identity.User, error) {
				return alice, nil
			},
			issueSessionFn: func(user *identity.User) (string, error) {
				assert.Equal(t, alice, user)
				return "signed-token", nil
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/token", "",
			map[string]string{"username": "alice", "password": "password123"})

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			User        struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "signed-token", body.AccessToken)
		assert.Equal(t, "bearer", body.TokenType)
		assert.Equal(t, "alice", body.User.Username)
	})

	t.Run("invalid credentials return 401", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			authenticateFn: func(_ context.Context, _, _ string) (*identity.User, error) {
				return nil, identity.ErrInvalidCredentials
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/auth/token", "",
			map[string]string{"username": "alice", "password": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleMe(t *testing.T) {
	t.Run("valid session returns caller", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})

		w := doJSON(t, srv, http.MethodGet, "/auth/me", "valid-token", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["username"])
	})

	t.Run("missing authorization header returns 401", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token returns 401", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodGet, "/auth/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-bearer scheme returns 401", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleChangePassword(t *testing.T) {
	t.Run("rotates credential and returns 204", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			changePasswordFn: func(_ context.Context, user *identity.User, current, next string) error {
				assert.Equal(t, alice, user)
				assert.Equal(t, "oldpw", current)
				assert.Equal(t, "newpw", next)
				return nil
			},
		}})

		w := doJSON(t, srv, http.MethodPut, "/users/me/password", "valid-token",
			map[string]string{"current_password": "oldpw", "new_password": "newpw"})
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("wrong current password returns 401", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{auth: &stubAuth{
			changePasswordFn: func(_ context.Context, _ *identity.User, _, _ string) error {
				return identity.ErrInvalidCredentials
			},
		}})

		w := doJSON(t, srv, http.MethodPut, "/users/me/password", "valid-token",
			map[string]string{"current_password": "wrong", "new_password": "newpw"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("requires a session", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodPut, "/users/me/password", "",
			map[string]string{"current_password": "oldpw", "new_password": "newpw"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleFollow(t *testing.T) {
	t.Run("follows target as the session user", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followFn: func(_ context.Context, actor *identity.User, targetID int64) error {
				assert.Equal(t, alice, actor)
				assert.Equal(t, int64(2), targetID)
				return nil
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/users/2/follow", "valid-token", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("self follow returns 400", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followFn: func(_ context.Context, _ *identity.User, _ int64) error {
				return identity.ErrSelfFollow
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/users/1/follow", "valid-token", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate edge returns 409", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followFn: func(_ context.Context, _ *identity.User, _ int64) error {
				return identity.ErrAlreadyFollowing
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/users/2/follow", "valid-token", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing target returns 404", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followFn: func(_ context.Context, _ *identity.User, _ int64) error {
				return identity.ErrNotFound
			},
		}})

		w := doJSON(t, srv, http.MethodPost, "/users/99/follow", "valid-token", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("requires a session", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodPost, "/users/2/follow", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid id returns 400", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodPost, "/users/abc/follow", "valid-token", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleUnfollow(t *testing.T) {
	t.Run("removes edge and returns 204", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			unfollowFn: func(_ context.Context, actor *identity.User, targetID int64) error {
				assert.Equal(t, alice, actor)
				assert.Equal(t, int64(2), targetID)
				return nil
			},
		}})

		w := doJSON(t, srv, http.MethodDelete, "/users/2/follow", "valid-token", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("absent edge returns 409", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			unfollowFn: func(_ context.Context, _ *identity.User, _ int64) error {
				return identity.ErrNotFollowing
			},
		}})

		w := doJSON(t, srv, http.MethodDelete, "/users/2/follow", "valid-token", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHandleCheckFollowing(t *testing.T) {
	srv := newTestServer(t, serverStubs{graph: &stubGraph{
		checkFn: func(_ context.Context, actorID, targetID int64) (bool, error) {
			assert.Equal(t, int64(1), actorID)
			assert.Equal(t, int64(2), targetID)
			return true, nil
		},
	}})

	w := doJSON(t, srv, http.MethodGet, "/users/2/follow", "valid-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body["following"])
}

func TestHandleFollowersAndFollowing(t *testing.T) {
	bob := &identity.User{ID: 2, Username: "bob", PasswordHash: "$argon2id$secret"}

	t.Run("followers is public", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followersFn: func(_ context.Context, id int64) ([]*identity.User, error) {
				assert.Equal(t, int64(1), id)
				return []*identity.User{bob}, nil
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/1/followers", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "bob", body[0]["username"])
		assert.NotContains(t, w.Body.String(), "argon2id")
	})

	t.Run("following is public", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followingFn: func(_ context.Context, id int64) ([]*identity.User, error) {
				return []*identity.User{bob}, nil
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/1/following", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown user returns 404", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{graph: &stubGraph{
			followersFn: func(_ context.Context, _ int64) ([]*identity.User, error) {
				return nil, identity.ErrNotFound
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/99/followers", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleUsers(t *testing.T) {
	t.Run("list is public", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			listFn: func(_ context.Context) ([]*identity.User, error) {
				return []*identity.User{alice}, nil
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body, 1)
	})

	t.Run("get by id", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			getByIDFn: func(_ context.Context, id int64) (*identity.User, error) {
				assert.Equal(t, int64(1), id)
				return alice, nil
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/1", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			getByIDFn: func(_ context.Context, _ int64) (*identity.User, error) {
				return nil, identity.ErrNotFound
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/99", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unexpected store error returns 500 without details", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			getByIDFn: func(_ context.Context, _ int64) (*identity.User, error) {
				return nil, io.ErrUnexpectedEOF
			},
		}})

		w := doJSON(t, srv, http.MethodGet, "/users/1", "", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "internal error")
		assert.NotContains(t, w.Body.String(), "EOF")
	})
}

func TestHandleUpdateProfile(t *testing.T) {
	t.Run("updates the session user only", func(t *testing.T) {
		bio := "hello"
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			updateProfileFn: func(_ context.Context, id int64, update identity.ProfileUpdate) (*identity.User, error) {
				// The id comes from the resolved session, not the request.
				assert.Equal(t, alice.ID, id)
				require.NotNil(t, update.Bio)
				assert.Equal(t, "hello", *update.Bio)
				return alice, nil
			},
		}})

		w := doJSON(t, srv, http.MethodPatch, "/users/me", "valid-token",
			map[string]*string{"bio": &bio})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("taken email returns 409", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{users: &stubDirectory{
			updateProfileFn: func(_ context.Context, _ int64, _ identity.ProfileUpdate) (*identity.User, error) {
				return nil, identity.ErrConflict
			},
		}})

		email := "taken@example.com"
		w := doJSON(t, srv, http.MethodPatch, "/users/me", "valid-token",
			map[string]*string{"email": &email})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("requires a session", func(t *testing.T) {
		srv := newTestServer(t, serverStubs{})
		w := doJSON(t, srv, http.MethodPatch, "/users/me", "", map[string]string{})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestServer_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newTestServer(t, serverStubs{})

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case serveErr, ok := <-errCh:
		if ok && serveErr != nil {
			t.Errorf("unexpected error on normal shutdown: %v", serveErr)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
