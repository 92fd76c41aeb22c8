// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pipit-social/pipit/internal/graph"
	"github.com/pipit-social/pipit/internal/identity"
	idpostgres "github.com/pipit-social/pipit/internal/identity/postgres"
	"github.com/pipit-social/pipit/internal/store"
	"github.com/pipit-social/pipit/internal/token"
)

// testEnv holds the resources shared by the specs.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("pipit_test"),
		tcpostgres.WithUsername("pipit"),
		tcpostgres.WithPassword("pipit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		cancel()
		return nil, err
	}
	_ = migrator.Close()

	env.pool, err = store.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		cancel()
		return nil, err
	}

	return env, nil
}

func (env *testEnv) teardown() {
	if env.pool != nil {
		env.pool.Close()
	}
	if env.container != nil {
		_ = env.container.Terminate(context.Background())
	}
	env.cancel()
}

var _ = Describe("Identity and social graph", Ordered, func() {
	var (
		env     *testEnv
		users   *idpostgres.UserRepository
		follows *idpostgres.FollowRepository
		auth    *identity.AuthService
		svc     *graph.Service
		codec   *token.Codec
	)

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())

		users = idpostgres.NewUserRepository(env.pool)
		follows = idpostgres.NewFollowRepository(env.pool)

		codec, err = token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
		Expect(err).NotTo(HaveOccurred())

		auth, err = identity.NewAuthService(users, identity.NewArgon2idHasher(), codec)
		Expect(err).NotTo(HaveOccurred())

		svc, err = graph.NewService(follows)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.teardown()
		}
	})

	Describe("registration and authentication", func() {
		It("registers a user with a hashed credential", func() {
			user, err := auth.Register(env.ctx, "alice", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.ID).To(BeNumerically(">", 0))
			Expect(user.PasswordHash).To(HavePrefix("$argon2id$"))
			Expect(user.CreatedAt).NotTo(BeZero())
		})

		It("rejects a duplicate username", func() {
			_, err := auth.Register(env.ctx, "alice", "another password")
			Expect(err).To(MatchError(identity.ErrConflict))
		})

		It("authenticates with the correct password", func() {
			user, err := auth.Authenticate(env.ctx, "alice", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Username).To(Equal("alice"))
		})

		It("rejects a wrong password and an unknown user identically", func() {
			_, wrongErr := auth.Authenticate(env.ctx, "alice", "wrong")
			_, unknownErr := auth.Authenticate(env.ctx, "nobody", "wrong")
			Expect(wrongErr).To(MatchError(identity.ErrInvalidCredentials))
			Expect(unknownErr).To(MatchError(identity.ErrInvalidCredentials))
		})

		It("issues a session token that resolves back to the user", func() {
			user, err := auth.Authenticate(env.ctx, "alice", "correct horse battery")
			Expect(err).NotTo(HaveOccurred())

			signed, err := auth.IssueSession(user)
			Expect(err).NotTo(HaveOccurred())

			resolver, err := identity.NewSessionResolver(users, codec)
			Expect(err).NotTo(HaveOccurred())

			resolved, err := resolver.Resolve(env.ctx, signed)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(user.ID))
		})
	})

	Describe("follow graph", func() {
		var alice, bob, carol *identity.User

		BeforeAll(func() {
			var err error
			alice, err = users.GetByUsername(env.ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			bob, err = auth.Register(env.ctx, "bob", "bob password 123")
			Expect(err).NotTo(HaveOccurred())
			carol, err = auth.Register(env.ctx, "carol", "carol password 123")
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates a follow edge", func() {
			Expect(svc.Follow(env.ctx, alice, bob.ID)).To(Succeed())

			following, err := svc.CheckFollowing(env.ctx, alice.ID, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(BeTrue())
		})

		It("is directed: the reverse edge does not exist", func() {
			following, err := svc.CheckFollowing(env.ctx, bob.ID, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(BeFalse())
		})

		It("rejects a duplicate edge", func() {
			Expect(svc.Follow(env.ctx, alice, bob.ID)).To(MatchError(identity.ErrAlreadyFollowing))
		})

		It("rejects a self follow", func() {
			Expect(svc.Follow(env.ctx, alice, alice.ID)).To(MatchError(identity.ErrSelfFollow))
		})

		It("rejects an edge to a missing user", func() {
			Expect(svc.Follow(env.ctx, alice, 999999)).To(MatchError(identity.ErrNotFound))
		})

		It("lists followers and following in edge order", func() {
			Expect(svc.Follow(env.ctx, carol, bob.ID)).To(Succeed())

			followers, err := svc.Followers(env.ctx, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(followers).To(HaveLen(2))
			Expect(followers[0].Username).To(Equal("alice"))
			Expect(followers[1].Username).To(Equal("carol"))

			following, err := svc.Following(env.ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(HaveLen(1))
			Expect(following[0].Username).To(Equal("bob"))
		})

		It("removes an edge", func() {
			Expect(svc.Unfollow(env.ctx, carol, bob.ID)).To(Succeed())

			following, err := svc.CheckFollowing(env.ctx, carol.ID, bob.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(BeFalse())
		})

		It("rejects removing an absent edge", func() {
			Expect(svc.Unfollow(env.ctx, carol, bob.ID)).To(MatchError(identity.ErrNotFollowing))
		})

		It("cascades edges when a user is deleted", func() {
			Expect(users.Delete(env.ctx, bob.ID)).To(Succeed())

			following, err := svc.Following(env.ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(following).To(BeEmpty())
		})
	})
})
