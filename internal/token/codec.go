// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pipit Contributors

// Package token signs and verifies the compact session tokens that carry
// identity claims. Tokens are stateless: validity is determined entirely by
// signature and expiry, with no server-side session table, so a token
// cannot be revoked before it expires.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum accepted signing secret size in bytes.
// HS256 keys shorter than the hash output weaken the MAC.
const MinSecretLength = 32

// signingMethod is fixed per deployment. Verification rejects any token
// whose header claims a different algorithm, closing the
// algorithm-confusion class of attacks.
var signingMethod = jwt.SigningMethodHS256

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, wrong algorithm, missing claims, or expired.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity claims embedded in a session token.
type Claims struct {
	Username string
	UserID   int64
}

// wireClaims is the JWT payload shape: sub carries the username, uid the
// numeric user id, exp the absolute expiry instant.
type wireClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed session tokens. The secret is held for
// the process lifetime and never derived from request data.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a Codec with the given signing secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_bytes", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// NewCodecWithClock creates a Codec with an injected clock for
// deterministic expiry testing.
func NewCodecWithClock(secret []byte, now func() time.Time) (*Codec, error) {
	c, err := NewCodec(secret)
	if err != nil {
		return nil, err
	}
	if now == nil {
		return nil, oops.Code("TOKEN_NIL_CLOCK").Errorf("clock function is required")
	}
	c.now = now
	return c, nil
}

// Issue signs a token for the given claims expiring ttl from now.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.Username == "" || claims.UserID <= 0 {
		return "", oops.Code("TOKEN_INVALID_CLAIMS").
			With("user_id", claims.UserID).
			Errorf("token claims require a username and a positive user id")
	}
	if ttl <= 0 {
		return "", oops.Code("TOKEN_INVALID_TTL").Errorf("ttl must be positive")
	}

	t := jwt.NewWithClaims(signingMethod, wireClaims{
		UserID: claims.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Username,
			ExpiresAt: jwt.NewNumericDate(c.now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	})

	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks the token's signature, algorithm, claims, and expiry.
// A token is invalid once the current instant is at or past its expiry.
// All failure modes collapse to ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	var wire wireClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &wire,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, oops.Code("TOKEN_VERIFY_FAILED").Wrapf(ErrInvalidToken, "%v", err)
	}
	if !parsed.Valid {
		return Claims{}, oops.Code("TOKEN_VERIFY_FAILED").Wrap(ErrInvalidToken)
	}
	if wire.Subject == "" || wire.UserID <= 0 {
		return Claims{}, oops.Code("TOKEN_MISSING_CLAIMS").Wrap(ErrInvalidToken)
	}
	return Claims{Username: wire.Subject, UserID: wire.UserID}, nil
}
