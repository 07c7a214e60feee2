// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package apiauth provides helpers for generating and parsing the JWTs that
// guard the administrative HTTP surface.
package apiauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature
// verification or claim validation.
var ErrInvalidToken = errors.New("apiauth: invalid or expired token")

// AdminClaims identifies the administrative caller embedded in a token.
type AdminClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Guard issues and verifies admin tokens against a single signing secret.
type Guard struct {
	secret []byte
	issuer string
}

// NewGuard constructs a Guard. secret must be non-empty.
func NewGuard(secret, issuer string) *Guard {
	if issuer == "" {
		issuer = "ludari"
	}
	return &Guard{secret: []byte(secret), issuer: issuer}
}

// IssueToken creates a signed JWT identifying subject, valid for ttl.
func (g *Guard) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    g.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// ParseToken parses and validates token, returning its claims.
func (g *Guard) ParseToken(token string) (*AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
