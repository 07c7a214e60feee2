// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package apiauth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParseTokenRoundTrip(t *testing.T) {
	g := NewGuard("super-secret-signing-key", "")
	token, err := g.IssueToken("operator-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims, err := g.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "operator-1" {
		t.Fatalf("expected subject %q, got %q", "operator-1", claims.Subject)
	}
	if claims.Issuer != "ludari" {
		t.Fatalf("expected default issuer %q, got %q", "ludari", claims.Issuer)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewGuard("secret-a", "")
	verifier := NewGuard("secret-b", "")

	token, err := issuer.IssueToken("operator-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := verifier.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a signature mismatch, got %v", err)
	}
}

func TestParseTokenDistinguishesExpiry(t *testing.T) {
	g := NewGuard("super-secret-signing-key", "")
	token, err := g.IssueToken("operator-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	_, err = g.ParseToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected the error to also unwrap to jwt.ErrTokenExpired, got %v", err)
	}
}
