// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package httpapi is the thin Gin-based administrative REST surface over
// the manager's public job-definition and control API.
package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ludari/ludari/apiauth"
	"github.com/ludari/ludari/apierr"
)

// RequireAuth returns middleware that validates the Authorization header
// against guard and aborts with a coded JSON error on failure.
func RequireAuth(guard *apiauth.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(401, apierr.Fail(apierr.Unauthorized, "missing Authorization header"))
			c.Abort()
			return
		}

		claims, err := guard.ParseToken(token)
		if err != nil {
			code := apierr.AuthorizationFail
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = apierr.AuthorizationExpired
			}
			c.JSON(401, apierr.Fail(code, err.Error()))
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// TraceID attaches a fresh trace ID to every request's Gin context, mirroring
// the trace-ID-per-request convention used throughout this project.
func TraceID(next func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("trace_id", next())
		c.Next()
	}
}
