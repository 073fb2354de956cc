// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, throttling and response hardening.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyUser holds the authenticated *model.User.
const ContextKeyUser ContextKey = "user"

// Token cookie.
const (
	TokenCookie    = "jwt"
	LoggedOutValue = "loggedout"
)

// Messages written by the guard and the role gate.
const (
	MsgMalformedHeader = "Invalid authorization header. Please log in again!"
	MsgForbidden       = "You do not have permission to perform this action"
)

// ErrMalformedHeader is returned for an Authorization header that is not a
// bearer token.
var ErrMalformedHeader = errors.New("malformed authorization header")

// Authenticator resolves a token to the user it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// ErrorWriter writes an error response.
type ErrorWriter interface {
	Write(w http.ResponseWriter, r *http.Request, err error)
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}

// GetUser retrieves the current user from the request context.
func GetUser(r *http.Request) *model.User {
	return UserFrom(r.Context())
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return 0
}

// TokenFromRequest extracts the session token. The Authorization header
// wins; the token cookie is only consulted when the header is absent.
// An empty string means no token was sent.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", ErrMalformedHeader
		}
		return token, nil
	}

	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != LoggedOutValue {
		return c.Value, nil
	}
	return "", nil
}

// Protect requires a valid session token and loads its user into the context.
// The user is resolved on every request.
func Protect(auth Authenticator, errs ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				errs.Write(w, r, apperr.AuthenticationWrap(MsgMalformedHeader, err))
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				errs.Write(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RestrictTo allows only users whose role is in roles. It must run after
// Protect; a request without a user is refused as well.
func RestrictTo(errs ErrorWriter, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil || !user.Role.In(roles...) {
				attrs := []any{
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"allowed_roles", roles,
					"remote_addr", r.RemoteAddr,
				}
				if user != nil {
					attrs = append(attrs, "user_id", user.ID, "user_role", user.Role)
				}
				slog.Warn("access denied", attrs...)

				errs.Write(w, r, apperr.Forbidden(MsgForbidden))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
