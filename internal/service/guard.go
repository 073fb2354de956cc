// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/auth"
	"github.com/olegiv/accounts-api/internal/model"
)

// Session guard messages.
const (
	MsgNotLoggedIn     = "You are not logged in! Please log in to get access."
	MsgInvalidToken    = "Invalid token. Please log in again!"
	MsgExpiredToken    = "Your token has expired! Please log in again."
	MsgUserGone        = "The user belonging to this token no longer exists."
	MsgPasswordChanged = "User recently changed password! Please log in again."
)

// Authenticate resolves the user a token belongs to. The user is read fresh
// on every call and rejected when the password changed after the token was
// issued.
func (a *Accounts) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.Authentication(MsgNotLoggedIn)
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperr.AuthenticationWrap(MsgExpiredToken, err)
		}
		return nil, apperr.AuthenticationWrap(MsgInvalidToken, err)
	}

	user, err := a.users.ByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, apperr.Authentication(MsgUserGone)
		}
		return nil, apperr.Internal(err)
	}
	if !user.Active {
		return nil, apperr.Authentication(MsgUserGone)
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, apperr.Authentication(MsgPasswordChanged)
	}

	return user, nil
}
