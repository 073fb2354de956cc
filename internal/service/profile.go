// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"math"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/model"
)

// Profile messages.
const (
	MsgNoUser          = "No user found with that ID"
	MsgNotForPasswords = "This route is not for password updates. Please use /updateMyPassword."
	MsgPageOutOfRange  = "page is out of range"
)

// Pagination bounds for ListUsers.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
	// MaxOffset bounds (page-1)*limit to a value every driver accepts.
	MaxOffset = math.MaxInt32
)

// GetUser returns the user with the given id.
func (a *Accounts) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := a.users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, apperr.NotFound(MsgNoUser)
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// ListUsers returns a page of users and the total count. Page numbers start at 1.
func (a *Accounts) ListUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if page-1 > MaxOffset/limit {
		return nil, 0, apperr.Validation(MsgPageOutOfRange)
	}

	users, total, err := a.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return users, total, nil
}

// UpdateMeInput carries the self-service profile changes. Nil fields are
// left unchanged. Photo is a client-supplied reference; Uploaded is the file
// name of a photo stored for this request and takes precedence.
// PasswordGiven is set when the request tried to change the password
// through this route.
type UpdateMeInput struct {
	Name          *string
	Email         *string
	Photo         string
	Uploaded      string
	PasswordGiven bool
}

// UpdateMe applies name, email and photo changes to user.
func (a *Accounts) UpdateMe(ctx context.Context, user *model.User, in UpdateMeInput) (*model.User, error) {
	if in.PasswordGiven {
		return nil, apperr.Validation(MsgNotForPasswords)
	}

	name, email, photo := user.Name, user.Email, user.Photo

	if in.Name != nil {
		n, err := a.cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}
	if in.Email != nil {
		e, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		email = e
	}
	if in.Uploaded != "" {
		photo = in.Uploaded
	} else {
		p, err := requestedPhoto(user.Photo, in.Photo)
		if err != nil {
			return nil, err
		}
		photo = p
	}

	if err := a.users.UpdateProfile(ctx, user.ID, name, email, photo); err != nil {
		return nil, storeError(err)
	}

	updated, err := a.users.ByID(ctx, user.ID)
	if err != nil {
		return nil, storeError(err)
	}
	return updated, nil
}
