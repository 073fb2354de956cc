// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the account domain types shared by the store,
// service and HTTP layers.
package model

import (
	"errors"
	"time"
)

// DefaultPhoto is the photo reference given to users who never uploaded one.
const DefaultPhoto = "default.jpg"

var (
	// ErrUserNotFound is returned by stores when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by stores when the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// User represents an account.
type User struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 Role       `json:"role"`
	Active               bool       `json:"active"`
	PasswordHash         string     `json:"-"` // Never expose in JSON
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ChangedPasswordAfter reports whether the password was changed strictly
// after the given token issue time.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.After(issuedAt)
}
