// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/accounts-api/internal/model"
)

// Users persists accounts and speaks in model types.
type Users struct {
	q   *Queries
	now func() time.Time
}

// NewUsers creates a user repository over db.
func NewUsers(db DBTX, driver Driver) *Users {
	return &Users{
		q:   New(db, driver),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts u and fills in its id and timestamps.
func (s *Users) Create(ctx context.Context, u *model.User) error {
	now := s.now()
	if u.Photo == "" {
		u.Photo = model.DefaultPhoto
	}

	id, err := s.q.CreateUser(ctx, CreateUserParams{
		Name:         u.Name,
		Email:        u.Email,
		Photo:        u.Photo,
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return translate(err, "creating user")
	}

	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// ByID returns the user with the given id.
func (s *Users) ByID(ctx context.Context, id int64) (*model.User, error) {
	row, err := s.q.GetUserByID(ctx, id)
	if err != nil {
		return nil, translate(err, "getting user by id")
	}
	return row.toModel(), nil
}

// ByEmail returns the user with the given email.
func (s *Users) ByEmail(ctx context.Context, email string) (*model.User, error) {
	row, err := s.q.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "getting user by email")
	}
	return row.toModel(), nil
}

// List returns a page of users and the total count.
func (s *Users) List(ctx context.Context, limit, offset int) ([]model.User, int64, error) {
	rows, err := s.q.ListUsers(ctx, ListUsersParams{Limit: int64(limit), Offset: int64(offset)})
	if err != nil {
		return nil, 0, translate(err, "listing users")
	}
	total, err := s.q.CountUsers(ctx)
	if err != nil {
		return nil, 0, translate(err, "counting users")
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toModel())
	}
	return users, total, nil
}

// UpdatePassword stores a new hash and the time of the change.
func (s *Users) UpdatePassword(ctx context.Context, id int64, hash string, changedAt time.Time) error {
	err := s.q.UpdateUserPassword(ctx, UpdateUserPasswordParams{
		PasswordHash:      hash,
		PasswordChangedAt: changedAt.UTC(),
		UpdatedAt:         s.now(),
		ID:                id,
	})
	return translate(err, "updating password")
}

// RehashPassword replaces the hash without invalidating issued tokens.
func (s *Users) RehashPassword(ctx context.Context, id int64, hash string) error {
	return translate(s.q.UpdateUserPasswordHash(ctx, id, hash), "rehashing password")
}

// UpdateProfile updates the self-service fields.
func (s *Users) UpdateProfile(ctx context.Context, id int64, name, email, photo string) error {
	err := s.q.UpdateUserProfile(ctx, UpdateUserProfileParams{
		Name:      name,
		Email:     email,
		Photo:     photo,
		UpdatedAt: s.now(),
		ID:        id,
	})
	return translate(err, "updating profile")
}

// translate maps driver errors to model errors. A nil err stays nil.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return model.ErrUserNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, model.ErrDuplicateEmail, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (u User) toModel() *model.User {
	m := &model.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Photo:        u.Photo,
		Role:         model.Role(u.Role),
		Active:       u.Active,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.PasswordChangedAt.Valid {
		t := u.PasswordChangedAt.Time
		m.PasswordChangedAt = &t
	}
	if u.PasswordResetToken.Valid {
		m.PasswordResetToken = u.PasswordResetToken.String
	}
	if u.PasswordResetExpires.Valid {
		t := u.PasswordResetExpires.Time
		m.PasswordResetExpires = &t
	}
	return m
}
