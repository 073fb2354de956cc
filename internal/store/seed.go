// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/olegiv/accounts-api/internal/model"
)

// DefaultAdminName is the display name of the bootstrap admin.
const DefaultAdminName = "Administrator"

// PasswordHasher hashes the bootstrap admin password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SeedAdmin creates the bootstrap admin account unless the email is taken.
func SeedAdmin(ctx context.Context, users *Users, hasher PasswordHasher, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := users.ByEmail(ctx, email)
	if err == nil {
		slog.Info("admin user already exists, skipping seed", "email", email)
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	admin := &model.User{
		Name:         DefaultAdminName,
		Email:        email,
		Role:         model.RoleAdmin,
		Active:       true,
		PasswordHash: passwordHash,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created admin user", "id", admin.ID, "email", admin.Email)
	return nil
}
