// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// User is a row of the users table.
type User struct {
	ID                   int64
	Name                 string
	Email                string
	Photo                string
	Role                 string
	PasswordHash         string
	PasswordChangedAt    sql.NullTime
	PasswordResetToken   sql.NullString
	PasswordResetExpires sql.NullTime
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
password_reset_token, password_reset_expires, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&u.Role,
		&u.PasswordHash,
		&u.PasswordChangedAt,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const createUser = `INSERT INTO users (name, email, photo, role, password_hash, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CreateUserParams holds the columns set on insert.
type CreateUserParams struct {
	Name         string
	Email        string
	Photo        string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUser inserts a user and returns the generated id.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	args := []any{
		arg.Name,
		arg.Email,
		arg.Photo,
		arg.Role,
		arg.PasswordHash,
		arg.Active,
		arg.CreatedAt,
		arg.UpdatedAt,
	}

	if q.driver.supportsReturning() {
		var id int64
		err := q.db.QueryRowContext(ctx, q.driver.Rebind(createUser+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	res, err := q.db.ExecContext(ctx, q.driver.Rebind(createUser), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

// GetUserByID returns the user with the given id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, q.driver.Rebind(getUserByID), id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

// GetUserByEmail returns the user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, q.driver.Rebind(getUserByEmail), email))
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

// ListUsersParams holds pagination for ListUsers.
type ListUsersParams struct {
	Limit  int64
	Offset int64
}

// ListUsers returns a page of users ordered by id.
func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, q.driver.Rebind(listUsers), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUsers = `SELECT COUNT(*) FROM users`

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

const updateUserPassword = `UPDATE users
SET password_hash = $1, password_changed_at = $2, updated_at = $3
WHERE id = $4`

// UpdateUserPasswordParams holds a password change.
type UpdateUserPasswordParams struct {
	PasswordHash      string
	PasswordChangedAt time.Time
	UpdatedAt         time.Time
	ID                int64
}

// UpdateUserPassword stores a new hash and stamps the change time.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, q.driver.Rebind(updateUserPassword),
		arg.PasswordHash,
		arg.PasswordChangedAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const updateUserPasswordHash = `UPDATE users SET password_hash = $1 WHERE id = $2`

// UpdateUserPasswordHash replaces the stored hash without touching the change
// time. Used when re-hashing at a new cost.
func (q *Queries) UpdateUserPasswordHash(ctx context.Context, id int64, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, q.driver.Rebind(updateUserPasswordHash), passwordHash, id)
	return err
}

const updateUserProfile = `UPDATE users
SET name = $1, email = $2, photo = $3, updated_at = $4
WHERE id = $5`

// UpdateUserProfileParams holds the self-service profile fields.
type UpdateUserProfileParams struct {
	Name      string
	Email     string
	Photo     string
	UpdatedAt time.Time
	ID        int64
}

// UpdateUserProfile updates name, email and photo.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, q.driver.Rebind(updateUserProfile),
		arg.Name,
		arg.Email,
		arg.Photo,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}
