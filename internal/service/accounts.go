// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the account use cases on top of a user store,
// a password hasher and a token issuer.
package service

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"net/mail"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/auth"
	"github.com/olegiv/accounts-api/internal/model"
)

// Client-facing messages.
const (
	MsgPasswordsDoNotMatch = "Passwords do not match"
	MsgMissingCredentials  = "Please provide email and password!"
	MsgIncorrectLogin      = "Incorrect email or password"
	MsgWrongCurrent        = "Your current password is wrong."
	MsgNotImplemented      = "This route is not yet implemented"
	MsgPhotoUploadOnly     = "A new photo can only be set by uploading an image."
)

// MaxNameLength bounds the display name in runes.
const MaxNameLength = 100

// UserStore persists users. Implementations map a missing row to
// model.ErrUserNotFound and a taken email to model.ErrDuplicateEmail.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	ByID(ctx context.Context, id int64) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, int64, error)
	UpdatePassword(ctx context.Context, id int64, hash string, changedAt time.Time) error
	RehashPassword(ctx context.Context, id int64, hash string) error
	UpdateProfile(ctx context.Context, id int64, name, email, photo string) error
}

// Session is a freshly issued token and the user it belongs to.
type Session struct {
	Token string
	User  *model.User
}

// Accounts implements signup, login, password change and the session guard.
type Accounts struct {
	users  UserStore
	hasher *auth.Hasher
	tokens *auth.TokenIssuer
	now    func() time.Time
	policy *bluemonday.Policy
	logger *slog.Logger
}

// Option configures Accounts.
type Option func(*Accounts)

// WithClock overrides the time source used for password change stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Accounts) {
		a.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accounts) {
		a.logger = logger
	}
}

// NewAccounts creates the account service.
func NewAccounts(users UserStore, hasher *auth.Hasher, tokens *auth.TokenIssuer, opts ...Option) *Accounts {
	a := &Accounts{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    time.Now,
		policy: bluemonday.StrictPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignupInput is the signup request.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            string
	Photo           string
}

// Signup validates the input, stores a new user and issues a token.
// Nothing is persisted when validation fails.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if in.Password == "" || in.PasswordConfirm == "" || in.Password != in.PasswordConfirm {
		return nil, apperr.Validation(MsgPasswordsDoNotMatch)
	}

	name, err := a.cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Validation("Invalid role: " + in.Role)
	}

	photo, err := requestedPhoto(model.DefaultPhoto, in.Photo)
	if err != nil {
		return nil, err
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Role:         role,
		Photo:        photo,
		Active:       true,
		PasswordHash: hash,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, storeError(err)
	}

	a.logger.Info("user signed up", "user_id", user.ID, "role", user.Role)
	return a.issue(user)
}

// Login checks credentials and issues a token. An unknown email and a wrong
// password produce the same error.
func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Validation(MsgMissingCredentials)
	}

	user, err := a.users.ByEmail(ctx, foldEmail(email))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			a.hasher.VerifyDummy(password)
			return nil, apperr.Authentication(MsgIncorrectLogin)
		}
		return nil, apperr.Internal(err)
	}

	if !user.Active || !a.hasher.Verify(password, user.PasswordHash) {
		return nil, apperr.Authentication(MsgIncorrectLogin)
	}

	// Upgrade the hash if the configured cost changed
	if a.hasher.NeedsRehash(user.PasswordHash) {
		if newHash, err := a.hasher.Hash(password); err == nil {
			if err := a.users.RehashPassword(ctx, user.ID, newHash); err != nil {
				a.logger.Warn("failed to rehash password", "user_id", user.ID, "error", err)
			} else {
				user.PasswordHash = newHash
				a.logger.Info("password rehashed with new cost", "user_id", user.ID, "cost", a.hasher.Cost())
			}
		}
	}

	return a.issue(user)
}

// UpdatePasswordInput is the password change request.
type UpdatePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	NewPasswordConfirm string
}

// UpdatePassword changes the password of user and issues a fresh token.
// Tokens issued before the change stop passing the guard.
func (a *Accounts) UpdatePassword(ctx context.Context, user *model.User, in UpdatePasswordInput) (*Session, error) {
	if in.NewPassword == "" || in.NewPasswordConfirm == "" || in.NewPassword != in.NewPasswordConfirm {
		return nil, apperr.Validation(MsgPasswordsDoNotMatch)
	}
	if in.CurrentPassword == "" {
		return nil, apperr.Validation("Please provide your current password")
	}

	current, err := a.users.ByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, apperr.Authentication(MsgUserGone)
		}
		return nil, apperr.Internal(err)
	}

	if !a.hasher.Verify(in.CurrentPassword, current.PasswordHash) {
		return nil, apperr.Authentication(MsgWrongCurrent)
	}

	hash, err := a.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// Backdated by one tick so a token issued right after survives the
	// float round trip of iat.
	changedAt := a.now().UTC().Truncate(time.Microsecond).Add(-time.Microsecond)
	if err := a.users.UpdatePassword(ctx, current.ID, hash, changedAt); err != nil {
		return nil, storeError(err)
	}

	current.PasswordHash = hash
	current.PasswordChangedAt = &changedAt

	a.logger.Info("password changed", "user_id", current.ID)
	return a.issue(current)
}

// ForgotPassword is not implemented yet.
func (a *Accounts) ForgotPassword(context.Context, string) error {
	return apperr.NotImplemented(MsgNotImplemented)
}

// ResetPassword is not implemented yet.
func (a *Accounts) ResetPassword(context.Context, string, string, string) (*Session, error) {
	return nil, apperr.NotImplemented(MsgNotImplemented)
}

// DeleteMe is not implemented yet.
func (a *Accounts) DeleteMe(context.Context, *model.User) error {
	return apperr.NotImplemented(MsgNotImplemented)
}

func (a *Accounts) issue(user *model.User) (*Session, error) {
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{Token: token, User: user}, nil
}

// cleanName strips markup and enforces presence and length.
func (a *Accounts) cleanName(name string) (string, error) {
	// StrictPolicy removes tags; unescape so names are stored as plain text.
	name = strings.TrimSpace(html.UnescapeString(a.policy.Sanitize(name)))
	if name == "" {
		return "", apperr.Validation("Please tell us your name!")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperr.Validation("A name must have less or equal than 100 characters")
	}
	return name, nil
}

func foldEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// normalizeEmail validates an address and lower-cases it.
func normalizeEmail(email string) (string, error) {
	email = foldEmail(email)
	if email == "" {
		return "", apperr.Validation("Please provide your email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("Please provide a valid email")
	}
	return email, nil
}

// cleanPhoto keeps only the file name of a photo reference.
func cleanPhoto(photo string) string {
	photo = strings.TrimSpace(photo)
	if photo == "" {
		return model.DefaultPhoto
	}
	base := path.Base(strings.ReplaceAll(photo, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return model.DefaultPhoto
	}
	return base
}

// requestedPhoto resolves a client-supplied photo reference. Only the
// current photo and the default are accepted; new files arrive through
// uploads.
func requestedPhoto(current, requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return current, nil
	}
	photo := cleanPhoto(requested)
	if photo != current && photo != model.DefaultPhoto {
		return "", apperr.Validation(MsgPhotoUploadOnly)
	}
	return photo, nil
}

// storeError maps store failures to operational errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, model.ErrDuplicateEmail):
		return apperr.Wrap(apperr.KindValidation, "Duplicate field value: email. Please use another value!", err)
	case errors.Is(err, model.ErrUserNotFound):
		return apperr.NotFound(MsgNoUser)
	default:
		return apperr.Internal(err)
	}
}
