// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/geoip"
	"github.com/olegiv/accounts-api/internal/metrics"
	"github.com/olegiv/accounts-api/internal/middleware"
	"github.com/olegiv/accounts-api/internal/service"
)

// AuthHandler handles signup, login, logout and password changes.
type AuthHandler struct {
	accounts        *service.Accounts
	loginProtection *middleware.LoginProtection
	metrics         *metrics.Metrics
	geo             *geoip.Lookup
	errs            middleware.ErrorWriter
	cookieTTL       time.Duration
	logger          *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. loginProtection and geo may be nil.
func NewAuthHandler(
	accounts *service.Accounts,
	loginProtection *middleware.LoginProtection,
	m *metrics.Metrics,
	geo *geoip.Lookup,
	errs middleware.ErrorWriter,
	cookieTTL time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		accounts:        accounts,
		loginProtection: loginProtection,
		metrics:         m,
		geo:             geo,
		errs:            errs,
		cookieTTL:       cookieTTL,
		logger:          logger,
	}
}

// signupRequest accepts both snake and camel case confirmation fields.
type signupRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirm      string `json:"password_confirm"`
	PasswordConfirmCamel string `json:"passwordConfirm"`
	Role                 string `json:"role"`
	Photo                string `json:"photo"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

// sendSession writes the token in the body and in the jwt cookie.
func (h *AuthHandler) sendSession(w http.ResponseWriter, r *http.Request, statusCode int, s *service.Session) {
	setTokenCookie(w, r, s.Token, h.cookieTTL)
	writeJSON(w, statusCode, sessionResponse{
		Status: StatusSuccess,
		Token:  s.Token,
		Data:   userData{User: s.User},
	})
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	confirm := req.PasswordConfirm
	if confirm == "" {
		confirm = req.PasswordConfirmCamel
	}

	session, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: confirm,
		Role:            req.Role,
		Photo:           req.Photo,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	h.metrics.RecordSignup()
	h.sendSession(w, r, http.StatusCreated, session)
}

// Login handles POST /login. Locked accounts are refused before the
// password is checked, and failures feed the lockout counter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	ctx := r.Context()
	client := newClientInfo(r, h.geo)

	if h.loginProtection != nil && req.Email != "" {
		if locked, remaining := h.loginProtection.IsAccountLocked(ctx, req.Email); locked {
			h.metrics.RecordLogin(metrics.LoginLocked)
			h.logger.Warn("login attempt on locked account", append(client.attrs(), "email", req.Email)...)
			h.errs.Write(w, r, apperr.TooManyRequests(lockedMessage(remaining)))
			return
		}
	}

	session, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		if apperr.IsKind(err, apperr.KindAuthentication) {
			h.metrics.RecordLogin(metrics.LoginFailure)
			h.logger.Warn("login failed", append(client.attrs(), "email", req.Email)...)

			// Unknown emails count too, so lockout does not reveal which accounts exist
			if h.loginProtection != nil {
				if locked, lockDuration := h.loginProtection.RecordFailedAttempt(ctx, req.Email); locked {
					h.metrics.RecordLockout()
					h.errs.Write(w, r, apperr.TooManyRequests(lockedMessage(lockDuration)))
					return
				}
			}
		}
		h.errs.Write(w, r, err)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(ctx, req.Email)
	}
	h.metrics.RecordLogin(metrics.LoginSuccess)
	h.logger.Info("user logged in", append(client.attrs(), "user_id", session.User.ID)...)

	h.sendSession(w, r, http.StatusOK, session)
}

// Logout handles GET /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w, r)
	writeJSON(w, http.StatusOK, statusResponse{Status: StatusSuccess})
}

// UpdateMyPassword handles PATCH /updateMyPassword.
func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	session, err := h.accounts.UpdatePassword(r.Context(), middleware.GetUser(r), service.UpdatePasswordInput{
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	h.metrics.RecordPasswordChange()
	h.sendSession(w, r, http.StatusOK, session)
}

// ForgotPassword handles POST /forgotPassword.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.errs.Write(w, r, h.accounts.ForgotPassword(r.Context(), ""))
}

// ResetPassword handles PATCH /resetPassword/{token}.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	_, err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "token"), "", "")
	h.errs.Write(w, r, err)
}

// lockedMessage tells the client how long the account stays locked.
func lockedMessage(d time.Duration) string {
	return fmt.Sprintf("Too many failed login attempts. Please try again in %s.", formatDuration(d))
}

// formatDuration formats a duration for user display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
