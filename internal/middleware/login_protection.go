// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/olegiv/accounts-api/internal/apperr"
	"github.com/olegiv/accounts-api/internal/cache"
)

// maxLockout caps the exponential lockout backoff.
const maxLockout = 24 * time.Hour

// LoginProtection combines per-IP rate limiting with per-account lockout.
// Lockout state lives in a cache.Cache so several instances sharing Redis
// agree on it.
type LoginProtection struct {
	ipLimiters *limiterCache[string]
	attempts   *cache.Typed[loginAttempt]
	errs       ErrorWriter
	now        func() time.Time

	maxFailedAttempts int
	lockoutDuration   time.Duration // doubles with each lockout
	attemptWindow     time.Duration
}

// loginAttempt tracks failed login attempts for an account.
type loginAttempt struct {
	Count       int       `json:"count"`
	FirstFailed time.Time `json:"first_failed"`
	LockedUntil time.Time `json:"locked_until"`
	Lockouts    int       `json:"lockouts"`
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is requests per second per IP (default: 0.5 = 1 request per 2 seconds)
	IPRateLimit float64
	// IPBurst is the maximum burst size for IP rate limiting (default: 5)
	IPBurst int
	// MaxFailedAttempts before account lockout (default: 5)
	MaxFailedAttempts int
	// LockoutDuration is base lockout time, doubles with each lockout (default: 15 minutes)
	LockoutDuration time.Duration
	// AttemptWindow is the time window for counting failed attempts (default: 15 minutes)
	AttemptWindow time.Duration
}

// DefaultLoginProtectionConfig returns sensible defaults.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// NewLoginProtection creates login protection backed by store.
func NewLoginProtection(cfg LoginProtectionConfig, store cache.Cache, errs ErrorWriter) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}

	return &LoginProtection{
		ipLimiters:        newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		attempts:          cache.NewTyped[loginAttempt](store, "login:", maxLockout+cfg.AttemptWindow),
		errs:              errs,
		now:               time.Now,
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		attemptWindow:     cfg.AttemptWindow,
	}
}

func attemptKey(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// load returns the stored attempt state, or nil when there is none.
// Backend failures are logged and treated as no state.
func (lp *LoginProtection) load(ctx context.Context, email string) *loginAttempt {
	attempt, err := lp.attempts.Get(ctx, attemptKey(email))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("login protection lookup failed", "error", err)
		}
		return nil
	}
	return attempt
}

func (lp *LoginProtection) save(ctx context.Context, email string, attempt *loginAttempt) {
	if err := lp.attempts.Set(ctx, attemptKey(email), attempt); err != nil {
		slog.Warn("login protection update failed", "error", err)
	}
}

// CheckIPRateLimit reports whether a login request from ip is allowed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether the account is locked and for how long.
func (lp *LoginProtection) IsAccountLocked(ctx context.Context, email string) (bool, time.Duration) {
	attempt := lp.load(ctx, email)
	if attempt == nil {
		return false, 0
	}

	now := lp.now()
	if now.Before(attempt.LockedUntil) {
		return true, attempt.LockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailedAttempt records a failed login and reports whether the
// account is now locked.
func (lp *LoginProtection) RecordFailedAttempt(ctx context.Context, email string) (bool, time.Duration) {
	now := lp.now()
	attempt := lp.load(ctx, email)

	if attempt == nil {
		lp.save(ctx, email, &loginAttempt{Count: 1, FirstFailed: now})
		slog.Debug("login attempt recorded", "email", email, "count", 1)
		return false, 0
	}

	if now.Sub(attempt.FirstFailed) > lp.attemptWindow {
		attempt.Count = 1
		attempt.FirstFailed = now
		lp.save(ctx, email, attempt)
		slog.Debug("login attempt window reset", "email", email, "count", 1)
		return false, 0
	}

	attempt.Count++
	slog.Debug("login attempt recorded", "email", email, "count", attempt.Count)

	if attempt.Count < lp.maxFailedAttempts {
		lp.save(ctx, email, attempt)
		return false, 0
	}

	lockDuration := lp.lockoutDuration
	for i := 0; i < attempt.Lockouts; i++ {
		lockDuration *= 2
		if lockDuration > maxLockout {
			lockDuration = maxLockout
			break
		}
	}

	attempt.LockedUntil = now.Add(lockDuration)
	attempt.Lockouts++
	attempt.Count = 0
	lp.save(ctx, email, attempt)

	slog.Warn("account locked due to failed attempts",
		"email", email,
		"lockouts", attempt.Lockouts,
		"duration", lockDuration,
	)
	return true, lockDuration
}

// RecordSuccessfulLogin clears failed attempt tracking for an account.
func (lp *LoginProtection) RecordSuccessfulLogin(ctx context.Context, email string) {
	if err := lp.attempts.Delete(ctx, attemptKey(email)); err != nil {
		slog.Warn("login protection reset failed", "error", err)
	}
	slog.Debug("login attempts cleared", "email", email)
}

// GetRemainingAttempts returns the number of failures left before lockout.
func (lp *LoginProtection) GetRemainingAttempts(ctx context.Context, email string) int {
	attempt := lp.load(ctx, email)
	if attempt == nil || lp.now().Sub(attempt.FirstFailed) > lp.attemptWindow {
		return lp.maxFailedAttempts
	}
	return max(lp.maxFailedAttempts-attempt.Count, 0)
}

// Cleanup drops the IP limiters once too many clients are tracked. The
// scheduler runs it periodically; expired lockout state ages out of the
// cache by TTL.
func (lp *LoginProtection) Cleanup() {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared IP rate limiters due to size")
	}
}

// Middleware rate limits login POSTs per client IP.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "ip", ip)
				lp.errs.Write(w, r, apperr.TooManyRequests(MsgRateLimited))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
