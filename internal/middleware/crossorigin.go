// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"

	"github.com/olegiv/accounts-api/internal/apperr"
)

// MsgCrossOrigin is returned when a browser sends a cross-site write.
const MsgCrossOrigin = "Cross-origin request rejected"

// CrossOriginConfig holds configuration for cross-origin write protection.
type CrossOriginConfig struct {
	// AuthKey is a 32-byte key kept for API compatibility with gorilla/csrf.
	AuthKey []byte

	// TrustedOrigins are host[:port] values allowed to send cross-origin
	// writes, e.g. a separately hosted front end.
	TrustedOrigins []string
}

// DefaultCrossOriginConfig trusts local front-end dev servers in development.
func DefaultCrossOriginConfig(authKey []byte, isDev bool, trusted []string) CrossOriginConfig {
	cfg := CrossOriginConfig{
		AuthKey:        authKey,
		TrustedOrigins: append([]string(nil), trusted...),
	}
	if isDev {
		cfg.TrustedOrigins = append(cfg.TrustedOrigins, "localhost:3000", "127.0.0.1:3000")
	}
	return cfg
}

// CrossOrigin rejects cross-site browser writes using Fetch metadata
// headers. The jwt cookie makes the API ambient-authority for browsers;
// requests without Origin or Sec-Fetch-Site, such as API clients sending a
// bearer token, pass through.
func CrossOrigin(cfg CrossOriginConfig, errs ErrorWriter) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := "unknown"
			if err := csrf.FailureReason(r); err != nil {
				reason = err.Error()
			}
			slog.Warn("cross-origin request rejected",
				"reason", reason,
				"method", r.Method,
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
			)
			errs.Write(w, r, apperr.Forbidden(MsgCrossOrigin))
		})),
	}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}

	return csrf.Protect(cfg.AuthKey, opts...)
}
