// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/mileusna/useragent"

	"github.com/olegiv/accounts-api/internal/geoip"
	"github.com/olegiv/accounts-api/internal/middleware"
)

// clientInfo describes the caller of a request for the login audit log.
type clientInfo struct {
	IP      string
	Country string
	Browser string
	OS      string
	Device  string
}

// newClientInfo extracts the client address, country and user agent details.
// geo may be nil.
func newClientInfo(r *http.Request, geo *geoip.Lookup) clientInfo {
	ip := middleware.ClientIP(r)
	ua := useragent.Parse(r.UserAgent())

	info := clientInfo{
		IP:      ip,
		Browser: ua.Name,
		OS:      ua.OS,
	}
	if geo != nil {
		info.Country = geo.Country(ip)
	}

	if info.Browser == "" {
		info.Browser = "Unknown"
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		info.Device = "mobile"
	case ua.Tablet:
		info.Device = "tablet"
	case ua.Bot:
		info.Device = "bot"
	default:
		info.Device = "desktop"
	}

	return info
}

// attrs returns the info as slog key/value pairs.
func (c clientInfo) attrs() []any {
	attrs := []any{
		"ip", c.IP,
		"browser", c.Browser,
		"os", c.OS,
		"device", c.Device,
	}
	if c.Country != "" {
		attrs = append(attrs, "country", c.Country)
	}
	return attrs
}
