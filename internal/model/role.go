// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is a permission tier checked by the role gate.
type Role string

// Known roles, lowest privilege first.
const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead_guide"
	RoleAdmin     Role = "admin"
)

// ErrUnknownRole is returned by ParseRole for strings outside the role set.
var ErrUnknownRole = errors.New("unknown role")

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// ParseRole lower-cases s and maps it to a Role. An empty string yields RoleUser.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleUser, nil
	}
	r := Role(cases.Lower(language.Und).String(s))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// In reports whether r is one of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
