// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr error
	}{
		{in: "", want: RoleUser},
		{in: "user", want: RoleUser},
		{in: "ADMIN", want: RoleAdmin},
		{in: " Lead_Guide ", want: RoleLeadGuide},
		{in: "guide", want: RoleGuide},
		{in: "superuser", wantErr: ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseRole(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleIn(t *testing.T) {
	if !RoleAdmin.In(RoleAdmin, RoleLeadGuide) {
		t.Error("admin should be in {admin, lead_guide}")
	}
	if RoleUser.In(RoleAdmin, RoleLeadGuide) {
		t.Error("user should not be in {admin, lead_guide}")
	}
	if RoleUser.In() {
		t.Error("no role is in an empty set")
	}
}
