// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth provides password hashing and signed session tokens.
package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int

	dummyOnce   sync.Once
	dummyDigest []byte
}

// NewHasher creates a hasher with the given cost, clamped to bcrypt's range.
// A zero cost selects DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt digest of password.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest.
// A mismatch or a malformed digest yields false.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// NeedsRehash reports whether digest was produced with a different cost.
func (h *Hasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// VerifyDummy compares password against a fixed digest of the configured
// cost and always returns false. Login calls it for unknown accounts so they
// take as long as a wrong password.
func (h *Hasher) VerifyDummy(password string) bool {
	h.dummyOnce.Do(func() {
		// GenerateFromPassword only fails for passwords over 72 bytes.
		h.dummyDigest, _ = bcrypt.GenerateFromPassword([]byte("accounts-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyDigest, []byte(password))
	return false
}
