// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Driver identifies a supported database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver maps a configured driver name to a Driver.
func ParseDriver(name string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(name))); d {
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// sqlDriverName returns the name registered with database/sql.
func (d Driver) sqlDriverName() string {
	switch d {
	case DriverPostgres:
		return "pgx"
	default:
		return string(d)
	}
}

// gooseDialect returns the goose dialect name.
func (d Driver) gooseDialect() string {
	if d == DriverSQLite {
		return "sqlite3"
	}
	return string(d)
}

// placeholderRe matches PostgreSQL-style placeholders $1, $2, ...
var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// Rebind converts $N placeholders to the driver's placeholder syntax.
// Queries are written once in PostgreSQL style.
func (d Driver) Rebind(query string) string {
	if d == DriverPostgres {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// supportsReturning reports whether INSERT ... RETURNING is needed to read
// generated ids.
func (d Driver) supportsReturning() bool {
	return d == DriverPostgres
}
