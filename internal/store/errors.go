// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// isUniqueViolation reports whether err is a unique constraint failure in
// any supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	return false
}

// ErrorDetails extracts the driver error code and metadata from err's chain.
// The result is meant for non-production error responses only.
func ErrorDetails(err error) (string, map[string]any, bool) {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return strconv.Itoa(code), map[string]any{
			"driver":  string(DriverSQLite),
			"message": sqlite.ErrorCodeString[code],
		}, true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		meta := map[string]any{
			"driver":   string(DriverPostgres),
			"severity": pgErr.Severity,
		}
		if pgErr.ConstraintName != "" {
			meta["constraint"] = pgErr.ConstraintName
		}
		if pgErr.TableName != "" {
			meta["table"] = pgErr.TableName
		}
		if pgErr.ColumnName != "" {
			meta["column"] = pgErr.ColumnName
		}
		return pgErr.Code, meta, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number)), map[string]any{
			"driver":   string(DriverMySQL),
			"sqlState": string(myErr.SQLState[:]),
		}, true
	}

	return "", nil, false
}
