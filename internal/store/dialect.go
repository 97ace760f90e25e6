package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	// Name is the config driver name ("sqlite" | "postgres").
	Name string

	// DriverName is the database/sql driver registered for the backend.
	DriverName string

	// MaxParams bounds the bind parameters of one statement.
	MaxParams int

	placeholder func(n int) string
}

var (
	// SQLite uses mattn/go-sqlite3 with "?" placeholders. Schemas other
	// than main/temp are attached databases.
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite3",
		MaxParams:   32766,
		placeholder: func(int) string { return "?" },
	}

	// Postgres uses the pgx stdlib driver with "$n" placeholders.
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		MaxParams:   65535,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// DialectFor returns the dialect for a config driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, NewConfigurationError("dialect", fmt.Sprintf("unsupported driver %q", driver))
	}
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	return d.placeholder(n)
}

// isJSONType reports whether a declared column type holds JSON text.
func isJSONType(dbType string) bool {
	switch strings.ToUpper(dbType) {
	case "JSON", "JSONB":
		return true
	}
	return false
}
