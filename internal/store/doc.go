// Package store is the persistence gateway behind a table mirror.
//
// The store executes four kinds of statement against a relational table:
//   - Load: one unfiltered SELECT * in natural storage order
//   - UpsertByIdentity: bulk INSERT ... ON CONFLICT(idx) DO UPDATE
//   - DeleteByIdentity: bulk DELETE ... WHERE idx IN (...)
//   - TableExists: discovery, defaulting to schema "public"
//
// Thin CRUD helpers (Insert, Update, Delete, Select) filter supplied fields
// down to the table's columns and reject writes that keep none.
//
// # Backends
//
//   - sqlite (mattn/go-sqlite3): one connection; schemas other than main and
//     temp are attached databases placed next to the main file
//   - postgres (jackc/pgx/v5 stdlib): native schemas
//
// # Encoding
//
// Composite field values are written as canonical JSON TEXT (package
// value). Columns declared JSON or JSONB are decoded back on read, so a
// nested payload round-trips.
//
// Every failure is a *Error carrying a code (CONFIGURATION, NOT_FOUND,
// VALIDATION, GATEWAY), the operation and the table.
package store
