package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/tablemirror/internal/value"
)

// Column describes one table column.
type Column struct {
	Name string
	Type string
}

// Load performs the one-time unfiltered scan of a table.
//
// Rows come back in natural storage order. Columns declared JSON or JSONB
// are decoded into composites. Returns an empty slice (not nil) for an
// empty table.
func (s *Store) Load(ctx context.Context, t Table) ([]value.Object, error) {
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, "load", t, BuildSelect(s.dialect, t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := collectRows(rows)
	if err != nil {
		return nil, NewGatewayError("load", t, err)
	}
	return out, nil
}

func collectRows(rows *sql.Rows) ([]value.Object, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	types := make([]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = ct.DatabaseTypeName()
	}

	out := []value.Object{}
	for rows.Next() {
		obj, err := scanRow(rows, cols, types)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// TableExists reports whether the table exists. An empty schema means
// DefaultReadSchema.
func (s *Store) TableExists(ctx context.Context, t Table) (bool, error) {
	if t.Schema == "" {
		t.Schema = DefaultReadSchema
	}
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return false, err
	}

	stmt := BuildTableExists(s.dialect, t)
	if s.trace {
		s.logger.Debug("sql", "op", "exists", "table", t.String(), "statement", stmt.SQL, "args", len(stmt.Args))
	}

	var count int
	if err := s.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&count); err != nil {
		return false, NewGatewayError("exists", t, err)
	}
	return count > 0, nil
}

// Columns returns the table's columns in declaration order.
func (s *Store) Columns(ctx context.Context, t Table) ([]Column, error) {
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, "columns", t, BuildColumns(s.dialect, t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, NewGatewayError("columns", t, fmt.Errorf("scan column: %w", err))
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, NewGatewayError("columns", t, err)
	}
	if len(cols) == 0 {
		return nil, NewNotFoundError("columns", t)
	}
	return cols, nil
}

// Select reads one row by identity. The bool is false if no row matches.
func (s *Store) Select(ctx context.Context, t Table, idx int64) (value.Object, bool, error) {
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return nil, false, err
	}

	rows, err := s.query(ctx, "select", t, BuildSelectOne(s.dialect, t, idx))
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	out, err := collectRows(rows)
	if err != nil {
		return nil, false, NewGatewayError("select", t, err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}
