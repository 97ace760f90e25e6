package store

import (
	"context"
	"fmt"

	"github.com/roach88/tablemirror/internal/value"
)

// filterColumns keeps only the fields that name a column of t.
// Returns a ValidationError if none remain.
func (s *Store) filterColumns(ctx context.Context, op string, t Table, fields value.Object) (value.Object, error) {
	cols, err := s.Columns(ctx, t)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.Name] = true
	}

	out := make(value.Object, len(fields))
	for k, v := range fields {
		if known[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil, NewValidationError(op, t, fmt.Sprintf("none of %d fields match a column", len(fields)))
	}
	return out, nil
}

// Insert writes one row built from the fields that match table columns;
// unknown fields are dropped.
func (s *Store) Insert(ctx context.Context, t Table, fields value.Object) (int64, error) {
	filtered, err := s.filterColumns(ctx, "insert", t, fields)
	if err != nil {
		return 0, err
	}
	stmt, err := BuildInsert(s.dialect, t, filtered)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "insert", t, stmt)
}

// Update sets the matching fields on the row with the given idx.
// The identity column itself is never rewritten.
func (s *Store) Update(ctx context.Context, t Table, idx int64, fields value.Object) (int64, error) {
	filtered, err := s.filterColumns(ctx, "update", t, fields)
	if err != nil {
		return 0, err
	}
	delete(filtered, IdentityColumn)
	if len(filtered) == 0 {
		return 0, NewValidationError("update", t, "only the identity column was supplied")
	}
	stmt, err := BuildUpdate(s.dialect, t, idx, filtered)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", t, stmt)
}

// Delete removes the row with the given idx.
func (s *Store) Delete(ctx context.Context, t Table, idx int64) (int64, error) {
	return s.DeleteByIdentity(ctx, t, []int64{idx})
}
