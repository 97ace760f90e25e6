package store

import (
	"context"

	"github.com/roach88/tablemirror/internal/value"
)

// UpsertByIdentity inserts rows, merging into existing records that share
// an idx (ON CONFLICT(idx) DO UPDATE). Composite fields are written as
// canonical JSON TEXT.
//
// Returns the number of affected rows. The statements are not wrapped in a
// transaction; if a later chunk fails, earlier chunks stay applied.
func (s *Store) UpsertByIdentity(ctx context.Context, t Table, rows []value.Object) (int64, error) {
	stmts, err := BuildUpsert(s.dialect, t, rows)
	if err != nil {
		return 0, err
	}
	if len(stmts) == 0 {
		return 0, nil
	}
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return 0, err
	}

	var total int64
	for _, stmt := range stmts {
		n, err := s.exec(ctx, "upsert", t, stmt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DeleteByIdentity deletes the rows whose idx is in ids.
// Returns the number of deleted rows.
func (s *Store) DeleteByIdentity(ctx context.Context, t Table, ids []int64) (int64, error) {
	stmts := BuildDelete(s.dialect, t, ids)
	if len(stmts) == 0 {
		return 0, nil
	}
	if err := s.EnsureSchema(ctx, t.Schema); err != nil {
		return 0, err
	}

	var total int64
	for _, stmt := range stmts {
		n, err := s.exec(ctx, "delete", t, stmt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
