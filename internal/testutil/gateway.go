package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/value"
)

// Call is one recorded gateway invocation.
type Call struct {
	Op    string // "exists", "load", "upsert" or "delete"
	Table store.Table
	Rows  []value.Object // upsert rows, deep copied
	IDs   []int64        // delete identities
}

// RecordingGateway is an in-memory gateway that records every call.
//
// Seeded tables behave like a real store keyed on "idx": upserts merge
// into the record with the same idx, deletes remove records. Fail makes an
// operation return an error until cleared.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingGateway struct {
	mu     sync.Mutex
	tables map[store.Table][]value.Object
	calls  []Call
	fail   map[string]error
}

// NewRecordingGateway creates a gateway with no tables.
func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{
		tables: make(map[store.Table][]value.Object),
		fail:   make(map[string]error),
	}
}

// Seed creates t (if needed) and appends rows in the given order.
func (g *RecordingGateway) Seed(t store.Table, rows ...value.Object) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.tables[t]
	if existing == nil {
		existing = []value.Object{}
	}
	for _, r := range rows {
		existing = append(existing, value.Copy(r).(value.Object))
	}
	g.tables[t] = existing
}

// Fail makes op ("exists", "load", "upsert", "delete") return err.
// A nil err clears the failure.
func (g *RecordingGateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		delete(g.fail, op)
		return
	}
	g.fail[op] = err
}

// Calls returns every recorded call in order.
func (g *RecordingGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsFor returns the recorded calls of one op.
func (g *RecordingGateway) CallsFor(op string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Call
	for _, c := range g.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Rows returns a copy of t's records in storage order.
func (g *RecordingGateway) Rows(t store.Table) []value.Object {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]value.Object, len(g.tables[t]))
	for i, r := range g.tables[t] {
		out[i] = value.Copy(r).(value.Object)
	}
	return out
}

func (g *RecordingGateway) record(c Call) error {
	g.calls = append(g.calls, c)
	return g.fail[c.Op]
}

// TableExists reports whether t was seeded.
func (g *RecordingGateway) TableExists(_ context.Context, t store.Table) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: "exists", Table: t}); err != nil {
		return false, err
	}
	_, ok := g.tables[t]
	return ok, nil
}

// Load returns copies of t's records.
func (g *RecordingGateway) Load(_ context.Context, t store.Table) ([]value.Object, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: "load", Table: t}); err != nil {
		return nil, err
	}
	out := make([]value.Object, len(g.tables[t]))
	for i, r := range g.tables[t] {
		out[i] = value.Copy(r).(value.Object)
	}
	return out, nil
}

// UpsertByIdentity merges rows into t keyed on "idx".
func (g *RecordingGateway) UpsertByIdentity(_ context.Context, t store.Table, rows []value.Object) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make([]value.Object, len(rows))
	for i, r := range rows {
		copied[i] = value.Copy(r).(value.Object)
	}
	if err := g.record(Call{Op: "upsert", Table: t, Rows: copied}); err != nil {
		return 0, err
	}

	records := g.tables[t]
	for _, row := range copied {
		pos := slices.IndexFunc(records, func(rec value.Object) bool {
			return value.Equal(rec[store.IdentityColumn], row[store.IdentityColumn])
		})
		if pos < 0 {
			records = append(records, row)
			continue
		}
		for k, v := range row {
			records[pos][k] = v
		}
	}
	g.tables[t] = records
	return int64(len(copied)), nil
}

// DeleteByIdentity removes t's records whose idx is in ids.
func (g *RecordingGateway) DeleteByIdentity(_ context.Context, t store.Table, ids []int64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.record(Call{Op: "delete", Table: t, IDs: slices.Clone(ids)}); err != nil {
		return 0, err
	}

	before := len(g.tables[t])
	g.tables[t] = slices.DeleteFunc(g.tables[t], func(rec value.Object) bool {
		idx, ok := rec[store.IdentityColumn].(value.Int)
		return ok && slices.Contains(ids, int64(idx))
	})
	return int64(before - len(g.tables[t])), nil
}
