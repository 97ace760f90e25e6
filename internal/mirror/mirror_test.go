package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/testutil"
	"github.com/roach88/tablemirror/internal/value"
)

func TestOpen_LoadsRowsWithoutQueueing(t *testing.T) {
	h := newHarness(t, ab()...)

	require.Equal(t, 2, h.m.Len())
	assert.Equal(t, int64(0), h.m.At(0).Idx())
	assert.Equal(t, int64(1), h.m.At(1).Idx())
	assert.False(t, h.m.At(0).Fields().Has("idx"), "identity is held apart from the fields")

	name, ok := h.m.At(1).Get("name")
	require.True(t, ok)
	assert.Equal(t, value.String("b"), name)

	assert.Zero(t, h.m.Pending())
	assert.Zero(t, h.timers.Created())
	assert.Equal(t, items, h.m.Table())
}

func TestOpen_IdentityFromColumnOrPosition(t *testing.T) {
	h := newHarness(t,
		value.Object{"idx": value.Int(10), "name": value.String("x")},
		value.Object{"name": value.String("no idx")},
		value.Object{"idx": value.String("junk")},
	)

	assert.Equal(t, int64(10), h.m.At(0).Idx())
	assert.Equal(t, int64(1), h.m.At(1).Idx())
	assert.Equal(t, int64(2), h.m.At(2).Idx())
	assert.False(t, h.m.At(2).Fields().Has("idx"))
}

func TestOpen_Errors(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name  string
		opts  Options
		setup func(gw *testutil.RecordingGateway)
		check func(error) bool
	}{
		{"empty table", Options{Table: ""}, nil, store.IsConfigurationError},
		{"malformed table", Options{Table: "a.b.c"}, nil, store.IsConfigurationError},
		{"missing table", Options{Table: "nope"}, nil, store.IsNotFound},
		{"exists fails", Options{Table: "items"}, func(gw *testutil.RecordingGateway) { gw.Fail("exists", boom) }, store.IsGatewayError},
		{"load fails", Options{Table: "items"}, func(gw *testutil.RecordingGateway) { gw.Fail("load", boom) }, store.IsGatewayError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testutil.NewRecordingGateway()
			gw.Seed(items, ab()...)
			if tt.setup != nil {
				tt.setup(gw)
			}

			m, err := Open(context.Background(), gw, tt.opts)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestOpen_DottedTableOverridesSchema(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	users := store.Table{Schema: "public", Name: "users"}
	gw.Seed(users, value.Object{"idx": value.Int(0)})

	m, err := Open(context.Background(), gw, Options{Table: "public.users", Schema: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, users, m.Table())
	assert.Equal(t, 1, m.Len())
}

func TestOpen_DefaultSchemaIsTK(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.Seed(items)

	m, err := Open(context.Background(), gw, Options{Table: "items"})
	require.NoError(t, err)
	assert.Equal(t, "tk", m.Table().Schema)
	assert.Zero(t, m.Len())
}

func TestSetField_SingleUpsert(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(0).Set("name", value.String("a2"))
	assert.Equal(t, 1, h.m.Pending())

	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 1)
	assert.Equal(t, []value.Object{{"idx": value.Int(0), "name": value.String("a2")}}, upserts[0].Rows)
	assert.Empty(t, h.gw.CallsFor("delete"))
	assert.Equal(t, ab()[1], h.gw.Rows(items)[1])
	assert.Equal(t, value.String("a2"), h.gw.Rows(items)[0]["name"])
	assert.Zero(t, h.m.Pending())
}

func TestMutationCoalescing(t *testing.T) {
	h := newHarness(t, ab()...)
	row := h.m.At(1)

	for i := range 5 {
		row.Set("n", value.Int(int64(i)))
	}
	row.Set("name", value.String("final"))
	assert.Equal(t, 1, h.m.Pending())

	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 1)
	assert.Equal(t, []value.Object{
		{"idx": value.Int(1), "name": value.String("final"), "n": value.Int(4)},
	}, upserts[0].Rows)
}

func TestUnchangedWriteDoesNotQueue(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(0).Set("name", value.String("a"))
	assert.Zero(t, h.m.Pending())
	assert.Zero(t, h.timers.Created())
}

func TestDeleteField_AlwaysQueues(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(0).Delete("never-existed")
	assert.Equal(t, 1, h.m.Pending())
}

func TestDeleteField_BindsNull(t *testing.T) {
	h := newHarness(t,
		value.Object{"idx": value.Int(0), "name": value.String("a"), "meta": value.Object{"k": value.Int(1)}},
		value.Object{"idx": value.Int(1), "name": value.String("b")},
	)

	h.m.At(0).Delete("meta")
	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 1)
	assert.Equal(t, []value.Object{
		{"idx": value.Int(0), "name": value.String("a"), "meta": value.Null{}},
	}, upserts[0].Rows, "a loaded column absent from the row is cleared")
}

func TestSavedColumnsAreRemembered(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(0).Set("note", value.String("n"))
	h.elapse()
	h.m.At(1).Set("name", value.String("b2"))
	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 2)
	assert.Equal(t, value.Null{}, upserts[1].Rows[0]["note"], "a column first written by a save counts as known")
}

func TestNestedMutation_QueuesOwningRow(t *testing.T) {
	h := newHarness(t, value.Object{
		"idx":  value.Int(0),
		"meta": value.Object{"tags": value.Array{value.String("x")}},
	})
	row := h.m.At(0)

	meta, ok := row.Fields().GetObject("meta")
	require.True(t, ok)
	again, _ := row.Fields().GetObject("meta")
	assert.Same(t, meta, again, "re-reads return the same wrapper")

	tags, ok := meta.GetArray("tags")
	require.True(t, ok)
	tags.Append(value.String("y"))
	assert.Equal(t, 1, h.m.Pending())

	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 1)
	assert.Equal(t, value.Object{
		"idx":  value.Int(0),
		"meta": value.Object{"tags": value.Array{value.String("x"), value.String("y")}},
	}, upserts[0].Rows[0])
}

func TestRowIdentityIsNotAField(t *testing.T) {
	h := newHarness(t, ab()...)
	row := h.m.At(1)

	row.Set("idx", value.Int(99))
	row.Delete("idx")
	assert.Zero(t, h.m.Pending())

	v, ok := row.Get("idx")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)
	assert.Equal(t, value.Object{"idx": value.Int(1), "name": value.String("b")}, row.Snapshot())
}

func TestPush(t *testing.T) {
	h := newHarness(t, ab()...)

	row := h.m.Push(value.Object{"name": value.String("c"), "idx": value.Int(42)})
	assert.Equal(t, int64(2), row.Idx())
	assert.Same(t, row, h.m.At(2))
	assert.Equal(t, 1, h.m.Pending())

	h.elapse()

	upserts := h.gw.CallsFor("upsert")
	require.Len(t, upserts, 1)
	assert.Equal(t, []value.Object{{"idx": value.Int(2), "name": value.String("c")}}, upserts[0].Rows)
}

func TestPush_NilFields(t *testing.T) {
	h := newHarness(t)

	row := h.m.Push(nil)
	assert.Zero(t, row.Fields().Len())
	row.Set("a", value.Bool(true))
	assert.Equal(t, 1, h.m.Pending())
}

func TestAll_ReturnsLiveRows(t *testing.T) {
	h := newHarness(t, ab()...)

	rows := h.m.All()
	require.Len(t, rows, 2)
	rows[0].Set("name", value.String("via all"))
	assert.Equal(t, 1, h.m.Pending())

	rows[0] = nil
	assert.NotNil(t, h.m.At(0), "the returned slice is a copy")
	assert.Nil(t, h.m.At(2))
	assert.Nil(t, h.m.At(-1))
}

func TestFlushFailure_ReportedNotRetried(t *testing.T) {
	h := newHarness(t, ab()...)
	boom := errors.New("disk full")
	h.gw.Fail("upsert", boom)

	h.m.At(0).Set("name", value.String("lost"))
	h.elapse()

	results := h.results()
	require.Len(t, results, 1)
	assert.Equal(t, "batch-1", results[0].BatchID)
	assert.Equal(t, []int64{0}, results[0].Saved)
	require.Error(t, results[0].Err)
	assert.True(t, store.IsGatewayError(results[0].Err))
	assert.ErrorIs(t, results[0].Err, boom)

	// No retry, nothing re-queued, in-memory state kept.
	assert.Zero(t, h.m.Pending())
	assert.Zero(t, h.timers.Armed())
	h.timers.Advance(10 * testDebounce)
	assert.Len(t, h.gw.CallsFor("upsert"), 1)
	name, _ := h.m.At(0).Get("name")
	assert.Equal(t, value.String("lost"), name)
	assert.Equal(t, value.String("a"), h.gw.Rows(items)[0]["name"])
}

func TestFlushFailure_BothStatementsCombined(t *testing.T) {
	h := newHarness(t, named("a", "b", "c")...)
	h.gw.Fail("upsert", errors.New("upsert down"))
	h.gw.Fail("delete", errors.New("delete down"))

	h.m.Splice(0, 1)
	err := h.m.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert down")
	assert.Contains(t, err.Error(), "delete down")
}

func TestFlush_Synchronous(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(1).Set("name", value.String("now"))
	require.Equal(t, 1, h.timers.Armed())

	require.NoError(t, h.m.Flush(context.Background()))
	assert.Zero(t, h.timers.Armed(), "explicit flush stops the pending timer")
	assert.Len(t, h.gw.CallsFor("upsert"), 1)
	assert.Zero(t, h.m.Pending())

	// Nothing queued: no statements.
	require.NoError(t, h.m.Flush(context.Background()))
	assert.Len(t, h.gw.CallsFor("upsert"), 1)
	assert.Len(t, h.results(), 1)
}

func TestClose_FlushesAndStopsTracking(t *testing.T) {
	h := newHarness(t, ab()...)

	h.m.At(0).Set("name", value.String("closing"))
	require.NoError(t, h.m.Close(context.Background()))
	assert.Equal(t, value.String("closing"), h.gw.Rows(items)[0]["name"])
	assert.Zero(t, h.timers.Armed())

	row := h.m.At(0)
	row.Set("name", value.String("after close"))
	h.m.Push(value.Object{"name": value.String("late")})
	assert.Zero(t, h.m.Pending())
	assert.Zero(t, h.timers.Armed())

	name, _ := row.Get("name")
	assert.Equal(t, value.String("after close"), name, "memory still reflects the write")
	assert.Equal(t, 3, h.m.Len())

	require.NoError(t, h.m.Close(context.Background()), "second close is a no-op")
	assert.Len(t, h.gw.CallsFor("upsert"), 1)
}

func TestBatchIDs_DefaultUUIDv7(t *testing.T) {
	gw := testutil.NewRecordingGateway()
	gw.Seed(items, ab()...)
	var got FlushResult
	m, err := Open(context.Background(), gw, Options{
		Table:   "items",
		OnFlush: func(res FlushResult) { got = res },
	})
	require.NoError(t, err)

	m.At(0).Set("name", value.String("x"))
	require.NoError(t, m.Flush(context.Background()))
	assert.Len(t, got.BatchID, 36)
	assert.Equal(t, byte('7'), got.BatchID[14], "version nibble")
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("first")
	assert.Equal(t, "first", g.Generate())
	assert.Equal(t, "batch-2", g.Generate())
}

func TestOpKind_String(t *testing.T) {
	assert.Equal(t, "save", OpSave.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "unknown", OpKind(0).String())
}
