package mirror

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/testutil"
	"github.com/roach88/tablemirror/internal/value"
)

const testDebounce = 100 * time.Millisecond

var items = store.Table{Schema: "tk", Name: "items"}

// harness wires a mirror to a recording gateway and manual timers.
type harness struct {
	t      *testing.T
	gw     *testutil.RecordingGateway
	timers *testutil.ManualTimers
	m      *Mirror

	mu      sync.Mutex
	flushes []FlushResult
}

func newHarness(t *testing.T, rows ...value.Object) *harness {
	t.Helper()
	return openHarness(t, false, rows...)
}

// newPruningHarness is newHarness with Options.PruneTail on.
func newPruningHarness(t *testing.T, rows ...value.Object) *harness {
	t.Helper()
	return openHarness(t, true, rows...)
}

func openHarness(t *testing.T, pruneTail bool, rows ...value.Object) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		gw:     testutil.NewRecordingGateway(),
		timers: testutil.NewManualTimers(),
	}
	h.gw.Seed(items, rows...)

	opts := h.options()
	opts.PruneTail = pruneTail
	m, err := Open(context.Background(), h.gw, opts)
	require.NoError(t, err)
	h.m = m
	return h
}

func (h *harness) options() Options {
	return Options{
		Table:     "items",
		Debounce:  testDebounce,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		AfterFunc: manualAfterFunc(h.timers),
		BatchIDs:  NewFixedGenerator(),
		OnFlush: func(res FlushResult) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.flushes = append(h.flushes, res)
		},
	}
}

func manualAfterFunc(timers *testutil.ManualTimers) AfterFunc {
	return func(d time.Duration, f func()) Timer {
		return timers.AfterFunc(d, f)
	}
}

// elapse advances past the debounce window and waits for the flush.
func (h *harness) elapse() {
	h.timers.Advance(testDebounce)
	h.m.Wait()
}

func (h *harness) results() []FlushResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FlushResult(nil), h.flushes...)
}

func ab() []value.Object {
	return []value.Object{
		{"idx": value.Int(0), "name": value.String("a")},
		{"idx": value.Int(1), "name": value.String("b")},
	}
}

func named(names ...string) []value.Object {
	rows := make([]value.Object, len(names))
	for i, n := range names {
		rows[i] = value.Object{"idx": value.Int(int64(i)), "name": value.String(n)}
	}
	return rows
}

// blockingGateway holds upsert calls until release is closed.
type blockingGateway struct {
	*testutil.RecordingGateway
	entered chan struct{}
	release chan struct{}
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{
		RecordingGateway: testutil.NewRecordingGateway(),
		entered:          make(chan struct{}, 8),
		release:          make(chan struct{}),
	}
}

func (g *blockingGateway) UpsertByIdentity(ctx context.Context, t store.Table, rows []value.Object) (int64, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.RecordingGateway.UpsertByIdentity(ctx, t, rows)
}
