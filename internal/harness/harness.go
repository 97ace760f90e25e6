package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/tablemirror/internal/mirror"
	"github.com/roach88/tablemirror/internal/store"
	"github.com/roach88/tablemirror/internal/testutil"
	"github.com/roach88/tablemirror/internal/value"
)

// Debounce is the window every scenario mirror runs with. Advance steps
// are expressed against it.
const Debounce = 100 * time.Millisecond

// Run executes a scenario and returns the observed trace.
//
// Step failures (bad row positions, missing paths) abort the run with an
// error. Assertion failures do not: they are collected in Result.Errors
// and clear Result.Pass.
func Run(s *Scenario) (*Result, error) {
	ctx := context.Background()

	tableName := s.Table
	if tableName == "" {
		tableName = "items"
	}
	table, err := store.ParseTable(tableName, store.DefaultWriteSchema)
	if err != nil {
		return nil, err
	}

	seed, err := toObjects(s.Seed)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	gw := testutil.NewRecordingGateway()
	gw.Seed(table, seed...)
	timers := testutil.NewManualTimers()

	result := &Result{Scenario: s.Name}
	var mu sync.Mutex

	m, err := mirror.Open(ctx, gw, mirror.Options{
		Table:     table.String(),
		Debounce:  Debounce,
		PruneTail: s.PruneTail,
		OnFlush: func(res mirror.FlushResult) {
			mu.Lock()
			defer mu.Unlock()
			result.Flushes = append(result.Flushes, res)
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		AfterFunc: func(d time.Duration, f func()) mirror.Timer {
			return timers.AfterFunc(d, f)
		},
		BatchIDs: mirror.NewFixedGenerator(),
	})
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	for i, step := range s.Steps {
		if err := applyStep(ctx, m, gw, timers, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}
	m.Wait()

	for _, c := range gw.Calls() {
		if c.Op != "upsert" && c.Op != "delete" {
			continue
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:  len(result.Trace) + 1,
			Op:   c.Op,
			Rows: c.Rows,
			IDs:  c.IDs,
		})
	}
	result.Pending = m.Pending()
	for _, r := range m.All() {
		result.Memory = append(result.Memory, r.Snapshot())
	}
	result.Store = gw.Rows(table)
	slices.SortFunc(result.Store, compareIdx)

	if err := EvaluateAssertions(result, s.Assertions); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.Pass = len(result.Errors) == 0
	return result, nil
}

func applyStep(ctx context.Context, m *mirror.Mirror, gw *testutil.RecordingGateway, timers *testutil.ManualTimers, step Step) error {
	switch step.Op {
	case OpSet:
		obj, key, err := resolvePath(m, step)
		if err != nil {
			return err
		}
		v, err := value.FromAny(step.Value)
		if err != nil {
			return err
		}
		obj.Set(key, v)

	case OpDelete:
		obj, key, err := resolvePath(m, step)
		if err != nil {
			return err
		}
		obj.Delete(key)

	case OpPush:
		rows, err := toObjects(step.Items)
		if err != nil {
			return err
		}
		for _, r := range rows {
			m.Push(r)
		}

	case OpSplice:
		rows, err := toObjects(step.Items)
		if err != nil {
			return err
		}
		m.Splice(step.Start, step.Count, rows...)

	case OpAdvance:
		timers.Advance(time.Duration(step.Ms) * time.Millisecond)
		m.Wait()

	case OpFlush:
		// The outcome is captured through OnFlush.
		_ = m.Flush(ctx)

	case OpFail:
		var err error
		if step.Error != "" {
			err = errors.New(step.Error)
		}
		gw.Fail(step.Target, err)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// resolvePath walks step.Path down to the object holding its last element.
func resolvePath(m *mirror.Mirror, step Step) (*value.TrackedObject, string, error) {
	row := m.At(step.Row)
	if row == nil {
		return nil, "", fmt.Errorf("row %d out of range (len %d)", step.Row, m.Len())
	}
	obj := row.Fields()
	for _, p := range step.Path[:len(step.Path)-1] {
		next, ok := obj.GetObject(p)
		if !ok {
			return nil, "", fmt.Errorf("path %v: %q is not an object", step.Path, p)
		}
		obj = next
	}
	return obj, step.Path[len(step.Path)-1], nil
}

func toObjects(in []map[string]any) ([]value.Object, error) {
	out := make([]value.Object, 0, len(in))
	for i, raw := range in {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		obj, ok := v.(value.Object)
		if !ok {
			return nil, fmt.Errorf("item %d: expected object, got %T", i, v)
		}
		out = append(out, obj)
	}
	return out, nil
}

func compareIdx(a, b value.Object) int {
	ai, _ := a["idx"].(value.Int)
	bi, _ := b["idx"].(value.Int)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}
