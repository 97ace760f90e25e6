package harness

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/tablemirror/internal/value"
)

// Assertion checks one property of a Result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op selects the gateway op for statement_count.
	Op string `yaml:"op,omitempty"`

	// Count is the expected number for statement_count, pending and
	// flush_errors.
	Count int `yaml:"count,omitempty"`

	// Rows is the expected state for store_state and memory_state.
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Assertion types.
const (
	AssertStatementCount = "statement_count"
	AssertStoreState     = "store_state"
	AssertMemoryState    = "memory_state"
	AssertPending        = "pending"
	AssertFlushErrors    = "flush_errors"
)

func knownAssertion(t string) bool {
	switch t {
	case AssertStatementCount, AssertStoreState, AssertMemoryState, AssertPending, AssertFlushErrors:
		return true
	}
	return false
}

// EvaluateAssertions checks every assertion against result and returns
// all failures combined, or nil.
func EvaluateAssertions(result *Result, assertions []Assertion) error {
	var errs *multierror.Error
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("assertion %d (%s): %w", i, a.Type, err))
		}
	}
	return errs.ErrorOrNil()
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStatementCount:
		got := 0
		for _, ev := range result.Trace {
			if a.Op == "" || ev.Op == a.Op {
				got++
			}
		}
		if got != a.Count {
			return fmt.Errorf("expected %d %q statements, got %d", a.Count, a.Op, got)
		}

	case AssertPending:
		if result.Pending != a.Count {
			return fmt.Errorf("expected %d pending, got %d", a.Count, result.Pending)
		}

	case AssertFlushErrors:
		got := 0
		for _, f := range result.Flushes {
			if f.Err != nil {
				got++
			}
		}
		if got != a.Count {
			return fmt.Errorf("expected %d failed flushes, got %d", a.Count, got)
		}

	case AssertStoreState:
		want, err := toObjects(a.Rows)
		if err != nil {
			return err
		}
		slices.SortFunc(want, compareIdx)
		return compareRows(want, result.Store)

	case AssertMemoryState:
		want, err := toObjects(a.Rows)
		if err != nil {
			return err
		}
		return compareRows(want, result.Memory)

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// compareRows compares rows by canonical encoding; value.Equal only
// checks composites by reference.
func compareRows(want, got []value.Object) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		w, err := value.MarshalCanonical(want[i])
		if err != nil {
			return err
		}
		g, err := value.MarshalCanonical(got[i])
		if err != nil {
			return err
		}
		if !bytes.Equal(w, g) {
			return fmt.Errorf("row %d: expected %s, got %s", i, w, g)
		}
	}
	return nil
}
