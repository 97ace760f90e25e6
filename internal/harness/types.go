package harness

import (
	"github.com/roach88/tablemirror/internal/mirror"
	"github.com/roach88/tablemirror/internal/value"
)

// Result is the outcome of running a scenario.
type Result struct {
	Scenario string
	Pass     bool
	Errors   []string

	// Trace holds the upsert and delete calls the gateway received, in
	// order. Existence checks and loads are omitted.
	Trace []TraceEvent

	// Flushes holds every FlushResult reported through OnFlush.
	Flushes []mirror.FlushResult

	// Pending is the queue length after the last step.
	Pending int

	// Memory holds snapshots of the mirror's rows, in order.
	Memory []value.Object

	// Store holds the gateway's rows, ascending by idx.
	Store []value.Object
}

// TraceEvent is one write the gateway received.
type TraceEvent struct {
	Seq  int
	Op   string         // "upsert" or "delete"
	Rows []value.Object // upsert payload
	IDs  []int64        // delete identities
}

// Snapshot converts the trace into a canonical-JSON-ready value.
func (r *Result) Snapshot() value.Object {
	trace := value.Array{}
	for _, ev := range r.Trace {
		entry := value.Object{
			"seq": value.Int(ev.Seq),
			"op":  value.String(ev.Op),
		}
		if ev.Op == "upsert" {
			rows := value.Array{}
			for _, row := range ev.Rows {
				rows = append(rows, row)
			}
			entry["rows"] = rows
		} else {
			entry["ids"] = intArray(ev.IDs)
		}
		trace = append(trace, entry)
	}

	flushes := value.Array{}
	for _, f := range r.Flushes {
		entry := value.Object{
			"batch":   value.String(f.BatchID),
			"saved":   intArray(f.Saved),
			"deleted": intArray(f.Deleted),
		}
		if f.Err != nil {
			entry["failed"] = value.Bool(true)
		}
		flushes = append(flushes, entry)
	}

	return value.Object{
		"scenario": value.String(r.Scenario),
		"trace":    trace,
		"flushes":  flushes,
	}
}

func intArray(ids []int64) value.Array {
	out := value.Array{}
	for _, id := range ids {
		out = append(out, value.Int(id))
	}
	return out
}
