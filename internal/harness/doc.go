// Package harness runs YAML scenarios against a mirror backed by an
// in-memory recording gateway.
//
// A scenario seeds a table, applies a list of steps (field writes, pushes,
// splices, virtual time advances, forced gateway failures), then checks
// assertions on the statements issued and on the final store and memory
// state. The statement trace can also be compared against a golden file:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden. Timers, batch IDs and the gateway are all
// deterministic, so the same scenario always produces the same trace.
package harness
