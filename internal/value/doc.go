// Package value provides the row payload tree and its mutation tracker.
//
// Rows hold arbitrary nested data. The tree is a sealed set of types:
// Null, Bool, Int, Float, String, Array and Object, plus the tracked
// composites *TrackedObject and *TrackedArray returned by Track.
//
// Tracking rules:
//   - Scalars are never tracked; Track returns them unchanged
//   - Tracking is idempotent; the wrapper type is the marker
//   - Reading a composite child wraps it once and caches the wrapper in
//     place, so the same path always yields the same pointer
//   - Writes notify only when Equal reports a change (value equality for
//     scalars, reference identity for composites)
//   - Deletions always notify
//
// MarshalCanonical is the text encoding used for composite columns: keys
// in UTF-16 order, NFC-normalized strings, no HTML escaping.
//
// This package imports nothing internal.
package value
