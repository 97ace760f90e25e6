package mirror

// OpKind is the kind of a pending operation.
type OpKind int

const (
	// OpSave upserts the row's state at flush time.
	OpSave OpKind = iota + 1
	// OpDelete deletes the identity the row had when it was removed.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSave:
		return "save"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// pendingOp is the latest operation queued for one row.
// Row is a reference, not a copy: saves read the row when the batch is cut.
type pendingOp struct {
	Kind OpKind
	Row  *Row
	Idx  int64 // identity to delete, for OpDelete
}

// opQueue holds at most one pending operation per row.
//
// Keys are row objects rather than identities, so a removed row and a new
// row that ends up with the same idx stay distinct entries. orphans holds
// identities left behind at the end of the table by a shrinking splice.
//
// Not safe for concurrent use; the mirror lock guards it.
type opQueue struct {
	ops     map[*Row]pendingOp
	orphans map[int64]struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{
		ops:     make(map[*Row]pendingOp),
		orphans: make(map[int64]struct{}),
	}
}

// put records op for its row, replacing whatever was queued before.
func (q *opQueue) put(op pendingOp) {
	q.ops[op.Row] = op
}

func (q *opQueue) orphan(idx int64) {
	q.orphans[idx] = struct{}{}
}

// claim drops an orphaned identity that a live row now occupies.
func (q *opQueue) claim(idx int64) {
	delete(q.orphans, idx)
}

func (q *opQueue) len() int {
	return len(q.ops) + len(q.orphans)
}
