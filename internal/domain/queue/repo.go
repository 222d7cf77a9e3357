package queue

import "context"

// Repository is the work item store. The admission service and the
// transition methods are its only writers; everything else is read-only.
type Repository interface {
	// Insert admits the item, enforcing at most one pending row per
	// (kind, requester, target, prescription ref) inside the store itself.
	// When a pending duplicate exists the existing row is loaded into item
	// and OutcomeAlreadyQueued is returned; no error.
	Insert(ctx context.Context, item *WorkItem) (Outcome, error)

	GetByID(ctx context.Context, id int64) (*WorkItem, error)

	// UpdateStatus moves id from one status to another in a single
	// compare-and-swap. Returns ErrNotFound when no row currently matches
	// (id, from); callers reload to tell "missing" from "wrong status".
	// Honors a transaction carried in ctx.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (*WorkItem, error)

	// ListPending returns a target's pending items oldest first. Always
	// re-reads the store; staff views must never see a stale queue.
	ListPending(ctx context.Context, kind Kind, targetKey string) ([]*WorkItem, error)

	// Latest returns the most recently created item matching the tuple,
	// any status, or ErrNotFound. prescriptionID narrows the match when
	// non-nil.
	Latest(ctx context.Context, kind Kind, requesterNIC, targetKey string, prescriptionID *int64) (*WorkItem, error)

	// ListCompleted returns a target's completed items newest first,
	// joined with prescription display fields.
	ListCompleted(ctx context.Context, kind Kind, targetKey string, limit, offset int) ([]*HistoryItem, int, error)
}
