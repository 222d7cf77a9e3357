package emergency

import "context"

// Repository stores the walk-in audit trail.
type Repository interface {
	Insert(ctx context.Context, g *AccessGrant) error
	// ListByPatient returns a patient's grants, most recent first, with the
	// total count for pagination.
	ListByPatient(ctx context.Context, nic string, limit, offset int) ([]*AccessGrant, int, error)
}
