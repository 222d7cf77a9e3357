package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListByPatient returns a patient's notifications newest first.
	ListByPatient(ctx context.Context, nic string, limit, offset int) ([]*Notification, int, error)
	// MarkRead stamps read_at; marking twice keeps the first stamp.
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
}
