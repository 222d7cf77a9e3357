package prescription

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no prescription matches the given id.
	ErrNotFound = errors.New("prescription not found")
	// ErrAlreadyDispensed is returned when a terminal prescription is asked
	// to change state again.
	ErrAlreadyDispensed = errors.New("prescription already dispensed")
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id int64) (*Prescription, error)
	ListByPatient(ctx context.Context, nic string, limit, offset int) ([]*Prescription, int, error)
	// ListActiveByPatient returns the patient's not-yet-dispensed
	// prescriptions, newest first (the pharmacy check-in picker).
	ListActiveByPatient(ctx context.Context, nic string) ([]*Prescription, error)
	// MarkDispensed flips issued -> dispensed and stamps dispensed_at.
	// Honors a transaction carried in ctx. Returns ErrAlreadyDispensed if
	// the row is already terminal, ErrNotFound if it does not exist.
	MarkDispensed(ctx context.Context, id int64) error
}
