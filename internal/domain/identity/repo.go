package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no row matches the given key.
var ErrNotFound = errors.New("not found")

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByNIC(ctx context.Context, nic string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetBySLMC(ctx context.Context, slmc string) (*Doctor, error)
}

type PharmacyRepository interface {
	Create(ctx context.Context, ph *Pharmacy) error
	GetByLicense(ctx context.Context, license string) (*Pharmacy, error)
}
