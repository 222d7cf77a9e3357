package identity

import (
	"context"
	"fmt"
)

type Service struct {
	patients   PatientRepository
	doctors    DoctorRepository
	pharmacies PharmacyRepository
}

func NewService(patients PatientRepository, doctors DoctorRepository, pharmacies PharmacyRepository) *Service {
	return &Service{patients: patients, doctors: doctors, pharmacies: pharmacies}
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.NIC == "" {
		return fmt.Errorf("nic is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) RegisterDoctor(ctx context.Context, d *Doctor) error {
	if d.SLMCNumber == "" {
		return fmt.Errorf("slmc_number is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) RegisterPharmacy(ctx context.Context, ph *Pharmacy) error {
	if ph.LicenseNumber == "" {
		return fmt.Errorf("license_number is required")
	}
	if ph.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.pharmacies.Create(ctx, ph)
}

func (s *Service) GetPatient(ctx context.Context, nic string) (*Patient, error) {
	return s.patients.GetByNIC(ctx, nic)
}

func (s *Service) GetDoctor(ctx context.Context, slmc string) (*Doctor, error) {
	return s.doctors.GetBySLMC(ctx, slmc)
}

func (s *Service) GetPharmacy(ctx context.Context, license string) (*Pharmacy, error) {
	return s.pharmacies.GetByLicense(ctx, license)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.NIC == "" {
		return fmt.Errorf("nic is required")
	}
	return s.patients.Update(ctx, p)
}

// -- Directory lookups consumed by the queue and emergency domains --

// PatientName resolves a patient NIC to the display name captured on queue
// entries. Returns ErrNotFound for unknown NICs.
func (s *Service) PatientName(ctx context.Context, nic string) (string, error) {
	p, err := s.patients.GetByNIC(ctx, nic)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// DoctorName resolves an SLMC number to the doctor's display name.
func (s *Service) DoctorName(ctx context.Context, slmc string) (string, error) {
	d, err := s.doctors.GetBySLMC(ctx, slmc)
	if err != nil {
		return "", err
	}
	return d.Name, nil
}

// PharmacyName resolves a license number to the pharmacy's display name.
func (s *Service) PharmacyName(ctx context.Context, license string) (string, error) {
	ph, err := s.pharmacies.GetByLicense(ctx, license)
	if err != nil {
		return "", err
	}
	return ph.Name, nil
}
