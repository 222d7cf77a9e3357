package prescription

import (
	"context"
	"encoding/json"
	"fmt"
)

// DoctorDirectory resolves the issuing doctor's display name, captured on the
// prescription at issue time.
type DoctorDirectory interface {
	DoctorName(ctx context.Context, slmc string) (string, error)
}

// PatientDirectory confirms the patient exists before a prescription is
// written against their record.
type PatientDirectory interface {
	PatientName(ctx context.Context, nic string) (string, error)
}

type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientDirectory
}

func NewService(repo Repository, doctors DoctorDirectory, patients PatientDirectory) *Service {
	return &Service{repo: repo, doctors: doctors, patients: patients}
}

func (s *Service) Issue(ctx context.Context, p *Prescription) error {
	if p.PatientNIC == "" {
		return fmt.Errorf("patient_nic is required")
	}
	if p.DoctorSLMC == "" {
		return fmt.Errorf("doctor_slmc is required")
	}
	if len(p.Medicines) == 0 || string(p.Medicines) == "null" {
		return fmt.Errorf("medicines is required")
	}
	if !json.Valid(p.Medicines) {
		return fmt.Errorf("medicines must be valid JSON")
	}
	if _, err := s.patients.PatientName(ctx, p.PatientNIC); err != nil {
		return fmt.Errorf("unknown patient %s: %w", p.PatientNIC, err)
	}
	name, err := s.doctors.DoctorName(ctx, p.DoctorSLMC)
	if err != nil {
		return fmt.Errorf("unknown doctor %s: %w", p.DoctorSLMC, err)
	}
	p.DoctorName = name
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id int64) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, nic string, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByPatient(ctx, nic, limit, offset)
}

func (s *Service) ListActiveByPatient(ctx context.Context, nic string) ([]*Prescription, error) {
	return s.repo.ListActiveByPatient(ctx, nic)
}

// -- Gate consumed by the queue domain --

// Dispensable checks that the prescription exists, belongs to the given
// patient, and has not been dispensed yet.
func (s *Service) Dispensable(ctx context.Context, id int64, patientNIC string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.PatientNIC != patientNIC {
		return fmt.Errorf("prescription %d does not belong to patient %s", id, patientNIC)
	}
	if p.Dispensed() {
		return ErrAlreadyDispensed
	}
	return nil
}

// MarkDispensed is called by the queue's completion transaction; the tx in
// ctx makes the work item and prescription writes atomic.
func (s *Service) MarkDispensed(ctx context.Context, id int64) error {
	return s.repo.MarkDispensed(ctx, id)
}
