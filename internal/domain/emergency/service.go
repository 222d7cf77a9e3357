// Package emergency implements walk-in profile access: a doctor opening a
// patient's record face to face, bypassing the access-request queue. The
// patient is alerted about the access after the fact.
package emergency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccessGrant is one walk-in access on record. It is not a work item; the
// queue is deliberately not involved.
type AccessGrant struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientNIC  string    `db:"patient_nic" json:"patient_nic"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	DoctorSLMC  string    `db:"doctor_slmc" json:"doctor_slmc"`
	DoctorName  string    `db:"doctor_name" json:"doctor_name"`
	GrantedAt   time.Time `db:"granted_at" json:"granted_at"`
	// Notified reports whether the patient alert was enqueued. Access is
	// granted either way.
	Notified bool `db:"notified" json:"notified"`
}

// Directory validates both parties and supplies display names.
type Directory interface {
	PatientName(ctx context.Context, nic string) (string, error)
	DoctorName(ctx context.Context, slmc string) (string, error)
}

// Notifier enqueues the patient alert. Failure must not undo the access.
type Notifier interface {
	WalkInAccess(ctx context.Context, patientNIC, doctorName string) error
}

type Service struct {
	repo     Repository
	dir      Directory
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, dir Directory, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, log: log}
}

// WalkInAccess grants a doctor immediate access to a patient's profile,
// records the grant, and alerts the patient, best effort. An alert failure
// is logged and the grant still recorded and returned; a failure to record
// refuses the access, since an unaudited walk-in must not happen.
func (s *Service) WalkInAccess(ctx context.Context, doctorSLMC, patientNIC string) (*AccessGrant, error) {
	if doctorSLMC == "" {
		return nil, fmt.Errorf("doctor_slmc is required")
	}
	if patientNIC == "" {
		return nil, fmt.Errorf("patient_nic is required")
	}
	doctorName, err := s.dir.DoctorName(ctx, doctorSLMC)
	if err != nil {
		return nil, fmt.Errorf("unknown doctor %s: %w", doctorSLMC, err)
	}
	patientName, err := s.dir.PatientName(ctx, patientNIC)
	if err != nil {
		return nil, fmt.Errorf("unknown patient %s: %w", patientNIC, err)
	}

	grant := &AccessGrant{
		PatientNIC:  patientNIC,
		PatientName: patientName,
		DoctorSLMC:  doctorSLMC,
		DoctorName:  doctorName,
		GrantedAt:   time.Now().UTC(),
		Notified:    true,
	}
	if err := s.notifier.WalkInAccess(ctx, patientNIC, doctorName); err != nil {
		s.log.Warn().Err(err).
			Str("patient_nic", patientNIC).
			Str("doctor_slmc", doctorSLMC).
			Msg("walk-in access notification failed")
		grant.Notified = false
	}
	if err := s.repo.Insert(ctx, grant); err != nil {
		return nil, fmt.Errorf("record walk-in access: %w", err)
	}
	return grant, nil
}

// GrantsForPatient returns the patient's walk-in audit trail, most recent
// first.
func (s *Service) GrantsForPatient(ctx context.Context, nic string, limit, offset int) ([]*AccessGrant, int, error) {
	if nic == "" {
		return nil, 0, fmt.Errorf("patient_nic is required")
	}
	return s.repo.ListByPatient(ctx, nic, limit, offset)
}
