package prescription

import (
	"encoding/json"
	"time"
)

// Status values for a prescription. Issued prescriptions can be queued for
// dispensing; dispensed ones are terminal.
const (
	StatusIssued    = "issued"
	StatusDispensed = "dispensed"
)

// Prescription maps to the prescriptions table. The doctor's name is
// denormalized at issue time so queue and history reads need no join against
// the doctors table.
type Prescription struct {
	ID          int64           `db:"id" json:"id"`
	PatientNIC  string          `db:"patient_nic" json:"patient_nic"`
	DoctorSLMC  string          `db:"doctor_slmc" json:"doctor_slmc"`
	DoctorName  string          `db:"doctor_name" json:"doctor_name"`
	Medicines   json.RawMessage `db:"medicines" json:"medicines"`
	Status      string          `db:"status" json:"status"`
	DispensedAt *time.Time      `db:"dispensed_at" json:"dispensed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Dispensed reports whether the prescription has already been filled.
func (p *Prescription) Dispensed() bool {
	return p.Status == StatusDispensed
}
