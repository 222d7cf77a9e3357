package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for display. Alerts are the ones a patient
// should not miss, like a walk-in access to their record.
type Type string

const (
	TypeInfo  Type = "info"
	TypeAlert Type = "alert"
)

// Notification is one entry in a patient's feed.
type Notification struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientNIC string     `db:"patient_nic" json:"patient_nic"`
	Type       Type       `db:"type" json:"type"`
	Message    string     `db:"message" json:"message"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

func (n *Notification) Read() bool {
	return n.ReadAt != nil
}
