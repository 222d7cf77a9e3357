package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the two queue flavors sharing the work_items table.
type Kind string

const (
	// KindAccessRequest is a patient asking a doctor for temporary record
	// access. Lifecycle: pending -> active -> completed.
	KindAccessRequest Kind = "access_request"
	// KindPharmacyOrder is a patient queueing a prescription for dispensing.
	// Lifecycle: pending -> completed, or pending -> cancelled.
	KindPharmacyOrder Kind = "pharmacy_order"
)

func (k Kind) Valid() bool {
	return k == KindAccessRequest || k == KindPharmacyOrder
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	// StatusCancelled marks a pharmacy order taken out of the queue without
	// dispensing, e.g. when its prescription was filled at another pharmacy.
	StatusCancelled Status = "cancelled"
)

// Outcome reports what admission did with a request.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyQueued Outcome = "already_queued"
	// OutcomeRejected only appears in batch results, where one bad item
	// must not sink the rest.
	OutcomeRejected Outcome = "rejected"
)

var (
	ErrNotFound = errors.New("work item not found")
	// ErrInvalidTransition is returned when the item's current status does
	// not permit the requested move. State is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyDispensed crosses the PrescriptionGate when the referenced
	// prescription already reached its terminal state, which happens when the
	// same prescription was queued at two pharmacies and the other one won.
	ErrAlreadyDispensed = errors.New("prescription already dispensed")
)

// ValidationError marks caller mistakes (unknown keys, missing or foreign
// prescription refs). Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// WorkItem is one entry in either queue. The requester's name is captured at
// admission so queue reads need no join; ids are serial because creation
// order drives FIFO display.
type WorkItem struct {
	ID           int64     `db:"id" json:"id"`
	Kind         Kind      `db:"kind" json:"kind"`
	RequesterNIC string    `db:"requester_nic" json:"requester_nic"`
	TargetKey    string    `db:"target_key" json:"target_key"`
	// PrescriptionID is set on pharmacy orders and pins the exact
	// prescription being dispensed. It never changes after admission.
	PrescriptionID *int64    `db:"prescription_id" json:"prescription_id,omitempty"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Status         Status    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt records when the item last changed status; for completed
	// items it is the completion time shown in history views.
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether a kind permits moving from one status to
// another. Status only moves forward; completed and cancelled are terminal.
func CanTransition(k Kind, from, to Status) bool {
	switch k {
	case KindAccessRequest:
		return (from == StatusPending && to == StatusActive) ||
			(from == StatusActive && to == StatusCompleted)
	case KindPharmacyOrder:
		return from == StatusPending && (to == StatusCompleted || to == StatusCancelled)
	}
	return false
}

// HistoryItem is a completed work item joined with display fields from the
// prescription it referenced.
type HistoryItem struct {
	WorkItem
	DoctorName  *string         `db:"doctor_name" json:"doctor_name,omitempty"`
	Medicines   json.RawMessage `db:"medicines" json:"medicines,omitempty"`
	DispensedAt *time.Time      `db:"dispensed_at" json:"dispensed_at,omitempty"`
}

// PrescriptionDetail is the slice of a prescription the order detail view
// needs, fed through the PrescriptionGate so this package stays decoupled
// from the prescription domain.
type PrescriptionDetail struct {
	ID          int64           `json:"id"`
	DoctorName  string          `json:"doctor_name"`
	Medicines   json.RawMessage `json:"medicines"`
	Status      string          `json:"status"`
	DispensedAt *time.Time      `json:"dispensed_at,omitempty"`
}

// OrderDetail is what a pharmacist sees when opening one queued order.
type OrderDetail struct {
	Item         *WorkItem           `json:"item"`
	Prescription *PrescriptionDetail `json:"prescription"`
}
