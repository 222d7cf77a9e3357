package queue

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/medqueue/medqueue/internal/platform/db"
)

// Directory resolves external identity keys. Unknown keys come back as
// errors; the concrete lookup lives in the identity domain.
type Directory interface {
	PatientName(ctx context.Context, nic string) (string, error)
	DoctorName(ctx context.Context, slmc string) (string, error)
	PharmacyName(ctx context.Context, license string) (string, error)
}

// PrescriptionGate is the slice of the prescription domain the queue needs:
// admission-time eligibility, the dispensing write joined into the
// completion transaction, and display fields for the order detail view.
type PrescriptionGate interface {
	// Dispensable fails when id does not exist, belongs to another
	// patient, or is already dispensed.
	Dispensable(ctx context.Context, id int64, patientNIC string) error
	// MarkDispensed must honor a transaction carried in ctx and return
	// ErrAlreadyDispensed when the prescription is already terminal.
	MarkDispensed(ctx context.Context, id int64) error
	Detail(ctx context.Context, id int64) (*PrescriptionDetail, error)
}

// Notifier feeds the requester's notification stream. Delivery is best
// effort; a failure never unwinds the transition it reports on.
type Notifier interface {
	OrderDispensed(ctx context.Context, patientNIC, pharmacyName string) error
}

type Service struct {
	repo     Repository
	dir      Directory
	rx       PrescriptionGate
	notifier Notifier
	tx       db.Transactor
	log      zerolog.Logger
}

func NewService(repo Repository, dir Directory, rx PrescriptionGate, notifier Notifier, tx db.Transactor, log zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, rx: rx, notifier: notifier, tx: tx, log: log}
}

// AdmitInput carries everything admission needs. Identity is always passed
// explicitly; the queue never reads ambient session state.
type AdmitInput struct {
	Kind           Kind   `json:"kind"`
	RequesterNIC   string `json:"requester_nic"`
	TargetKey      string `json:"target_key"`
	PrescriptionID *int64 `json:"prescription_id,omitempty"`
}

// Admit creates a pending work item, or returns the existing pending one
// for the same tuple with OutcomeAlreadyQueued. Duplicate submission is a
// success, not an error.
func (s *Service) Admit(ctx context.Context, in AdmitInput) (*WorkItem, Outcome, error) {
	if !in.Kind.Valid() {
		return nil, "", validationf("unknown work item kind %q", in.Kind)
	}
	if in.RequesterNIC == "" {
		return nil, "", validationf("requester_nic is required")
	}
	if in.TargetKey == "" {
		return nil, "", validationf("target_key is required")
	}

	name, err := s.dir.PatientName(ctx, in.RequesterNIC)
	if err != nil {
		return nil, "", validationf("unknown requester %s", in.RequesterNIC)
	}

	switch in.Kind {
	case KindAccessRequest:
		if in.PrescriptionID != nil {
			return nil, "", validationf("access requests do not take a prescription_id")
		}
		if _, err := s.dir.DoctorName(ctx, in.TargetKey); err != nil {
			return nil, "", validationf("unknown doctor %s", in.TargetKey)
		}
	case KindPharmacyOrder:
		if in.PrescriptionID == nil {
			return nil, "", validationf("pharmacy orders require a prescription_id")
		}
		if _, err := s.dir.PharmacyName(ctx, in.TargetKey); err != nil {
			return nil, "", validationf("unknown pharmacy %s", in.TargetKey)
		}
		if err := s.rx.Dispensable(ctx, *in.PrescriptionID, in.RequesterNIC); err != nil {
			return nil, "", validationf("prescription %d: %v", *in.PrescriptionID, err)
		}
	}

	item := &WorkItem{
		Kind:           in.Kind,
		RequesterNIC:   in.RequesterNIC,
		TargetKey:      in.TargetKey,
		PrescriptionID: in.PrescriptionID,
		DisplayName:    name,
		Status:         StatusPending,
	}
	outcome, err := s.repo.Insert(ctx, item)
	if err != nil {
		return nil, "", err
	}
	return item, outcome, nil
}

// BatchItemResult is the per-prescription outcome of a batch admission.
type BatchItemResult struct {
	PrescriptionID int64     `json:"prescription_id"`
	Outcome        Outcome   `json:"outcome"`
	Item           *WorkItem `json:"item,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// BatchResult reports what a batch admission did. Partial success is the
// normal case: rejected items never sink the rest.
type BatchResult struct {
	Admitted int               `json:"admitted"`
	Results  []BatchItemResult `json:"results"`
}

// AdmitBatch queues several prescriptions at one pharmacy in a single call.
// Each id is admitted independently under the same dedup rule.
func (s *Service) AdmitBatch(ctx context.Context, kind Kind, requesterNIC, targetKey string, prescriptionIDs []int64) (*BatchResult, error) {
	if kind != KindPharmacyOrder {
		return nil, validationf("batch admission is only for pharmacy orders")
	}
	if len(prescriptionIDs) == 0 {
		return nil, validationf("prescription_ids is required")
	}

	res := &BatchResult{Results: make([]BatchItemResult, 0, len(prescriptionIDs))}
	for _, id := range prescriptionIDs {
		id := id
		item, outcome, err := s.Admit(ctx, AdmitInput{
			Kind:           kind,
			RequesterNIC:   requesterNIC,
			TargetKey:      targetKey,
			PrescriptionID: &id,
		})
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			res.Results = append(res.Results, BatchItemResult{
				PrescriptionID: id, Outcome: OutcomeRejected, Error: verr.Msg,
			})
			continue
		}
		if outcome == OutcomeCreated {
			res.Admitted++
		}
		res.Results = append(res.Results, BatchItemResult{
			PrescriptionID: id, Outcome: outcome, Item: item,
		})
	}
	return res, nil
}

// TransitionAdmit moves an access request from pending to active. Pharmacy
// orders have no active state and are rejected here.
func (s *Service) TransitionAdmit(ctx context.Context, id int64) (*WorkItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != KindAccessRequest || !CanTransition(item.Kind, item.Status, StatusActive) {
		return nil, ErrInvalidTransition
	}
	updated, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusActive)
	if errors.Is(err, ErrNotFound) {
		// Lost a race; the row moved under us.
		return nil, ErrInvalidTransition
	}
	return updated, err
}

// TransitionComplete finishes a work item. Completing an already-completed
// item returns it unchanged; staff UIs double-click. For pharmacy orders the
// item write and the prescription's dispense write happen in one
// transaction, so a crash leaves both untouched rather than one applied.
func (s *Service) TransitionComplete(ctx context.Context, id int64) (*WorkItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status == StatusCompleted {
		return item, nil
	}

	switch item.Kind {
	case KindAccessRequest:
		updated, err := s.repo.UpdateStatus(ctx, id, StatusActive, StatusCompleted)
		if errors.Is(err, ErrNotFound) {
			return s.reloadAfterRace(ctx, id)
		}
		return updated, err

	case KindPharmacyOrder:
		if item.PrescriptionID == nil {
			return nil, validationf("order %d has no prescription reference; cannot dispense", id)
		}
		var updated *WorkItem
		err := s.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			updated, err = s.repo.UpdateStatus(ctx, id, StatusPending, StatusCompleted)
			if err != nil {
				return err
			}
			return s.rx.MarkDispensed(ctx, *item.PrescriptionID)
		})
		if errors.Is(err, ErrNotFound) {
			return s.reloadAfterRace(ctx, id)
		}
		if errors.Is(err, ErrAlreadyDispensed) {
			// Another pharmacy filled this prescription first. The order
			// stays pending; staff clear it with TransitionCancel.
			return nil, validationf("prescription %d was already dispensed elsewhere; cancel order %d instead", *item.PrescriptionID, id)
		}
		if err != nil {
			return nil, err
		}
		s.notifyDispensed(ctx, updated)
		return updated, nil
	}
	return nil, ErrInvalidTransition
}

// TransitionCancel takes a pharmacy order out of the queue without
// dispensing, the exit for orders whose prescription was filled at another
// pharmacy. Cancelling an already-cancelled order returns it unchanged.
func (s *Service) TransitionCancel(ctx context.Context, id int64) (*WorkItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != KindPharmacyOrder {
		return nil, ErrInvalidTransition
	}
	if item.Status == StatusCancelled {
		return item, nil
	}
	updated, err := s.repo.UpdateStatus(ctx, id, StatusPending, StatusCancelled)
	if errors.Is(err, ErrNotFound) {
		cur, gerr := s.repo.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if cur.Status == StatusCancelled {
			return cur, nil
		}
		return nil, ErrInvalidTransition
	}
	return updated, err
}

// notifyDispensed tells the patient their prescription was filled. The order
// is already completed when this runs, so failures are only logged.
func (s *Service) notifyDispensed(ctx context.Context, item *WorkItem) {
	if s.notifier == nil {
		return
	}
	pharmacyName, err := s.dir.PharmacyName(ctx, item.TargetKey)
	if err != nil {
		pharmacyName = item.TargetKey
	}
	if err := s.notifier.OrderDispensed(ctx, item.RequesterNIC, pharmacyName); err != nil {
		s.log.Warn().Err(err).
			Int64("work_item_id", item.ID).
			Str("patient_nic", item.RequesterNIC).
			Msg("dispense notification failed")
	}
}

// reloadAfterRace decides what a failed compare-and-swap means: a concurrent
// completion is still the idempotent success; anything else is an illegal
// move.
func (s *Service) reloadAfterRace(ctx context.Context, id int64) (*WorkItem, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == StatusCompleted {
		return cur, nil
	}
	return nil, ErrInvalidTransition
}

// Get returns a single work item by id.
func (s *Service) Get(ctx context.Context, id int64) (*WorkItem, error) {
	return s.repo.GetByID(ctx, id)
}

// OrderDetail returns a queued pharmacy order together with the exact
// prescription it references. Never falls back to "whatever is latest".
func (s *Service) OrderDetail(ctx context.Context, id int64) (*OrderDetail, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != KindPharmacyOrder {
		return nil, validationf("work item %d is not a pharmacy order", id)
	}
	if item.PrescriptionID == nil {
		return nil, validationf("order %d has no prescription reference", id)
	}
	rx, err := s.rx.Detail(ctx, *item.PrescriptionID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Item: item, Prescription: rx}, nil
}

// PendingFor returns a target's queue, oldest first.
func (s *Service) PendingFor(ctx context.Context, kind Kind, targetKey string) ([]*WorkItem, error) {
	if !kind.Valid() {
		return nil, validationf("unknown work item kind %q", kind)
	}
	if targetKey == "" {
		return nil, validationf("target_key is required")
	}
	return s.repo.ListPending(ctx, kind, targetKey)
}

// LatestStatusFor returns the requester's most recent item against a target,
// the read behind the requester's polling loop.
func (s *Service) LatestStatusFor(ctx context.Context, kind Kind, requesterNIC, targetKey string, prescriptionID *int64) (*WorkItem, error) {
	if !kind.Valid() {
		return nil, validationf("unknown work item kind %q", kind)
	}
	if requesterNIC == "" || targetKey == "" {
		return nil, validationf("requester_nic and target_key are required")
	}
	return s.repo.Latest(ctx, kind, requesterNIC, targetKey, prescriptionID)
}

// HistoryFor returns a target's completed items, most recent first.
func (s *Service) HistoryFor(ctx context.Context, kind Kind, targetKey string, limit, offset int) ([]*HistoryItem, int, error) {
	if !kind.Valid() {
		return nil, 0, validationf("unknown work item kind %q", kind)
	}
	if targetKey == "" {
		return nil, 0, validationf("target_key is required")
	}
	return s.repo.ListCompleted(ctx, kind, targetKey, limit, offset)
}
