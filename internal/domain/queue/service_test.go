package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockQueueRepo struct {
	nextID int64
	base   time.Time
	store  map[int64]*WorkItem
}

func newMockQueueRepo() *mockQueueRepo {
	return &mockQueueRepo{base: time.Now(), store: make(map[int64]*WorkItem)}
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *mockQueueRepo) Insert(_ context.Context, item *WorkItem) (Outcome, error) {
	for _, w := range m.store {
		if w.Kind == item.Kind && w.RequesterNIC == item.RequesterNIC &&
			w.TargetKey == item.TargetKey && sameRef(w.PrescriptionID, item.PrescriptionID) &&
			w.Status == StatusPending {
			*item = *w
			return OutcomeAlreadyQueued, nil
		}
	}
	m.nextID++
	item.ID = m.nextID
	item.Status = StatusPending
	item.CreatedAt = m.base.Add(time.Duration(m.nextID) * time.Millisecond)
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.store[item.ID] = &cp
	return OutcomeCreated, nil
}

func (m *mockQueueRepo) GetByID(_ context.Context, id int64) (*WorkItem, error) {
	w, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *mockQueueRepo) UpdateStatus(_ context.Context, id int64, from, to Status) (*WorkItem, error) {
	w, ok := m.store[id]
	if !ok || w.Status != from {
		return nil, ErrNotFound
	}
	w.Status = to
	w.UpdatedAt = time.Now()
	cp := *w
	return &cp, nil
}

func (m *mockQueueRepo) ListPending(_ context.Context, kind Kind, targetKey string) ([]*WorkItem, error) {
	var r []*WorkItem
	for id := int64(1); id <= m.nextID; id++ {
		w, ok := m.store[id]
		if ok && w.Kind == kind && w.TargetKey == targetKey && w.Status == StatusPending {
			cp := *w
			r = append(r, &cp)
		}
	}
	return r, nil
}

func (m *mockQueueRepo) Latest(_ context.Context, kind Kind, requesterNIC, targetKey string, prescriptionID *int64) (*WorkItem, error) {
	var latest *WorkItem
	for _, w := range m.store {
		if w.Kind != kind || w.RequesterNIC != requesterNIC || w.TargetKey != targetKey {
			continue
		}
		if prescriptionID != nil && !sameRef(w.PrescriptionID, prescriptionID) {
			continue
		}
		if latest == nil || w.ID > latest.ID {
			latest = w
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockQueueRepo) ListCompleted(_ context.Context, kind Kind, targetKey string, limit, offset int) ([]*HistoryItem, int, error) {
	var r []*HistoryItem
	for id := m.nextID; id >= 1; id-- {
		w, ok := m.store[id]
		if ok && w.Kind == kind && w.TargetKey == targetKey && w.Status == StatusCompleted {
			cp := *w
			r = append(r, &HistoryItem{WorkItem: cp})
		}
	}
	return r, len(r), nil
}

func (m *mockQueueRepo) snapshot() map[int64]WorkItem {
	snap := make(map[int64]WorkItem, len(m.store))
	for id, w := range m.store {
		snap[id] = *w
	}
	return snap
}

func (m *mockQueueRepo) restore(snap map[int64]WorkItem) {
	m.store = make(map[int64]*WorkItem, len(snap))
	for id, w := range snap {
		cp := w
		m.store[id] = &cp
	}
}

// -- Mock Directory --

type mockDirectory struct {
	patients   map[string]string
	doctors    map[string]string
	pharmacies map[string]string
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patients:   map[string]string{"P1": "Amal Perera", "P2": "Nimal Silva"},
		doctors:    map[string]string{"D1": "Dr. Fernando"},
		pharmacies: map[string]string{"PharmX": "City Pharmacy", "PharmY": "Lakeside Pharmacy"},
	}
}

func (d *mockDirectory) PatientName(_ context.Context, nic string) (string, error) {
	name, ok := d.patients[nic]
	if !ok {
		return "", fmt.Errorf("not found")
	}
	return name, nil
}

func (d *mockDirectory) DoctorName(_ context.Context, slmc string) (string, error) {
	name, ok := d.doctors[slmc]
	if !ok {
		return "", fmt.Errorf("not found")
	}
	return name, nil
}

func (d *mockDirectory) PharmacyName(_ context.Context, license string) (string, error) {
	name, ok := d.pharmacies[license]
	if !ok {
		return "", fmt.Errorf("not found")
	}
	return name, nil
}

// -- Mock PrescriptionGate --

type mockRx struct {
	owner     string
	dispensed bool
}

type mockGate struct {
	prescriptions map[int64]*mockRx
	// failDispense injects a failure after the work item write, exercising
	// the completion transaction's rollback.
	failDispense bool
}

func newMockGate() *mockGate {
	return &mockGate{prescriptions: map[int64]*mockRx{
		101: {owner: "P1"},
		102: {owner: "P1"},
		103: {owner: "P1"},
		201: {owner: "P2"},
	}}
}

func (g *mockGate) Dispensable(_ context.Context, id int64, patientNIC string) error {
	rx, ok := g.prescriptions[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	if rx.owner != patientNIC {
		return fmt.Errorf("belongs to another patient")
	}
	if rx.dispensed {
		return fmt.Errorf("already dispensed")
	}
	return nil
}

func (g *mockGate) MarkDispensed(_ context.Context, id int64) error {
	if g.failDispense {
		return fmt.Errorf("store unavailable")
	}
	rx, ok := g.prescriptions[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	if rx.dispensed {
		return ErrAlreadyDispensed
	}
	rx.dispensed = true
	return nil
}

func (g *mockGate) Detail(_ context.Context, id int64) (*PrescriptionDetail, error) {
	rx, ok := g.prescriptions[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	status := "issued"
	if rx.dispensed {
		status = "dispensed"
	}
	return &PrescriptionDetail{ID: id, DoctorName: "Dr. Fernando", Status: status}, nil
}

func (g *mockGate) snapshot() map[int64]mockRx {
	snap := make(map[int64]mockRx, len(g.prescriptions))
	for id, rx := range g.prescriptions {
		snap[id] = *rx
	}
	return snap
}

func (g *mockGate) restore(snap map[int64]mockRx) {
	g.prescriptions = make(map[int64]*mockRx, len(snap))
	for id, rx := range snap {
		cp := rx
		g.prescriptions[id] = &cp
	}
}

// -- Mock Transactor --

// mockTransactor mimics transaction semantics over the in-memory mocks:
// state written inside fn is thrown away when fn errors.
type mockTransactor struct {
	repo *mockQueueRepo
	gate *mockGate
}

func (t *mockTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	repoSnap := t.repo.snapshot()
	gateSnap := t.gate.snapshot()
	if err := fn(ctx); err != nil {
		t.repo.restore(repoSnap)
		t.gate.restore(gateSnap)
		return err
	}
	return nil
}

// -- Mock Notifier --

type mockNotifier struct {
	calls        int
	lastNIC      string
	lastPharmacy string
	fail         bool
}

func (n *mockNotifier) OrderDispensed(_ context.Context, patientNIC, pharmacyName string) error {
	n.calls++
	n.lastNIC = patientNIC
	n.lastPharmacy = pharmacyName
	if n.fail {
		return fmt.Errorf("notification store down")
	}
	return nil
}

type testEnv struct {
	svc      *Service
	repo     *mockQueueRepo
	gate     *mockGate
	notifier *mockNotifier
}

func newTestEnv() *testEnv {
	repo := newMockQueueRepo()
	gate := newMockGate()
	notifier := &mockNotifier{}
	svc := NewService(repo, newMockDirectory(), gate, notifier,
		&mockTransactor{repo: repo, gate: gate}, zerolog.Nop())
	return &testEnv{svc: svc, repo: repo, gate: gate, notifier: notifier}
}

func ref(id int64) *int64 { return &id }

// -- Admission --

func TestAdmit_Created(t *testing.T) {
	env := newTestEnv()
	item, outcome, err := env.svc.Admit(context.Background(), AdmitInput{
		Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("expected outcome created, got %q", outcome)
	}
	if item.Status != StatusPending {
		t.Errorf("expected status pending, got %q", item.Status)
	}
	if item.DisplayName != "Amal Perera" {
		t.Errorf("expected display name captured at admission, got %q", item.DisplayName)
	}
}

func TestAdmit_DuplicateReturnsExisting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	in := AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1"}

	first, _, err := env.svc.Admit(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, outcome, err := env.svc.Admit(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadyQueued {
		t.Errorf("expected outcome already_queued, got %q", outcome)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing item (id %d), got id %d", first.ID, second.ID)
	}
}

func TestAdmit_NewPendingAllowedAfterCompletion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	in := AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1"}

	first, _, _ := env.svc.Admit(ctx, in)
	if _, err := env.svc.TransitionAdmit(ctx, first.ID); err != nil {
		t.Fatalf("admit transition: %v", err)
	}
	if _, err := env.svc.TransitionComplete(ctx, first.ID); err != nil {
		t.Fatalf("complete transition: %v", err)
	}

	second, outcome, err := env.svc.Admit(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("dedup must only cover pending items, got %q", outcome)
	}
	if second.ID == first.ID {
		t.Error("expected a fresh work item after the first completed")
	}
}

func TestAdmit_ValidationFailures(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	cases := []struct {
		name string
		in   AdmitInput
	}{
		{"unknown kind", AdmitInput{Kind: "bogus", RequesterNIC: "P1", TargetKey: "D1"}},
		{"unknown requester", AdmitInput{Kind: KindAccessRequest, RequesterNIC: "nope", TargetKey: "D1"}},
		{"unknown doctor", AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "nope"}},
		{"unknown pharmacy", AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "nope", PrescriptionID: ref(101)}},
		{"access request with prescription", AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1", PrescriptionID: ref(101)}},
		{"order without prescription", AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX"}},
		{"order for another patient's prescription", AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(201)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.svc.Admit(ctx, tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

// -- Batch admission --

func TestAdmitBatch_PartialSuccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// 101 is already queued at the same pharmacy.
	if _, _, err := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	}); err != nil {
		t.Fatalf("seed admit: %v", err)
	}

	res, err := env.svc.AdmitBatch(ctx, KindPharmacyOrder, "P1", "PharmX", []int64{101, 102})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Admitted != 1 {
		t.Errorf("expected 1 admitted, got %d", res.Admitted)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.Results))
	}
	if res.Results[0].Outcome != OutcomeAlreadyQueued {
		t.Errorf("expected 101 already_queued, got %q", res.Results[0].Outcome)
	}
	if res.Results[1].Outcome != OutcomeCreated {
		t.Errorf("expected 102 created, got %q", res.Results[1].Outcome)
	}
}

func TestAdmitBatch_RejectedItemDoesNotSinkBatch(t *testing.T) {
	env := newTestEnv()
	env.gate.prescriptions[103].dispensed = true

	res, err := env.svc.AdmitBatch(context.Background(), KindPharmacyOrder, "P1", "PharmX",
		[]int64{102, 103, 999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Admitted != 1 {
		t.Errorf("expected 1 admitted, got %d", res.Admitted)
	}
	if res.Results[0].Outcome != OutcomeCreated {
		t.Errorf("expected 102 created, got %q", res.Results[0].Outcome)
	}
	for _, i := range []int{1, 2} {
		if res.Results[i].Outcome != OutcomeRejected {
			t.Errorf("expected result %d rejected, got %q", i, res.Results[i].Outcome)
		}
		if res.Results[i].Error == "" {
			t.Errorf("expected result %d to carry the rejection reason", i)
		}
	}
}

func TestAdmitBatch_WrongKind(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.AdmitBatch(context.Background(), KindAccessRequest, "P1", "D1", []int64{1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// -- Transitions --

func TestAccessRequestLifecycle(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item, _, err := env.svc.Admit(ctx, AdmitInput{
		Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1",
	})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	active, err := env.svc.TransitionAdmit(ctx, item.ID)
	if err != nil {
		t.Fatalf("transition admit: %v", err)
	}
	if active.Status != StatusActive {
		t.Errorf("expected active, got %q", active.Status)
	}

	// Admitting again is not legal; only completion is idempotent.
	if _, err := env.svc.TransitionAdmit(ctx, item.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	done, err := env.svc.TransitionComplete(ctx, item.ID)
	if err != nil {
		t.Fatalf("transition complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", done.Status)
	}
}

func TestTransitionAdmit_PharmacyOrderRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})
	if _, err := env.svc.TransitionAdmit(ctx, item.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionComplete_PendingAccessRequestRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1",
	})
	if _, err := env.svc.TransitionComplete(ctx, item.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completing an unadmitted request must fail, got %v", err)
	}
}

func TestTransitionComplete_Idempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	first, err := env.svc.TransitionComplete(ctx, item.ID)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	second, err := env.svc.TransitionComplete(ctx, item.ID)
	if err != nil {
		t.Fatalf("second complete must not error: %v", err)
	}
	if second.ID != first.ID || second.Status != StatusCompleted {
		t.Errorf("expected the same completed item back, got %+v", second)
	}
}

func TestTransitionComplete_DispensesPrescription(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	if _, err := env.svc.TransitionComplete(ctx, item.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !env.gate.prescriptions[101].dispensed {
		t.Error("expected prescription 101 dispensed")
	}
}

func TestTransitionComplete_AtomicRollback(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	env.gate.failDispense = true
	if _, err := env.svc.TransitionComplete(ctx, item.ID); err == nil {
		t.Fatal("expected completion to fail")
	}

	// Neither row may reflect completion.
	cur, err := env.repo.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.Status != StatusPending {
		t.Errorf("expected work item rolled back to pending, got %q", cur.Status)
	}
	if env.gate.prescriptions[101].dispensed {
		t.Error("expected prescription untouched after rollback")
	}

	// The same completion succeeds once the store recovers.
	env.gate.failDispense = false
	done, err := env.svc.TransitionComplete(ctx, item.ID)
	if err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if done.Status != StatusCompleted || !env.gate.prescriptions[101].dispensed {
		t.Error("expected both writes applied on retry")
	}
}

func TestTransitionComplete_DispensedElsewhere(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// The same prescription queued at two pharmacies; dedup keys on the
	// target, so both admissions succeed.
	atX, _, err := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})
	if err != nil {
		t.Fatalf("admit at PharmX: %v", err)
	}
	atY, _, err := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmY", PrescriptionID: ref(101),
	})
	if err != nil {
		t.Fatalf("admit at PharmY: %v", err)
	}

	if _, err := env.svc.TransitionComplete(ctx, atX.ID); err != nil {
		t.Fatalf("complete at PharmX: %v", err)
	}

	// The losing pharmacy gets an actionable error, not a blind failure.
	_, err = env.svc.TransitionComplete(ctx, atY.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for the dispensed-elsewhere order, got %v", err)
	}

	// The losing order is untouched and can be cancelled out of the queue.
	cur, err := env.repo.GetByID(ctx, atY.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.Status != StatusPending {
		t.Fatalf("expected the order still pending after the failed completion, got %q", cur.Status)
	}
	cancelled, err := env.svc.TransitionCancel(ctx, atY.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %q", cancelled.Status)
	}
}

func TestTransitionCancel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	order, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	first, err := env.svc.TransitionCancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %q", first.Status)
	}
	if env.gate.prescriptions[101].dispensed {
		t.Error("cancelling must not dispense the prescription")
	}

	// Cancelling again returns the item unchanged.
	second, err := env.svc.TransitionCancel(ctx, order.ID)
	if err != nil {
		t.Fatalf("repeat cancel must not error: %v", err)
	}
	if second.ID != first.ID || second.Status != StatusCancelled {
		t.Errorf("expected the same cancelled item back, got %+v", second)
	}

	// A cancelled order cannot be completed afterwards.
	if _, err := env.svc.TransitionComplete(ctx, order.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition completing a cancelled order, got %v", err)
	}
}

func TestTransitionCancel_AccessRequestRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1",
	})
	if _, err := env.svc.TransitionCancel(ctx, item.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionComplete_NotifiesPatient(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	if _, err := env.svc.TransitionComplete(ctx, item.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if env.notifier.calls != 1 {
		t.Fatalf("expected one dispense notification, got %d", env.notifier.calls)
	}
	if env.notifier.lastNIC != "P1" || env.notifier.lastPharmacy != "City Pharmacy" {
		t.Errorf("unexpected notification payload: %+v", env.notifier)
	}

	// Repeating the idempotent completion must not notify again.
	if _, err := env.svc.TransitionComplete(ctx, item.ID); err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	if env.notifier.calls != 1 {
		t.Errorf("expected no second notification, got %d calls", env.notifier.calls)
	}
}

func TestTransitionComplete_NotifierFailureDoesNotFail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.notifier.fail = true
	item, _, _ := env.svc.Admit(ctx, AdmitInput{
		Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101),
	})

	done, err := env.svc.TransitionComplete(ctx, item.ID)
	if err != nil {
		t.Fatalf("completion must survive a notification failure, got %v", err)
	}
	if done.Status != StatusCompleted || !env.gate.prescriptions[101].dispensed {
		t.Error("expected the completion applied despite the failed notification")
	}
}

func TestTransitionComplete_NotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.TransitionComplete(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// -- Reads --

func TestPendingFor_FIFOOrder(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1"})
	second, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P2", TargetKey: "D1"})

	items, err := env.svc.PendingFor(ctx, KindAccessRequest, "D1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(items))
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Errorf("expected oldest first [%d, %d], got [%d, %d]",
			first.ID, second.ID, items[0].ID, items[1].ID)
	}
}

func TestLatestStatusFor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.LatestStatusFor(ctx, KindAccessRequest, "P1", "D1", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before admission, got %v", err)
	}

	item, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1"})
	got, err := env.svc.LatestStatusFor(ctx, KindAccessRequest, "P1", "D1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != item.ID || got.Status != StatusPending {
		t.Errorf("expected pending item %d, got %+v", item.ID, got)
	}

	// The poll observes the transition.
	if _, err := env.svc.TransitionAdmit(ctx, item.ID); err != nil {
		t.Fatalf("transition: %v", err)
	}
	got, err = env.svc.LatestStatusFor(ctx, KindAccessRequest, "P1", "D1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("expected active, got %q", got.Status)
	}
}

func TestHistoryFor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101)})
	b, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(102)})
	for _, id := range []int64{a.ID, b.ID} {
		if _, err := env.svc.TransitionComplete(ctx, id); err != nil {
			t.Fatalf("complete %d: %v", id, err)
		}
	}

	items, total, err := env.svc.HistoryFor(ctx, KindPharmacyOrder, "PharmX", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 completed items, got %d (total %d)", len(items), total)
	}
	for _, h := range items {
		if h.Status != StatusCompleted {
			t.Errorf("history must only contain completed items, got %q", h.Status)
		}
	}
}

func TestOrderDetail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindPharmacyOrder, RequesterNIC: "P1", TargetKey: "PharmX", PrescriptionID: ref(101)})
	detail, err := env.svc.OrderDetail(ctx, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Prescription.ID != 101 {
		t.Errorf("expected the exact referenced prescription 101, got %d", detail.Prescription.ID)
	}

	access, _, _ := env.svc.Admit(ctx, AdmitInput{Kind: KindAccessRequest, RequesterNIC: "P1", TargetKey: "D1"})
	var verr *ValidationError
	if _, err := env.svc.OrderDetail(ctx, access.ID); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for non-order item, got %v", err)
	}
}
