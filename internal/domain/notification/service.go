package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID   string
	Type Type
	Body string
}

// TemplateEngine renders the small set of message templates the product
// sends. Keys present in the template but absent from data are left as-is.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

const (
	// TemplateWalkInAccess is the alert fired when a doctor opens a
	// patient's record without a queued access request.
	TemplateWalkInAccess = "walk-in-access"
	// TemplateOrderDispensed tells the patient their prescription was
	// filled.
	TemplateOrderDispensed = "order-dispensed"
)

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:   TemplateWalkInAccess,
			Type: TypeAlert,
			Body: "Dr. {{doctor_name}} accessed your medical profile during a walk-in visit.",
		},
		{
			ID:   TemplateOrderDispensed,
			Type: TypeInfo,
			Body: "Your prescription has been dispensed at {{pharmacy_name}}.",
		},
	} {
		t := t
		e.templates[t.ID] = &t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (Type, string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}
	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return t.Type, body, nil
}

type Service struct {
	repo      Repository
	templates *TemplateEngine
}

func NewService(repo Repository, templates *TemplateEngine) *Service {
	return &Service{repo: repo, templates: templates}
}

// Notify appends a raw message to the patient's feed.
func (s *Service) Notify(ctx context.Context, nic string, typ Type, message string) (*Notification, error) {
	if nic == "" {
		return nil, fmt.Errorf("patient_nic is required")
	}
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	n := &Notification{PatientNIC: nic, Type: typ, Message: message}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// NotifyTemplate renders a template and appends the result to the feed.
// This is the enqueue side of the walk-in access hook.
func (s *Service) NotifyTemplate(ctx context.Context, nic, templateID string, data map[string]string) (*Notification, error) {
	typ, body, err := s.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	return s.Notify(ctx, nic, typ, body)
}

func (s *Service) ListForPatient(ctx context.Context, nic string, limit, offset int) ([]*Notification, int, error) {
	if nic == "" {
		return nil, 0, fmt.Errorf("patient_nic is required")
	}
	return s.repo.ListByPatient(ctx, nic, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.repo.MarkRead(ctx, id)
}
