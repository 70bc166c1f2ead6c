// Package notification is the hook the booking core calls when a
// doctor action cancels a patient's appointment. The core never sends
// anything itself; deployments plug in a real sender.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CancellationNotice describes one canceled appointment.
type CancellationNotice struct {
	SlotID      string
	DoctorID    string
	PatientName string
	Date        time.Time
	Reason      string
}

// Notifier receives cancellation notices. Implementations must be safe
// for concurrent use and must not block the caller for long; the
// booking core treats notification failure as non-fatal.
type Notifier interface {
	NotifyCancellation(ctx context.Context, n CancellationNotice) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      "appointment-canceled",
		Subject: "Your appointment on {{date}} was canceled",
		Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} has been canceled. {{reason}}",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Log Notifier
// ---------------------------------------------------------------------------

// LogNotifier renders the cancellation template and writes it to the
// structured log. It is the default until a real channel is wired.
type LogNotifier struct {
	log       zerolog.Logger
	templates *TemplateEngine
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log, templates: NewTemplateEngine()}
}

func (l *LogNotifier) NotifyCancellation(_ context.Context, n CancellationNotice) error {
	subject, body, err := l.templates.Render("appointment-canceled", map[string]string{
		"patient_name": n.PatientName,
		"date":         n.Date.Format("2006-01-02"),
		"time":         n.Date.Format("15:04"),
		"reason":       n.Reason,
	})
	if err != nil {
		return err
	}
	l.log.Info().
		Str("slot_id", n.SlotID).
		Str("doctor_id", n.DoctorID).
		Str("subject", subject).
		Str("body", body).
		Msg("appointment cancellation notice")
	return nil
}

// ---------------------------------------------------------------------------
// Mock Notifier (test double)
// ---------------------------------------------------------------------------

// MockNotifier records notices for assertions in tests.
type MockNotifier struct {
	mu      sync.Mutex
	notices []CancellationNotice
}

func (m *MockNotifier) NotifyCancellation(_ context.Context, n CancellationNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, n)
	return nil
}

// Notices returns a copy of recorded notices.
func (m *MockNotifier) Notices() []CancellationNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CancellationNotice, len(m.notices))
	copy(out, m.notices)
	return out
}
