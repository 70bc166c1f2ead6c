package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	_, _, err := eng.Render("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInCancellation(t *testing.T) {
	eng := NewTemplateEngine()
	subject, body, err := eng.Render("appointment-canceled", map[string]string{
		"patient_name": "Alice",
		"date":         "2026-03-02",
		"time":         "09:00",
		"reason":       "Doctor unavailable.",
	})
	if err != nil {
		t.Fatalf("built-in template not found: %v", err)
	}
	if !strings.Contains(subject, "2026-03-02") {
		t.Errorf("subject should contain date, got %q", subject)
	}
	if !strings.Contains(body, "Alice") || !strings.Contains(body, "Doctor unavailable.") {
		t.Errorf("body should contain name and reason, got %q", body)
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "partial-tpl",
		Subject: "Hi {{name}}",
		Body:    "Your code is {{code}} and token is {{token}}.",
	})

	subject, body, err := eng.Render("partial-tpl", map[string]string{
		"name": "Bob",
		"code": "5678",
		// "token" deliberately missing
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hi Bob" {
		t.Errorf("subject = %q, want %q", subject, "Hi Bob")
	}
	// unreplaced keys left as-is
	expected := "Your code is 5678 and token is {{token}}."
	if body != expected {
		t.Errorf("body = %q, want %q", body, expected)
	}
}

func TestLogNotifier_NotifyCancellation(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	err := n.NotifyCancellation(context.Background(), CancellationNotice{
		SlotID:      uuid.NewString(),
		DoctorID:    uuid.NewString(),
		PatientName: "Alice Smith",
		Date:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Reason:      "Doctor unavailable.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMockNotifier_RecordsNotices(t *testing.T) {
	m := &MockNotifier{}
	notice := CancellationNotice{
		SlotID:      uuid.NewString(),
		PatientName: "Bob",
		Date:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	if err := m.NotifyCancellation(context.Background(), notice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notices := m.Notices()
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(notices))
	}
	if notices[0].SlotID != notice.SlotID {
		t.Errorf("slot id = %s, want %s", notices[0].SlotID, notice.SlotID)
	}
}
