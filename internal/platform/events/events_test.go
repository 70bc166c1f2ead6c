package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNilProducer_NoOp(t *testing.T) {
	var p *Producer
	if err := p.Publish(context.Background(), AppointmentEvent{Kind: KindBooked}); err != nil {
		t.Errorf("nil producer Publish should be a no-op, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close should be a no-op, got %v", err)
	}
}

func TestAppointmentEvent_Message(t *testing.T) {
	slotID := uuid.NewString()
	date := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	ev := AppointmentEvent{
		Kind:      KindCanceledByDoctor,
		SlotID:    slotID,
		DoctorID:  uuid.NewString(),
		PatientID: uuid.NewString(),
		Date:      date,
		Duration:  2,
	}

	msg, err := ev.message()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(msg.Key) != slotID {
		t.Errorf("expected message keyed by slot id, got %s", msg.Key)
	}

	var decoded AppointmentEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if decoded.Kind != KindCanceledByDoctor || decoded.SlotID != slotID || decoded.Duration != 2 {
		t.Errorf("payload fields changed: %+v", decoded)
	}
	if !decoded.Date.Equal(date) {
		t.Errorf("expected date %s, got %s", date, decoded.Date)
	}
	if decoded.At.IsZero() {
		t.Error("expected At to default to publish time")
	}
}

func TestAppointmentEvent_Message_OmitsEmptyPatient(t *testing.T) {
	ev := AppointmentEvent{Kind: KindBooked, SlotID: uuid.NewString()}
	msg, err := ev.message()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(msg.Value), "patient_id") {
		t.Errorf("expected patient_id omitted when empty, got %s", msg.Value)
	}
}
