package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestTranslateDuplicateKey_MapsToConflict(t *testing.T) {
	at := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{
		{Code: 11000, Message: "E11000 duplicate key error collection: medbook.slots index: slot_doctor_date_unique"},
	}}

	err := translateDuplicateKey(dup, at)
	if CodeOf(err) != CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	var bkErr *Error
	if !errors.As(err, &bkErr) || bkErr.At == nil || !bkErr.At.Equal(at) {
		t.Errorf("expected conflict to carry slot time %s, got %+v", at, bkErr)
	}
}

func TestTranslateDuplicateKey_PassThrough(t *testing.T) {
	if err := translateDuplicateKey(nil, time.Now()); err != nil {
		t.Errorf("expected nil passthrough, got %v", err)
	}
	plain := errors.New("socket closed")
	if err := translateDuplicateKey(plain, time.Now()); !errors.Is(err, plain) {
		t.Errorf("expected error returned unchanged, got %v", err)
	}
}

func TestSlotDoc_RoundTrip(t *testing.T) {
	patientID := uuid.New()
	visit := VisitConsultation
	reason := "emergency"
	snapshot := testSnapshot()
	sl := &Slot{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		Date:         time.Date(2026, 9, 14, 9, 0, 0, 0, time.UTC),
		Duration:     3,
		Price:        75,
		Status:       StatusBooked,
		PatientID:    &patientID,
		Patient:      &snapshot,
		VisitType:    &visit,
		CancelReason: &reason,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	got, err := toSlotDoc(sl).toSlot()
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if got.ID != sl.ID || got.DoctorID != sl.DoctorID || !got.Date.Equal(sl.Date) {
		t.Errorf("identity fields changed: %+v", got)
	}
	if got.PatientID == nil || *got.PatientID != patientID {
		t.Errorf("patient id changed: %v", got.PatientID)
	}
	if got.Status != StatusBooked || got.Duration != 3 {
		t.Errorf("state fields changed: %+v", got)
	}
	if got.Patient == nil || *got.Patient != snapshot {
		t.Errorf("patient snapshot changed: %+v", got.Patient)
	}
}

func TestSlotDoc_RejectsMalformedID(t *testing.T) {
	d := &slotDoc{ID: "not-a-uuid", DoctorID: uuid.NewString()}
	if _, err := d.toSlot(); err == nil {
		t.Error("expected error for malformed slot id")
	}
}
