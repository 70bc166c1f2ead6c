package booking

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the lifecycle state of a single 30-minute slot.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "AVAILABLE"
	StatusBooked    SlotStatus = "BOOKED"
	StatusBlocked   SlotStatus = "BLOCKED"
	StatusCanceled  SlotStatus = "CANCELED"
	StatusCompleted SlotStatus = "COMPLETED"
)

// SlotUnit is the length of one schedulable unit. Slot dates must be
// aligned to this boundary and multi-unit appointments occupy
// consecutive units.
const SlotUnit = 30 * time.Minute

// MaxDuration is the largest number of consecutive units a single
// appointment may occupy.
const MaxDuration = 8

// VisitType categorizes the consultation recorded on a booked slot.
type VisitType string

const (
	VisitFirstVisit   VisitType = "FIRST_VISIT"
	VisitFollowUp     VisitType = "FOLLOW_UP"
	VisitConsultation VisitType = "CONSULTATION"
	VisitPrescription VisitType = "PRESCRIPTION"
	VisitTelevisit    VisitType = "TELEVISIT"
	VisitChronicCare  VisitType = "CHRONIC_CARE"
	VisitDiagnostic   VisitType = "DIAGNOSTIC"
)

var validVisitTypes = map[VisitType]bool{
	VisitFirstVisit: true, VisitFollowUp: true, VisitConsultation: true,
	VisitPrescription: true, VisitTelevisit: true, VisitChronicCare: true,
	VisitDiagnostic: true,
}

// PatientSnapshot is the denormalized patient data captured at booking
// time. It is a copy, not a reference to a patient profile, and is
// cleared in full when the patient cancels.
type PatientSnapshot struct {
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`
	Age       int    `json:"age" bson:"age"`
	Gender    string `json:"gender" bson:"gender"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Validate checks the snapshot at the booking boundary.
func (p PatientSnapshot) Validate() error {
	if p.FirstName == "" {
		return Invalid("patient first_name is required")
	}
	if p.LastName == "" {
		return Invalid("patient last_name is required")
	}
	if p.Age < 0 || p.Age > 200 {
		return Invalid("patient age out of range")
	}
	if p.Gender != "male" && p.Gender != "female" {
		return Invalid("patient gender must be male or female")
	}
	return nil
}

// Slot maps to the slot table / collection. One row per doctor per
// 30-minute boundary; only the primary slot of an appointment carries
// patient and visit data.
type Slot struct {
	ID           uuid.UUID        `db:"id" json:"id" bson:"_id"`
	DoctorID     uuid.UUID        `db:"doctor_id" json:"doctor_id" bson:"doctor_id"`
	Date         time.Time        `db:"date" json:"date" bson:"date"`
	Duration     int              `db:"duration" json:"duration" bson:"duration"`
	Price        float64          `db:"price" json:"price" bson:"price"`
	Status       SlotStatus       `db:"status" json:"status" bson:"status"`
	PatientID    *uuid.UUID       `db:"patient_id" json:"patient_id,omitempty" bson:"patient_id,omitempty"`
	Patient      *PatientSnapshot `db:"patient_data" json:"patient_data,omitempty" bson:"patient_data,omitempty"`
	VisitType    *VisitType       `db:"visit_type" json:"visit_type,omitempty" bson:"visit_type,omitempty"`
	CancelReason *string          `db:"cancel_reason" json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// Absence maps to the absence table / collection: a doctor-declared
// full-day range of unavailability.
type Absence struct {
	ID        uuid.UUID `db:"id" json:"id" bson:"_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id" bson:"doctor_id"`
	StartDate time.Time `db:"start_date" json:"start_date" bson:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date" bson:"end_date"`
	Reason    *string   `db:"reason" json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at" bson:"created_at"`
}

// Aligned reports whether t sits exactly on a 30-minute boundary.
func Aligned(t time.Time) bool {
	return t.Truncate(SlotUnit).Equal(t)
}

// DayStart returns midnight UTC of the day containing t.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayEnd returns the last instant of the day containing t.
func DayEnd(t time.Time) time.Time {
	return DayStart(t).Add(24*time.Hour - time.Nanosecond)
}
