package review

import (
	"time"

	"github.com/google/uuid"
)

// Review maps to the review table. A review is tied to one completed
// consultation slot; one review per slot.
type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SlotID    uuid.UUID `db:"slot_id" json:"slot_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
