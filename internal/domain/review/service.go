package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/medbook/medbook/internal/domain/booking"
)

// SlotReader is the read-only view of the booking core the review
// service needs: it checks slot state, never mutates it.
type SlotReader interface {
	GetSlot(ctx context.Context, slotID uuid.UUID) (*booking.Slot, error)
}

type Service struct {
	reviews ReviewRepository
	slots   SlotReader
}

func NewService(reviews ReviewRepository, slots SlotReader) *Service {
	return &Service{reviews: reviews, slots: slots}
}

// CreateReview records a patient's review of a completed consultation.
// Only the patient who held the consultation may review it, and only
// once the slot is COMPLETED.
func (s *Service) CreateReview(ctx context.Context, patientID uuid.UUID, slotID uuid.UUID, rating int, comment *string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, booking.Invalid("rating must be between 1 and 5")
	}
	sl, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if sl.Status != booking.StatusCompleted {
		return nil, booking.InvalidState("consultation is not completed")
	}
	if sl.PatientID == nil || *sl.PatientID != patientID {
		return nil, booking.Forbidden("only the consulting patient may review")
	}
	if _, err := s.reviews.GetBySlot(ctx, slotID); err == nil {
		return nil, booking.Conflict(sl.Date, "slot already reviewed")
	}
	r := &Review{
		SlotID:    slotID,
		DoctorID:  sl.DoctorID,
		PatientID: patientID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	return s.reviews.ListByDoctor(ctx, doctorID, limit, offset)
}
