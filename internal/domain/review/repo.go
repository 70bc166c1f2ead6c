package review

import (
	"context"

	"github.com/google/uuid"
)

type ReviewRepository interface {
	Create(ctx context.Context, r *Review) error
	GetBySlot(ctx context.Context, slotID uuid.UUID) (*Review, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error)
}
