package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ErrNoRows is returned by store lookups when no matching slot or
// absence exists. Adapters translate their driver's not-found sentinel
// into this one.
var ErrNoRows = NotFound("no rows")

// SlotStore persists slots. Every method honours a transaction carried
// in the context by InTx; outside InTx each call is independently
// atomic.
type SlotStore interface {
	// InTx runs fn inside a transaction. If fn returns an error the
	// transaction rolls back and no write made inside fn is visible.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Slot, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateIfStatus writes sl's mutable fields only if the stored
	// status still equals expect, returning false when the guard does
	// not match. This is the compare-and-swap primitive the booking
	// and cancellation engines rely on.
	UpdateIfStatus(ctx context.Context, sl *Slot, expect SlotStatus) (bool, error)

	ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error)

	// DeleteAvailableInRange removes AVAILABLE slots only.
	DeleteAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error
	// CancelBookedInRange flips BOOKED slots to CANCELED without
	// recording a reason and returns the slots it canceled.
	CancelBookedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error)
	// DeleteAllInRange removes every slot in the range regardless of
	// status.
	DeleteAllInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error
}

// AbsenceStore persists doctor absences.
type AbsenceStore interface {
	Create(ctx context.Context, a *Absence) error
	GetByID(ctx context.Context, id uuid.UUID) (*Absence, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Absence, error)
}
