package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// In-memory SlotStore for tests. Transactions are serialized by a
// mutex and roll back by restoring a snapshot, so the atomicity and
// mutual-exclusion contracts hold the same way they do against a real
// backend.

type memTxKey struct{}

type memSlotStore struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]*Slot
	lookups int64 // GetByDoctorDate call count
}

func newMemSlotStore() *memSlotStore {
	return &memSlotStore{slots: make(map[uuid.UUID]*Slot)}
}

func cloneSlot(sl *Slot) *Slot {
	c := *sl
	if sl.PatientID != nil {
		pid := *sl.PatientID
		c.PatientID = &pid
	}
	if sl.Patient != nil {
		p := *sl.Patient
		c.Patient = &p
	}
	if sl.VisitType != nil {
		v := *sl.VisitType
		c.VisitType = &v
	}
	if sl.CancelReason != nil {
		r := *sl.CancelReason
		c.CancelReason = &r
	}
	return &c
}

func (m *memSlotStore) snapshot() map[uuid.UUID]*Slot {
	snap := make(map[uuid.UUID]*Slot, len(m.slots))
	for id, sl := range m.slots {
		snap[id] = cloneSlot(sl)
	}
	return snap
}

func (m *memSlotStore) enter(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memSlotStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.slots = snap
		return err
	}
	return nil
}

func (m *memSlotStore) Create(ctx context.Context, sl *Slot) error {
	defer m.enter(ctx)()
	for _, existing := range m.slots {
		if existing.DoctorID == sl.DoctorID && existing.Date.Equal(sl.Date) {
			return Conflict(sl.Date, "slot already exists")
		}
	}
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	sl.CreatedAt = time.Now()
	sl.UpdatedAt = sl.CreatedAt
	m.slots[sl.ID] = cloneSlot(sl)
	return nil
}

func (m *memSlotStore) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	defer m.enter(ctx)()
	sl, ok := m.slots[id]
	if !ok {
		return nil, ErrNoRows
	}
	return cloneSlot(sl), nil
}

func (m *memSlotStore) GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Slot, error) {
	atomic.AddInt64(&m.lookups, 1)
	defer m.enter(ctx)()
	for _, sl := range m.slots {
		if sl.DoctorID == doctorID && sl.Date.Equal(date) {
			return cloneSlot(sl), nil
		}
	}
	return nil, ErrNoRows
}

func (m *memSlotStore) Delete(ctx context.Context, id uuid.UUID) error {
	defer m.enter(ctx)()
	if _, ok := m.slots[id]; !ok {
		return ErrNoRows
	}
	delete(m.slots, id)
	return nil
}

func (m *memSlotStore) UpdateIfStatus(ctx context.Context, sl *Slot, expect SlotStatus) (bool, error) {
	defer m.enter(ctx)()
	stored, ok := m.slots[sl.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	updated := cloneSlot(sl)
	updated.DoctorID = stored.DoctorID
	updated.Date = stored.Date
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	m.slots[sl.ID] = updated
	return true, nil
}

func (m *memSlotStore) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	defer m.enter(ctx)()
	var items []*Slot
	for _, sl := range m.slots {
		if sl.DoctorID == doctorID && !sl.Date.Before(from) && !sl.Date.After(to) {
			items = append(items, cloneSlot(sl))
		}
	}
	return items, nil
}

func (m *memSlotStore) DeleteAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	defer m.enter(ctx)()
	for id, sl := range m.slots {
		if sl.DoctorID == doctorID && !sl.Date.Before(from) && !sl.Date.After(to) && sl.Status == StatusAvailable {
			delete(m.slots, id)
		}
	}
	return nil
}

func (m *memSlotStore) CancelBookedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	defer m.enter(ctx)()
	var canceled []*Slot
	for _, sl := range m.slots {
		if sl.DoctorID == doctorID && !sl.Date.Before(from) && !sl.Date.After(to) && sl.Status == StatusBooked {
			sl.Status = StatusCanceled
			canceled = append(canceled, cloneSlot(sl))
		}
	}
	return canceled, nil
}

func (m *memSlotStore) DeleteAllInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	defer m.enter(ctx)()
	for id, sl := range m.slots {
		if sl.DoctorID == doctorID && !sl.Date.Before(from) && !sl.Date.After(to) {
			delete(m.slots, id)
		}
	}
	return nil
}

// get reads a slot directly for assertions, bypassing the service.
func (m *memSlotStore) get(id uuid.UUID) *Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[id]
	if !ok {
		return nil
	}
	return cloneSlot(sl)
}

func (m *memSlotStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

type memAbsenceStore struct {
	mu       sync.Mutex
	absences map[uuid.UUID]*Absence
}

func newMemAbsenceStore() *memAbsenceStore {
	return &memAbsenceStore{absences: make(map[uuid.UUID]*Absence)}
}

func (m *memAbsenceStore) Create(_ context.Context, a *Absence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	c := *a
	m.absences[a.ID] = &c
	return nil
}

func (m *memAbsenceStore) GetByID(_ context.Context, id uuid.UUID) (*Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.absences[id]
	if !ok {
		return nil, ErrNoRows
	}
	c := *a
	return &c, nil
}

func (m *memAbsenceStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.absences[id]; !ok {
		return ErrNoRows
	}
	delete(m.absences, id)
	return nil
}

func (m *memAbsenceStore) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Absence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Absence
	for _, a := range m.absences {
		if a.DoctorID == doctorID {
			c := *a
			items = append(items, &c)
		}
	}
	return items, nil
}
