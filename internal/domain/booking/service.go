package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/events"
	"github.com/medbook/medbook/internal/platform/notification"
)

// Service implements availability management, booking, cancellation
// and absence reconciliation on top of a SlotStore. All multi-slot
// mutations run inside SlotStore.InTx; status transitions are
// conditional writes so two racing callers cannot both win.
type Service struct {
	slots    SlotStore
	absences AbsenceStore
	notifier notification.Notifier
	producer *events.Producer
	log      zerolog.Logger
}

func NewService(slots SlotStore, absences AbsenceStore, notifier notification.Notifier, producer *events.Producer, log zerolog.Logger) *Service {
	return &Service{slots: slots, absences: absences, notifier: notifier, producer: producer, log: log}
}

// -- Availability --

// CreateAvailability creates one AVAILABLE slot per date, all in one
// transaction. The caller must own the doctor schedule. Dates must be
// aligned to 30-minute boundaries and not collide with existing slots.
func (s *Service) CreateAvailability(ctx context.Context, caller *auth.Principal, doctorID uuid.UUID, dates []time.Time, price float64) ([]*Slot, error) {
	if err := requireDoctor(caller, doctorID); err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, Invalid("at least one date is required")
	}
	if price < 0 {
		return nil, Invalid("price must not be negative")
	}
	for _, d := range dates {
		if d.IsZero() {
			return nil, Invalid("date is required")
		}
		if !Aligned(d) {
			return nil, Invalid("date %s is not aligned to a 30-minute boundary", d.Format(time.RFC3339))
		}
	}

	created := make([]*Slot, 0, len(dates))
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		for _, d := range dates {
			d = d.UTC()
			if _, err := s.slots.GetByDoctorDate(ctx, doctorID, d); err == nil {
				return Conflict(d, "slot already exists")
			} else if CodeOf(err) != CodeNotFound {
				return err
			}
			sl := &Slot{
				DoctorID: doctorID,
				Date:     d,
				Duration: 1,
				Price:    price,
				Status:   StatusAvailable,
			}
			if err := s.slots.Create(ctx, sl); err != nil {
				return err
			}
			created = append(created, sl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveAvailability deletes a single slot owned by the caller.
func (s *Service) RemoveAvailability(ctx context.Context, caller *auth.Principal, slotID uuid.UUID) error {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return slotErr(err, slotID)
	}
	if err := requireDoctor(caller, sl.DoctorID); err != nil {
		return err
	}
	return s.slots.Delete(ctx, slotID)
}

// -- Booking --

// Book reserves the primary slot plus duration-1 immediately-following
// companion slots for a patient. The whole reservation commits or none
// of it does; the loser of a race observes a Conflict.
func (s *Service) Book(ctx context.Context, caller *auth.Principal, slotID uuid.UUID, patientID uuid.UUID, patient PatientSnapshot, visitType VisitType, duration int) (*Slot, error) {
	if caller == nil {
		return nil, Forbidden("not authenticated")
	}
	if duration < 1 || duration > MaxDuration {
		return nil, Invalid("duration must be between 1 and %d", MaxDuration)
	}
	if !validVisitTypes[visitType] {
		return nil, Invalid("invalid visit type: %s", visitType)
	}
	if patientID == uuid.Nil {
		return nil, Invalid("patient_id is required")
	}
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	var booked *Slot
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		primary, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return slotErr(err, slotID)
		}
		if primary.Status != StatusAvailable {
			return Conflict(primary.Date, "appointment not available")
		}

		// All eligibility checks happen before the first write so a
		// failed check never leaves partial state.
		companions := make([]*Slot, 0, duration-1)
		for i := 1; i < duration; i++ {
			at := primary.Date.Add(time.Duration(i) * SlotUnit)
			companion, err := s.slots.GetByDoctorDate(ctx, primary.DoctorID, at)
			if err != nil {
				if CodeOf(err) == CodeNotFound {
					return Conflict(at, "required slot does not exist")
				}
				return err
			}
			if companion.Status != StatusAvailable {
				return Conflict(at, "required slot not available")
			}
			companions = append(companions, companion)
		}

		primary.Status = StatusBooked
		primary.Duration = duration
		primary.PatientID = &patientID
		primary.Patient = &patient
		primary.VisitType = &visitType
		ok, err := s.slots.UpdateIfStatus(ctx, primary, StatusAvailable)
		if err != nil {
			return err
		}
		if !ok {
			return Conflict(primary.Date, "appointment not available")
		}
		for _, companion := range companions {
			companion.Status = StatusBlocked
			ok, err := s.slots.UpdateIfStatus(ctx, companion, StatusAvailable)
			if err != nil {
				return err
			}
			if !ok {
				return Conflict(companion.Date, "required slot not available")
			}
		}
		booked = primary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindBooked, booked)
	return booked, nil
}

// -- Cancellation --

// CancelByDoctor permanently cancels a booked appointment. The primary
// and its blocked companions become CANCELED; the slot cannot be
// rebooked. The reason is always recorded, possibly empty, which
// distinguishes a doctor cancellation from the silent one performed by
// absence reconciliation.
func (s *Service) CancelByDoctor(ctx context.Context, caller *auth.Principal, slotID uuid.UUID, reason string) (*Slot, error) {
	var canceled *Slot
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		primary, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return slotErr(err, slotID)
		}
		if err := requireDoctor(caller, primary.DoctorID); err != nil {
			return err
		}
		if primary.Status != StatusBooked {
			return InvalidState("cannot cancel a %s slot", primary.Status)
		}

		duration := primary.Duration
		primary.Status = StatusCanceled
		primary.CancelReason = &reason
		ok, err := s.slots.UpdateIfStatus(ctx, primary, StatusBooked)
		if err != nil {
			return err
		}
		if !ok {
			return Conflict(primary.Date, "slot changed concurrently")
		}
		if err := s.sweepCompanions(ctx, primary, duration, StatusCanceled); err != nil {
			return err
		}
		canceled = primary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyCancellation(ctx, canceled, reason)
	s.publish(ctx, events.KindCanceledByDoctor, canceled)
	return canceled, nil
}

// CancelByPatient releases a booked appointment back to availability.
// The primary returns to AVAILABLE with duration 1 and no patient
// data; blocked companions are fully released and independently
// bookable again.
func (s *Service) CancelByPatient(ctx context.Context, caller *auth.Principal, slotID uuid.UUID) (*Slot, error) {
	if caller == nil {
		return nil, Forbidden("not authenticated")
	}
	var released *Slot
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		primary, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return slotErr(err, slotID)
		}
		if primary.Status != StatusBooked {
			return InvalidState("cannot cancel a %s slot", primary.Status)
		}
		if caller.Role != auth.RoleAdmin && (primary.PatientID == nil || *primary.PatientID != caller.UserID) {
			return Forbidden("not the booking patient")
		}

		duration := primary.Duration
		primary.Status = StatusAvailable
		primary.Duration = 1
		primary.PatientID = nil
		primary.Patient = nil
		primary.VisitType = nil
		primary.CancelReason = nil
		ok, err := s.slots.UpdateIfStatus(ctx, primary, StatusBooked)
		if err != nil {
			return err
		}
		if !ok {
			return Conflict(primary.Date, "slot changed concurrently")
		}
		if err := s.sweepCompanions(ctx, primary, duration, StatusAvailable); err != nil {
			return err
		}
		released = primary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindCanceledByPatient, released)
	return released, nil
}

// sweepCompanions transitions the BLOCKED companions of primary to the
// given status. Companions that are missing or no longer BLOCKED are
// skipped.
func (s *Service) sweepCompanions(ctx context.Context, primary *Slot, duration int, to SlotStatus) error {
	for i := 1; i < duration; i++ {
		at := primary.Date.Add(time.Duration(i) * SlotUnit)
		companion, err := s.slots.GetByDoctorDate(ctx, primary.DoctorID, at)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				continue
			}
			return err
		}
		if companion.Status != StatusBlocked {
			continue
		}
		companion.Status = to
		if _, err := s.slots.UpdateIfStatus(ctx, companion, StatusBlocked); err != nil {
			return err
		}
	}
	return nil
}

// Complete marks a booked consultation as held, which makes the slot
// reviewable.
func (s *Service) Complete(ctx context.Context, caller *auth.Principal, slotID uuid.UUID) (*Slot, error) {
	var completed *Slot
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		sl, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return slotErr(err, slotID)
		}
		if err := requireDoctor(caller, sl.DoctorID); err != nil {
			return err
		}
		if sl.Status != StatusBooked {
			return InvalidState("cannot complete a %s slot", sl.Status)
		}
		sl.Status = StatusCompleted
		ok, err := s.slots.UpdateIfStatus(ctx, sl, StatusBooked)
		if err != nil {
			return err
		}
		if !ok {
			return Conflict(sl.Date, "slot changed concurrently")
		}
		completed = sl
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindCompleted, completed)
	return completed, nil
}

// -- Absences --

// DeclareAbsence records a full-day unavailability range and
// reconciles the doctor's calendar: AVAILABLE slots in range are
// deleted, BOOKED slots are silently canceled (no reason recorded) and
// reported to the notification hook. BLOCKED, CANCELED and COMPLETED
// slots are left untouched.
func (s *Service) DeclareAbsence(ctx context.Context, caller *auth.Principal, doctorID uuid.UUID, startDate, endDate time.Time, reason *string) (*Absence, error) {
	if err := requireDoctor(caller, doctorID); err != nil {
		return nil, err
	}
	if startDate.IsZero() || endDate.IsZero() {
		return nil, Invalid("start_date and end_date are required")
	}
	from, to := DayStart(startDate), DayEnd(endDate)
	if from.After(to) {
		return nil, Invalid("start_date is after end_date")
	}

	absence := &Absence{DoctorID: doctorID, StartDate: from, EndDate: to, Reason: reason}
	var canceled []*Slot
	err := s.slots.InTx(ctx, func(ctx context.Context) error {
		if err := s.absences.Create(ctx, absence); err != nil {
			return err
		}
		if err := s.slots.DeleteAvailableInRange(ctx, doctorID, from, to); err != nil {
			return err
		}
		var err error
		canceled, err = s.slots.CancelBookedInRange(ctx, doctorID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, sl := range canceled {
		s.notifyCancellation(ctx, sl, derefOr(reason, "The doctor is unavailable on this day."))
		s.publish(ctx, events.KindCanceledByDoctor, sl)
	}
	return absence, nil
}

// RemoveAbsence deletes an absence and every slot of that doctor
// inside its range, whatever the slot's status. Bookings canceled by
// the absence are not restored.
func (s *Service) RemoveAbsence(ctx context.Context, caller *auth.Principal, absenceID uuid.UUID) error {
	absence, err := s.absences.GetByID(ctx, absenceID)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return NotFound("absence %s not found", absenceID)
		}
		return err
	}
	if err := requireDoctor(caller, absence.DoctorID); err != nil {
		return err
	}
	return s.slots.InTx(ctx, func(ctx context.Context) error {
		if err := s.slots.DeleteAllInRange(ctx, absence.DoctorID, absence.StartDate, absence.EndDate); err != nil {
			return err
		}
		return s.absences.Delete(ctx, absenceID)
	})
}

// -- Reads --

func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, slotErr(err, slotID)
	}
	return sl, nil
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	if from.IsZero() || to.IsZero() {
		return nil, Invalid("start_date and end_date are required")
	}
	if from.After(to) {
		return nil, Invalid("start_date is after end_date")
	}
	return s.slots.ListByDoctorRange(ctx, doctorID, from, to)
}

func (s *Service) ListAbsences(ctx context.Context, doctorID uuid.UUID) ([]*Absence, error) {
	return s.absences.ListByDoctor(ctx, doctorID)
}

// -- helpers --

func requireDoctor(caller *auth.Principal, doctorID uuid.UUID) error {
	if caller == nil {
		return Forbidden("not authenticated")
	}
	if !caller.IsDoctor(doctorID) {
		return Forbidden("caller does not own this schedule")
	}
	return nil
}

func slotErr(err error, id uuid.UUID) error {
	if CodeOf(err) == CodeNotFound {
		return NotFound("slot %s not found", id)
	}
	return err
}

func (s *Service) notifyCancellation(ctx context.Context, sl *Slot, reason string) {
	if s.notifier == nil || sl == nil || sl.Patient == nil {
		return
	}
	notice := notification.CancellationNotice{
		SlotID:      sl.ID.String(),
		DoctorID:    sl.DoctorID.String(),
		PatientName: sl.Patient.FirstName + " " + sl.Patient.LastName,
		Date:        sl.Date,
		Reason:      reason,
	}
	if err := s.notifier.NotifyCancellation(ctx, notice); err != nil {
		s.log.Warn().Err(err).Str("slot_id", notice.SlotID).Msg("cancellation notice failed")
	}
}

func (s *Service) publish(ctx context.Context, kind string, sl *Slot) {
	if s.producer == nil || sl == nil {
		return
	}
	ev := events.AppointmentEvent{
		Kind:     kind,
		SlotID:   sl.ID.String(),
		DoctorID: sl.DoctorID.String(),
		Date:     sl.Date,
		Duration: sl.Duration,
	}
	if sl.PatientID != nil {
		ev.PatientID = sl.PatientID.String()
	}
	if err := s.producer.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("slot_id", ev.SlotID).Msg("event publish failed")
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
