package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medbook/medbook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Slot Store (PostgreSQL) ===========

type slotStorePG struct{ pool *pgxpool.Pool }

func NewSlotStorePG(pool *pgxpool.Pool) SlotStore { return &slotStorePG{pool: pool} }

func (s *slotStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *slotStorePG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, s.pool, fn)
}

const slotCols = `id, doctor_id, date, duration, price, status,
	patient_id, patient_data, visit_type, cancel_reason, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	var patient []byte
	err := row.Scan(&sl.ID, &sl.DoctorID, &sl.Date, &sl.Duration, &sl.Price, &sl.Status,
		&sl.PatientID, &patient, &sl.VisitType, &sl.CancelReason, &sl.CreatedAt, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	if len(patient) > 0 {
		sl.Patient = &PatientSnapshot{}
		if err := json.Unmarshal(patient, sl.Patient); err != nil {
			return nil, err
		}
	}
	sl.Date = sl.Date.UTC()
	return &sl, nil
}

func patientJSON(p *PatientSnapshot) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (s *slotStorePG) Create(ctx context.Context, sl *Slot) error {
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	patient, err := patientJSON(sl.Patient)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO slot (id, doctor_id, date, duration, price, status,
			patient_id, patient_data, visit_type, cancel_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sl.ID, sl.DoctorID, sl.Date, sl.Duration, sl.Price, sl.Status,
		sl.PatientID, patient, sl.VisitType, sl.CancelReason)
	if isUniqueViolation(err) {
		return Conflict(sl.Date.UTC(), "slot already exists")
	}
	return err
}

// isUniqueViolation reports whether err is a 23505 unique_violation.
// The slot_doctor_date_unique constraint is the last line of defense
// when two transactions race past the pre-insert existence check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *slotStorePG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(s.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
}

func (s *slotStorePG) GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Slot, error) {
	return scanSlot(s.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM slot WHERE doctor_id = $1 AND date = $2`, doctorID, date))
}

func (s *slotStorePG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *slotStorePG) UpdateIfStatus(ctx context.Context, sl *Slot, expect SlotStatus) (bool, error) {
	patient, err := patientJSON(sl.Patient)
	if err != nil {
		return false, err
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE slot SET duration=$2, status=$3, patient_id=$4, patient_data=$5,
			visit_type=$6, cancel_reason=$7, updated_at=NOW()
		WHERE id = $1 AND status = $8`,
		sl.ID, sl.Duration, sl.Status, sl.PatientID, patient,
		sl.VisitType, sl.CancelReason, expect)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *slotStorePG) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE doctor_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

func (s *slotStorePG) DeleteAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM slot
		WHERE doctor_id = $1 AND date >= $2 AND date <= $3 AND status = $4`,
		doctorID, from, to, StatusAvailable)
	return err
}

func (s *slotStorePG) CancelBookedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		UPDATE slot SET status = $4, updated_at = NOW()
		WHERE doctor_id = $1 AND date >= $2 AND date <= $3 AND status = $5
		RETURNING `+slotCols,
		doctorID, from, to, StatusCanceled, StatusBooked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

func (s *slotStorePG) DeleteAllInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	_, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM slot WHERE doctor_id = $1 AND date >= $2 AND date <= $3`,
		doctorID, from, to)
	return err
}

// =========== Absence Store (PostgreSQL) ===========

type absenceStorePG struct{ pool *pgxpool.Pool }

func NewAbsenceStorePG(pool *pgxpool.Pool) AbsenceStore { return &absenceStorePG{pool: pool} }

func (s *absenceStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const absenceCols = `id, doctor_id, start_date, end_date, reason, created_at`

func scanAbsence(row pgx.Row) (*Absence, error) {
	var a Absence
	err := row.Scan(&a.ID, &a.DoctorID, &a.StartDate, &a.EndDate, &a.Reason, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	a.StartDate = a.StartDate.UTC()
	a.EndDate = a.EndDate.UTC()
	return &a, nil
}

func (s *absenceStorePG) Create(ctx context.Context, a *Absence) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO absence (id, doctor_id, start_date, end_date, reason)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.DoctorID, a.StartDate, a.EndDate, a.Reason)
	return err
}

func (s *absenceStorePG) GetByID(ctx context.Context, id uuid.UUID) (*Absence, error) {
	return scanAbsence(s.conn(ctx).QueryRow(ctx, `SELECT `+absenceCols+` FROM absence WHERE id = $1`, id))
}

func (s *absenceStorePG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM absence WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *absenceStorePG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Absence, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+absenceCols+` FROM absence WHERE doctor_id = $1 ORDER BY start_date`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
