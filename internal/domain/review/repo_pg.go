package review

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reviewRepoPG struct{ pool *pgxpool.Pool }

func NewReviewRepoPG(pool *pgxpool.Pool) ReviewRepository { return &reviewRepoPG{pool: pool} }

const reviewCols = `id, slot_id, doctor_id, patient_id, rating, comment, created_at`

func scanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.SlotID, &r.DoctorID, &r.PatientID, &r.Rating, &r.Comment, &r.CreatedAt)
	return &r, err
}

func (p *reviewRepoPG) Create(ctx context.Context, r *Review) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO review (id, slot_id, doctor_id, patient_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.SlotID, r.DoctorID, r.PatientID, r.Rating, r.Comment)
	return err
}

func (p *reviewRepoPG) GetBySlot(ctx context.Context, slotID uuid.UUID) (*Review, error) {
	return scanReview(p.pool.QueryRow(ctx, `SELECT `+reviewCols+` FROM review WHERE slot_id = $1`, slotID))
}

func (p *reviewRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Review, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM review WHERE doctor_id = $1`, doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.pool.Query(ctx, `
		SELECT `+reviewCols+` FROM review WHERE doctor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}
