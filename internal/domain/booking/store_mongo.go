package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Document-store adapters. Slot and Absence rows are stored with
// string ids so documents stay readable in the shell; conversion
// happens at the adapter boundary.

type slotDoc struct {
	ID           string           `bson:"_id"`
	DoctorID     string           `bson:"doctor_id"`
	Date         time.Time        `bson:"date"`
	Duration     int              `bson:"duration"`
	Price        float64          `bson:"price"`
	Status       SlotStatus       `bson:"status"`
	PatientID    *string          `bson:"patient_id,omitempty"`
	Patient      *PatientSnapshot `bson:"patient_data,omitempty"`
	VisitType    *VisitType       `bson:"visit_type,omitempty"`
	CancelReason *string          `bson:"cancel_reason,omitempty"`
	CreatedAt    time.Time        `bson:"created_at"`
	UpdatedAt    time.Time        `bson:"updated_at"`
}

func toSlotDoc(sl *Slot) *slotDoc {
	d := &slotDoc{
		ID:           sl.ID.String(),
		DoctorID:     sl.DoctorID.String(),
		Date:         sl.Date.UTC(),
		Duration:     sl.Duration,
		Price:        sl.Price,
		Status:       sl.Status,
		Patient:      sl.Patient,
		VisitType:    sl.VisitType,
		CancelReason: sl.CancelReason,
		CreatedAt:    sl.CreatedAt,
		UpdatedAt:    sl.UpdatedAt,
	}
	if sl.PatientID != nil {
		pid := sl.PatientID.String()
		d.PatientID = &pid
	}
	return d
}

func (d *slotDoc) toSlot() (*Slot, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, err
	}
	sl := &Slot{
		ID:           id,
		DoctorID:     doctorID,
		Date:         d.Date.UTC(),
		Duration:     d.Duration,
		Price:        d.Price,
		Status:       d.Status,
		Patient:      d.Patient,
		VisitType:    d.VisitType,
		CancelReason: d.CancelReason,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.PatientID != nil {
		pid, err := uuid.Parse(*d.PatientID)
		if err != nil {
			return nil, err
		}
		sl.PatientID = &pid
	}
	return sl, nil
}

// =========== Slot Store (MongoDB) ===========

type slotStoreMongo struct {
	client *mongo.Client
	slots  *mongo.Collection
}

// NewSlotStoreMongo builds the slot collection adapter. It creates the
// unique (doctor_id, date) index up front: transactions run under
// snapshot isolation, so two concurrent availability creations for the
// same date both pass the pre-insert read and only the index stops the
// second commit.
func NewSlotStoreMongo(ctx context.Context, client *mongo.Client, database string) (SlotStore, error) {
	slots := client.Database(database).Collection("slots")
	_, err := slots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "doctor_id", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetName("slot_doctor_date_unique").SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &slotStoreMongo{client: client, slots: slots}, nil
}

func (s *slotStoreMongo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *slotStoreMongo) Create(ctx context.Context, sl *Slot) error {
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	now := time.Now().UTC()
	if sl.CreatedAt.IsZero() {
		sl.CreatedAt = now
	}
	sl.UpdatedAt = now
	_, err := s.slots.InsertOne(ctx, toSlotDoc(sl))
	return translateDuplicateKey(err, sl.Date.UTC())
}

// translateDuplicateKey maps a duplicate-key write rejected by the
// slot_doctor_date_unique index to a Conflict carrying the slot time.
func translateDuplicateKey(err error, at time.Time) error {
	if mongo.IsDuplicateKeyError(err) {
		return Conflict(at, "slot already exists")
	}
	return err
}

func (s *slotStoreMongo) getOne(ctx context.Context, filter bson.M) (*Slot, error) {
	var d slotDoc
	err := s.slots.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return d.toSlot()
}

func (s *slotStoreMongo) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.getOne(ctx, bson.M{"_id": id.String()})
}

func (s *slotStoreMongo) GetByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*Slot, error) {
	return s.getOne(ctx, bson.M{"doctor_id": doctorID.String(), "date": date.UTC()})
}

func (s *slotStoreMongo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.slots.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *slotStoreMongo) UpdateIfStatus(ctx context.Context, sl *Slot, expect SlotStatus) (bool, error) {
	d := toSlotDoc(sl)
	res, err := s.slots.UpdateOne(ctx,
		bson.M{"_id": d.ID, "status": expect},
		bson.M{"$set": bson.M{
			"duration":      d.Duration,
			"status":        d.Status,
			"patient_id":    d.PatientID,
			"patient_data":  d.Patient,
			"visit_type":    d.VisitType,
			"cancel_reason": d.CancelReason,
			"updated_at":    time.Now().UTC(),
		}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func rangeFilter(doctorID uuid.UUID, from, to time.Time) bson.M {
	return bson.M{
		"doctor_id": doctorID.String(),
		"date":      bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
}

func (s *slotStoreMongo) decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*Slot, error) {
	defer cur.Close(ctx)
	var items []*Slot
	for cur.Next(ctx) {
		var d slotDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		sl, err := d.toSlot()
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, cur.Err()
}

func (s *slotStoreMongo) ListByDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	cur, err := s.slots.Find(ctx, rangeFilter(doctorID, from, to))
	if err != nil {
		return nil, err
	}
	return s.decodeAll(ctx, cur)
}

func (s *slotStoreMongo) DeleteAvailableInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	filter := rangeFilter(doctorID, from, to)
	filter["status"] = StatusAvailable
	_, err := s.slots.DeleteMany(ctx, filter)
	return err
}

func (s *slotStoreMongo) CancelBookedInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	filter := rangeFilter(doctorID, from, to)
	filter["status"] = StatusBooked
	cur, err := s.slots.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	canceled, err := s.decodeAll(ctx, cur)
	if err != nil {
		return nil, err
	}
	if len(canceled) == 0 {
		return nil, nil
	}
	_, err = s.slots.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"status": StatusCanceled, "updated_at": time.Now().UTC()}})
	if err != nil {
		return nil, err
	}
	for _, sl := range canceled {
		sl.Status = StatusCanceled
	}
	return canceled, nil
}

func (s *slotStoreMongo) DeleteAllInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) error {
	_, err := s.slots.DeleteMany(ctx, rangeFilter(doctorID, from, to))
	return err
}

// =========== Absence Store (MongoDB) ===========

type absenceDoc struct {
	ID        string    `bson:"_id"`
	DoctorID  string    `bson:"doctor_id"`
	StartDate time.Time `bson:"start_date"`
	EndDate   time.Time `bson:"end_date"`
	Reason    *string   `bson:"reason,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *absenceDoc) toAbsence() (*Absence, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	doctorID, err := uuid.Parse(d.DoctorID)
	if err != nil {
		return nil, err
	}
	return &Absence{
		ID:        id,
		DoctorID:  doctorID,
		StartDate: d.StartDate.UTC(),
		EndDate:   d.EndDate.UTC(),
		Reason:    d.Reason,
		CreatedAt: d.CreatedAt,
	}, nil
}

type absenceStoreMongo struct {
	absences *mongo.Collection
}

func NewAbsenceStoreMongo(client *mongo.Client, database string) AbsenceStore {
	return &absenceStoreMongo{absences: client.Database(database).Collection("absences")}
}

func (s *absenceStoreMongo) Create(ctx context.Context, a *Absence) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.absences.InsertOne(ctx, &absenceDoc{
		ID:        a.ID.String(),
		DoctorID:  a.DoctorID.String(),
		StartDate: a.StartDate.UTC(),
		EndDate:   a.EndDate.UTC(),
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt,
	})
	return err
}

func (s *absenceStoreMongo) GetByID(ctx context.Context, id uuid.UUID) (*Absence, error) {
	var d absenceDoc
	err := s.absences.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return d.toAbsence()
}

func (s *absenceStoreMongo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.absences.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *absenceStoreMongo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Absence, error) {
	cur, err := s.absences.Find(ctx, bson.M{"doctor_id": doctorID.String()})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var items []*Absence
	for cur.Next(ctx) {
		var d absenceDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		a, err := d.toAbsence()
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, cur.Err()
}
