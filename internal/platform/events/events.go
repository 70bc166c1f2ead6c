// Package events publishes appointment lifecycle events to Kafka.
// The producer is optional: a nil *Producer is a no-op, so the booking
// core never branches on whether eventing is configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const Topic = "appointment-events"

// Event kinds.
const (
	KindBooked            = "appointment.booked"
	KindCanceledByDoctor  = "appointment.canceled_by_doctor"
	KindCanceledByPatient = "appointment.canceled_by_patient"
	KindCompleted         = "appointment.completed"
)

// AppointmentEvent is the wire payload written to the topic.
type AppointmentEvent struct {
	Kind      string    `json:"kind"`
	SlotID    string    `json:"slot_id"`
	DoctorID  string    `json:"doctor_id"`
	PatientID string    `json:"patient_id,omitempty"`
	Date      time.Time `json:"date"`
	Duration  int       `json:"duration"`
	At        time.Time `json:"at"`
}

type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the appointment events topic.
func NewProducer(broker string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// message builds the kafka message for an event. Messages are keyed by
// slot id so all events for one appointment land on the same partition.
func (ev AppointmentEvent) message() (kafka.Message, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(ev.SlotID), Value: value}, nil
}

// Publish writes one event.
func (p *Producer) Publish(ctx context.Context, ev AppointmentEvent) error {
	if p == nil {
		return nil
	}
	msg, err := ev.message()
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
