package identity

import (
	"time"

	"github.com/google/uuid"
)

// Doctor maps to the doctor table: the public directory entry patients
// browse before booking. Price is the default consultation price used
// as the snapshot on new availability.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Specialization string    `db:"specialization" json:"specialization"`
	Price          float64   `db:"price" json:"price"`
	City           *string   `db:"city" json:"city,omitempty"`
	Bio            *string   `db:"bio" json:"bio,omitempty"`
	PhotoURL       *string   `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
