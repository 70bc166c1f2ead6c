package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	doctors DoctorRepository
}

func NewService(doctors DoctorRepository) *Service {
	return &Service{doctors: doctors}
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if d.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if d.Specialization == "" {
		return fmt.Errorf("specialization is required")
	}
	if d.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, specialization, limit, offset)
}
