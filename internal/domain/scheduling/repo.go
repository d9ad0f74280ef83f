package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	ListBySpecialty(ctx context.Context, specialty string, limit, offset int) ([]*Doctor, int, error)
	ListAll(ctx context.Context) ([]*Doctor, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]*Appointment, error)
	ListAll(ctx context.Context) ([]*Appointment, error)
}
