package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/platform/geo"
	"github.com/telemed/telemed/pkg/clock"
)

// Service layers validation and engine snapshot management over the
// doctor and appointment repositories.
type Service struct {
	doctors      DoctorRepository
	appointments AppointmentRepository
	engine       *Engine
	log          zerolog.Logger
	onRefresh    []func([]Doctor)
}

func NewService(doctors DoctorRepository, appointments AppointmentRepository, engine *Engine, log zerolog.Logger) *Service {
	return &Service{doctors: doctors, appointments: appointments, engine: engine, log: log}
}

// Engine exposes the service's scheduling engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// OnRefresh registers a callback invoked with the doctor snapshot each
// time the engine is refreshed. Register before serving traffic.
func (s *Service) OnRefresh(fn func([]Doctor)) {
	s.onRefresh = append(s.onRefresh, fn)
}

// RefreshEngine reloads the engine snapshot from storage. Called at
// startup and after writes that change the booking picture.
func (s *Service) RefreshEngine(ctx context.Context) error {
	doctors, err := s.doctors.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load doctors: %w", err)
	}
	appointments, err := s.appointments.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}

	ds := make([]Doctor, len(doctors))
	for i, d := range doctors {
		ds[i] = *d
	}
	as := make([]Appointment, len(appointments))
	for i, a := range appointments {
		as[i] = *a
	}

	s.engine.Initialize(ds, as)
	for _, fn := range s.onRefresh {
		fn(ds)
	}
	s.log.Info().Int("doctors", len(ds)).Int("appointments", len(as)).Msg("scheduling engine snapshot refreshed")
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	if d.Specialty == "" {
		return fmt.Errorf("specialty is required")
	}
	if d.Rating < 0 || d.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	if d.Experience < 0 {
		return fmt.Errorf("experience must not be negative")
	}
	for _, w := range d.WeeklyAvailability {
		if w.Day == "" || w.StartTime == "" || w.EndTime == "" {
			return fmt.Errorf("availability window missing day or times")
		}
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if d.Rating < 0 || d.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, specialty string, limit, offset int) ([]*Doctor, int, error) {
	if specialty != "" {
		return s.doctors.ListBySpecialty(ctx, specialty, limit, offset)
	}
	return s.doctors.List(ctx, limit, offset)
}

// NearbyDoctors lists doctors ordered by distance from the patient,
// optionally narrowed to a specialty and a maximum radius in km.
func (s *Service) NearbyDoctors(ctx context.Context, specialty string, from geo.Point, maxKM float64) ([]*Doctor, error) {
	all, err := s.doctors.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	ds := all
	if specialty != "" {
		ds = ds[:0:0]
		for _, d := range all {
			if d.Specialty == specialty {
				ds = append(ds, d)
			}
		}
	}
	if maxKM > 0 {
		ds = geo.FilterWithin(ds, from, maxKM)
	}
	geo.SortByDistance(ds, from)
	return ds, nil
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.Date == "" || a.Time == "" {
		return fmt.Errorf("date and time are required")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	if a.Type == "" {
		a.Type = TypeInPerson
	}
	if a.Duration <= 0 {
		a.Duration = DefaultDuration
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	if _, err := s.appointments.GetByID(ctx, id); err != nil {
		return fmt.Errorf("appointment not found: %w", err)
	}
	return s.appointments.UpdateStatus(ctx, id, status)
}

func (s *Service) ListAppointments(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, limit, offset)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
}

// DoctorDaySchedule loads a doctor's full appointment list for one day.
func (s *Service) DoctorDaySchedule(ctx context.Context, doctorID uuid.UUID, date string) ([]*Appointment, error) {
	if _, err := clock.ParseDate(date); err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}
	return s.appointments.ListByDoctorAndDate(ctx, doctorID, date)
}

// ListAllAppointments loads the complete appointment book; used for
// conflict detection snapshots.
func (s *Service) ListAllAppointments(ctx context.Context) ([]*Appointment, error) {
	return s.appointments.ListAll(ctx)
}
