package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/conflict"
	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/internal/platform/notification"
)

type mockDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*scheduling.Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*scheduling.Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *scheduling.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	copied := *d
	m.doctors[d.ID] = &copied
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, errors.New("doctor not found")
	}
	copied := *d
	return &copied, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *scheduling.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *d
	m.doctors[d.ID] = &copied
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.doctors, id)
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*scheduling.Doctor, int, error) {
	all, _ := m.ListAll(context.Background())
	return all, len(all), nil
}

func (m *mockDoctorRepo) ListBySpecialty(_ context.Context, specialty string, limit, offset int) ([]*scheduling.Doctor, int, error) {
	all, _ := m.ListAll(context.Background())
	return all, len(all), nil
}

func (m *mockDoctorRepo) ListAll(_ context.Context) ([]*scheduling.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Doctor
	for _, d := range m.doctors {
		copied := *d
		out = append(out, &copied)
	}
	return out, nil
}

type mockAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*scheduling.Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*scheduling.Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *scheduling.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Duration <= 0 {
		a.Duration = scheduling.DefaultDuration
	}
	copied := *a
	m.appts[a.ID] = &copied
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, errors.New("appointment not found")
	}
	copied := *a
	return &copied, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status scheduling.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return errors.New("appointment not found")
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.appts, id)
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, limit, offset int) ([]*scheduling.Appointment, int, error) {
	all, _ := m.ListAll(context.Background())
	return all, len(all), nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*scheduling.Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*scheduling.Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (m *mockAppointmentRepo) ListByDoctorAndDate(_ context.Context, doctorID uuid.UUID, date string) ([]*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.Date == date {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockAppointmentRepo) ListAll(_ context.Context) ([]*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*scheduling.Appointment
	for _, a := range m.appts {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func weekdayTemplate() []scheduling.AvailabilityWindow {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	windows := make([]scheduling.AvailabilityWindow, 0, len(days))
	for _, d := range days {
		windows = append(windows, scheduling.AvailabilityWindow{
			Day: d, StartTime: "09:00", EndTime: "17:00", Available: true,
		})
	}
	return windows
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	sched    *scheduling.Service
	doctors  *mockDoctorRepo
	appts    *mockAppointmentRepo
	resolver *conflict.Resolver
	doctor   scheduling.Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctors := newMockDoctorRepo()
	appts := newMockAppointmentRepo()
	engine := scheduling.NewEngine(scheduling.WithNow(fixedNow))
	sched := scheduling.NewService(doctors, appts, engine, zerolog.Nop())

	doctor := scheduling.Doctor{
		Name:               "Dr. Rahman",
		Specialty:          "Cardiologist",
		Rating:             4.7,
		Experience:         12,
		Languages:          []string{"English", "Bengali"},
		WeeklyAvailability: weekdayTemplate(),
		AvailableForVideo:  true,
	}
	if err := sched.CreateDoctor(context.Background(), &doctor); err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
	if err := sched.RefreshEngine(context.Background()); err != nil {
		t.Fatalf("RefreshEngine: %v", err)
	}

	all, _ := doctors.ListAll(context.Background())
	ds := make([]scheduling.Doctor, len(all))
	for i, d := range all {
		ds[i] = *d
	}
	resolver := conflict.NewResolver(conflict.NewMemoryStore(), conflict.NewTemplateChecker(ds), zerolog.Nop())

	return &fixture{
		svc:      NewService(sched, resolver, zerolog.Nop()),
		sched:    sched,
		doctors:  doctors,
		appts:    appts,
		resolver: resolver,
		doctor:   doctor,
	}
}

func TestBookPersistsCleanCandidate(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Book(context.Background(), Request{
		Preferences: scheduling.Preferences{
			PreferredTimeOfDay: "morning",
			Urgency:            triage.UrgencyHigh,
		},
		Context: scheduling.Context{PatientID: uuid.New()},
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if result.Booked == nil {
		t.Fatalf("expected a booked appointment, got conflicts %v", result.Conflicts)
	}
	if result.Booked.DoctorID != f.doctor.ID {
		t.Error("booked with the wrong doctor")
	}
	if result.Booked.Status != scheduling.StatusScheduled {
		t.Errorf("status = %s, want scheduled", result.Booked.Status)
	}
	if result.Booked.Type != scheduling.TypeVideo {
		t.Errorf("type = %s, want video for a video-capable doctor", result.Booked.Type)
	}
	if result.Recommendation == nil || result.Recommendation.Confidence <= 0.5 {
		t.Error("expected the winning recommendation with confidence above base")
	}

	stored, err := f.appts.GetByID(context.Background(), result.Booked.ID)
	if err != nil {
		t.Fatalf("booked appointment not persisted: %v", err)
	}
	if stored.Date != result.Booked.Date || stored.Time != result.Booked.Time {
		t.Error("persisted slot differs from the returned one")
	}
}

func TestBookSecondRequestAvoidsTakenSlot(t *testing.T) {
	f := newFixture(t)
	req := Request{
		Preferences: scheduling.Preferences{PreferredTimeOfDay: "morning"},
		Context:     scheduling.Context{PatientID: uuid.New()},
	}

	first, err := f.svc.Book(context.Background(), req)
	if err != nil || first.Booked == nil {
		t.Fatalf("first booking failed: %v", err)
	}

	req.Context.PatientID = uuid.New()
	second, err := f.svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if second.Booked == nil {
		t.Fatalf("second booking blocked: %v", second.Conflicts)
	}
	if second.Booked.Date == first.Booked.Date && second.Booked.Time == first.Booked.Time {
		t.Fatal("engine refresh failed: same slot booked twice")
	}
}

func TestBookNoCandidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), Request{
		Preferences: scheduling.Preferences{PreferredTimeOfDay: "morning"},
		Context:     scheduling.Context{PatientID: uuid.New()},
		Specialty:   "Astrologer",
	})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestBookSurfacesPatientConflict(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	first, err := f.svc.Book(context.Background(), Request{
		Preferences: scheduling.Preferences{PreferredTimeOfDay: "morning"},
		Context:     scheduling.Context{PatientID: patientID},
	})
	if err != nil || first.Booked == nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// The same patient booking again lands on the same date and trips
	// the same-day collision check.
	second, err := f.svc.Book(context.Background(), Request{
		Preferences: scheduling.Preferences{PreferredTimeOfDay: "morning"},
		Context:     scheduling.Context{PatientID: patientID},
	})
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if second.Booked != nil {
		// A different date avoids the collision; both outcomes are
		// legal, but a same-date booking must have been blocked.
		if second.Booked.Date == first.Booked.Date {
			t.Fatal("same-day double booking for one patient not flagged")
		}
		return
	}

	foundPatientConflict := false
	for _, c := range second.Conflicts {
		if c.Type == conflict.TypePatient {
			foundPatientConflict = true
		}
	}
	if !foundPatientConflict {
		t.Fatalf("expected a patient_conflict, got %v", second.Conflicts)
	}
	if len(second.Resolutions) == 0 {
		t.Error("conflicted booking should include resolutions for confirmation")
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) SendFromTemplate(_ context.Context, templateID string, _ map[string]string, recipient string) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, templateID+":"+recipient)
	return &notification.Notification{TemplateID: templateID, Recipient: recipient}, nil
}

func TestBookSendsConfirmation(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	f.svc.notifier = notifier

	patientID := uuid.New()
	result, err := f.svc.Book(context.Background(), Request{
		Preferences: scheduling.Preferences{PreferredTimeOfDay: "morning"},
		Context:     scheduling.Context{PatientID: patientID},
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if result.Booked == nil {
		t.Fatalf("expected a booked appointment, got conflicts %v", result.Conflicts)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	want := "appointment-booked:" + patientID.String()
	if notifier.calls[0] != want {
		t.Errorf("notification = %q, want %q", notifier.calls[0], want)
	}
}
