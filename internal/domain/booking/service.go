// Package booking composes the recommendation engine and the conflict
// resolver into a single smart-booking flow: propose, check, then
// persist or surface the conflicts for confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/conflict"
	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/internal/platform/notification"
)

// ErrNoCandidates means no doctor/slot combination matched the request.
var ErrNoCandidates = errors.New("no appointment candidates found")

// Request is the input to the composed booking flow.
type Request struct {
	Preferences scheduling.Preferences     `json:"preferences"`
	Context     scheduling.Context         `json:"context"`
	Specialty   string                     `json:"specialty,omitempty"`
	Type        scheduling.AppointmentType `json:"type,omitempty"`
}

// Result reports the flow's outcome. Booked is set when the top
// candidate persisted cleanly; otherwise Conflicts and Resolutions
// explain what blocked it.
type Result struct {
	Booked         *scheduling.Appointment         `json:"booked,omitempty"`
	Recommendation *scheduling.SmartRecommendation `json:"recommendation,omitempty"`
	Conflicts      []conflict.SchedulingConflict   `json:"conflicts,omitempty"`
	Resolutions    []conflict.ResolutionResult     `json:"resolutions,omitempty"`
}

// Notifier delivers templated booking notifications. Delivery is
// best-effort: failures are logged, never surfaced to the caller.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// Service drives the composed flow.
type Service struct {
	scheduling *scheduling.Service
	resolver   *conflict.Resolver
	notifier   Notifier
	log        zerolog.Logger
}

func NewService(schedulingSvc *scheduling.Service, resolver *conflict.Resolver, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{scheduling: schedulingSvc, resolver: resolver, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option customizes the booking service.
type Option func(*Service)

// WithNotifier enables confirmation notifications after a successful
// booking.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Book runs recommendations for the request, probes its top candidate
// for conflicts, and either persists the appointment or resolves and
// reports every conflict for the caller to confirm.
func (s *Service) Book(ctx context.Context, req Request) (*Result, error) {
	recs, err := s.scheduling.Engine().SmartRecommendations(req.Preferences, req.Context, req.Specialty)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoCandidates
	}
	top := recs[0]

	urgency := req.Preferences.Urgency
	if urgency == "" {
		urgency = triage.UrgencyLow
	}
	candidate := conflict.NewAppointment{
		DoctorID:  top.Doctor.ID,
		PatientID: req.Context.PatientID,
		Date:      top.Slot.Date,
		Time:      top.Slot.Time,
		Duration:  top.Slot.Duration,
		Urgency:   urgency,
	}

	existing, err := s.existingAppointments(ctx)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.resolver.Detect(candidate, existing)
	if err != nil {
		return nil, err
	}

	if len(conflicts) == 0 {
		appt := &scheduling.Appointment{
			PatientID: candidate.PatientID,
			DoctorID:  candidate.DoctorID,
			Date:      candidate.Date,
			Time:      candidate.Time,
			Duration:  candidate.Duration,
			Type:      s.appointmentType(req, top.Doctor),
			Status:    scheduling.StatusScheduled,
			Urgency:   urgency,
			Symptoms:  req.Context.Symptoms,
		}
		if err := s.scheduling.CreateAppointment(ctx, appt); err != nil {
			return nil, fmt.Errorf("persist appointment: %w", err)
		}
		if err := s.scheduling.RefreshEngine(ctx); err != nil {
			return nil, err
		}
		s.log.Info().
			Str("appointment_id", appt.ID.String()).
			Str("doctor_id", appt.DoctorID.String()).
			Str("date", appt.Date).
			Str("time", appt.Time).
			Msg("smart booking persisted")
		s.notifyBooked(ctx, appt, top.Doctor)
		return &Result{Booked: appt, Recommendation: &top}, nil
	}

	resolutions := make([]conflict.ResolutionResult, 0, len(conflicts))
	for _, c := range conflicts {
		res, err := s.resolver.Resolve(c.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("conflict_id", c.ID.String()).Msg("conflict resolution failed")
			continue
		}
		resolutions = append(resolutions, *res)
	}

	s.log.Info().
		Int("conflicts", len(conflicts)).
		Int("resolutions", len(resolutions)).
		Msg("smart booking blocked by conflicts")
	return &Result{
		Recommendation: &top,
		Conflicts:      conflicts,
		Resolutions:    resolutions,
	}, nil
}

func (s *Service) notifyBooked(ctx context.Context, appt *scheduling.Appointment, doctor scheduling.Doctor) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"doctor":     doctor.Name,
		"date":       appt.Date,
		"time":       appt.Time,
		"visit_type": string(appt.Type),
	}
	if _, err := s.notifier.SendFromTemplate(ctx, "appointment-booked", data, appt.PatientID.String()); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("booking notification failed")
	}
}

func (s *Service) appointmentType(req Request, doctor scheduling.Doctor) scheduling.AppointmentType {
	if req.Type != "" {
		return req.Type
	}
	if doctor.AvailableForVideo {
		return scheduling.TypeVideo
	}
	return scheduling.TypeInPerson
}

func (s *Service) existingAppointments(ctx context.Context) ([]scheduling.Appointment, error) {
	ptrs, err := s.scheduling.ListAllAppointments(ctx)
	if err != nil {
		return nil, err
	}
	appts := make([]scheduling.Appointment, len(ptrs))
	for i, a := range ptrs {
		appts[i] = *a
	}
	return appts, nil
}
