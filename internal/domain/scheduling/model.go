package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/internal/platform/geo"
)

// AvailabilityWindow is one entry of a doctor's weekly recurring
// availability template. It names a day of week, not a calendar date.
type AvailabilityWindow struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID                 uuid.UUID            `db:"id" json:"id"`
	Name               string               `db:"name" json:"name"`
	Email              string               `db:"email" json:"email"`
	Phone              string               `db:"phone" json:"phone,omitempty"`
	Specialty          string               `db:"specialty" json:"specialty"`
	Qualifications     []string             `db:"qualifications" json:"qualifications,omitempty"`
	Experience         int                  `db:"experience" json:"experience"`
	Languages          []string             `db:"languages" json:"languages,omitempty"`
	WeeklyAvailability []AvailabilityWindow `db:"weekly_availability" json:"available_slots"`
	Address            string               `db:"address" json:"address,omitempty"`
	City               string               `db:"city" json:"city,omitempty"`
	Location           geo.Point            `db:"location" json:"location"`
	Rating             float64              `db:"rating" json:"rating"`
	ReviewCount        int                  `db:"review_count" json:"review_count"`
	ConsultationFee    int                  `db:"consultation_fee" json:"consultation_fee"`
	AvailableForVideo  bool                 `db:"available_for_video" json:"available_for_video"`
	CreatedAt          time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updated_at"`
}

// Coordinates implements geo.Located.
func (d Doctor) Coordinates() geo.Point { return d.Location }

// AppointmentType distinguishes consultation channels.
type AppointmentType string

const (
	TypeVideo    AppointmentType = "video"
	TypeInPerson AppointmentType = "in-person"
)

// AppointmentStatus is the booking lifecycle state.
type AppointmentStatus string

const (
	StatusScheduled       AppointmentStatus = "scheduled"
	StatusConfirmed       AppointmentStatus = "confirmed"
	StatusPendingApproval AppointmentStatus = "pending_approval"
	StatusCompleted       AppointmentStatus = "completed"
	StatusCancelled       AppointmentStatus = "cancelled"
)

var validStatuses = map[AppointmentStatus]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusPendingApproval: true,
	StatusCompleted: true, StatusCancelled: true,
}

// Appointment maps to the appointment table. Date is an ISO calendar
// date and Time a 24-hour HH:MM string; both are naive (single implicit
// timezone, converted at the API edge).
type Appointment struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	PatientID uuid.UUID           `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID           `db:"doctor_id" json:"doctor_id"`
	Date      string              `db:"date" json:"date"`
	Time      string              `db:"time" json:"time"`
	Duration  int                 `db:"duration" json:"duration"`
	Type      AppointmentType     `db:"type" json:"type"`
	Status    AppointmentStatus   `db:"status" json:"status"`
	Urgency   triage.UrgencyLevel `db:"urgency" json:"urgency"`
	Symptoms  []string            `db:"symptoms" json:"symptoms,omitempty"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// DefaultDuration is applied when an appointment omits its duration.
const DefaultDuration = 30

// FeeRange bounds the patient's consultation-fee budget.
type FeeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Preferences captures a patient's stated scheduling preferences for a
// single recommendation request. Nothing here is persisted.
type Preferences struct {
	PreferredTimeOfDay string              `json:"preferred_time_of_day"` // morning|afternoon|evening|any
	PreferredDays      []string            `json:"preferred_days,omitempty"`
	Urgency            triage.UrgencyLevel `json:"urgency"`
	MaxTravelMinutes   int                 `json:"max_travel_minutes,omitempty"`
	ConsultationType   string              `json:"consultation_type,omitempty"` // video|in-person|any
	LanguagePreference []string            `json:"language_preference,omitempty"`
	BudgetRange        FeeRange            `json:"budget_range"`
}

// Context carries per-request patient context alongside Preferences.
type Context struct {
	PatientID       uuid.UUID   `json:"patient_id"`
	Symptoms        []string    `json:"symptoms,omitempty"`
	MedicalHistory  []string    `json:"medical_history,omitempty"`
	PreviousDoctors []uuid.UUID `json:"previous_doctors,omitempty"`
	Location        *geo.Point  `json:"location,omitempty"`
	Insurance       string      `json:"insurance,omitempty"`
}

// Slot is a concrete date/time/duration candidate for an appointment.
type Slot struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
}

// Alternative is a fallback slot offered alongside a recommendation.
type Alternative struct {
	Doctor Doctor `json:"doctor"`
	Slot   Slot   `json:"slot"`
	Reason string `json:"reason"`
}

// TravelInfo estimates the trip to an in-person consultation.
type TravelInfo struct {
	DistanceKM       float64  `json:"distance_km"`
	Distance         string   `json:"distance"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	TransportOptions []string `json:"transport_options"`
}

// SmartRecommendation is one ranked doctor/slot proposal.
type SmartRecommendation struct {
	Doctor               Doctor        `json:"doctor"`
	Slot                 Slot          `json:"appointment_slot"`
	Confidence           float64       `json:"confidence"`
	Reasoning            []string      `json:"reasoning"`
	Alternatives         []Alternative `json:"alternatives"`
	EstimatedWaitMinutes int           `json:"estimated_wait_minutes"`
	TravelInfo           *TravelInfo   `json:"travel_info,omitempty"`
}

// ConflictType names the category of a detected scheduling conflict.
type ConflictType string

const (
	ConflictDoctorUnavailable ConflictType = "doctor_unavailable"
	ConflictPatient           ConflictType = "patient_conflict"
	ConflictSystemOverload    ConflictType = "system_overload"
	ConflictEmergencyOverride ConflictType = "emergency_override"
)

// Severity grades how disruptive a conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SlotRef identifies a doctor/date/time combination.
type SlotRef struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

// SlotAlternative is a scored replacement slot for a conflicted booking.
type SlotAlternative struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Priority float64   `json:"priority"`
	Reason   string    `json:"reason"`
}

// SlotConflict is the engine's answer to a slot-availability probe.
type SlotConflict struct {
	Type           ConflictType      `json:"conflict_type"`
	OriginalSlot   SlotRef           `json:"original_slot"`
	Alternatives   []SlotAlternative `json:"alternatives"`
	AutoReschedule bool              `json:"auto_reschedule"`
}

// ScheduleRequest is one entry of a batch optimization run.
type ScheduleRequest struct {
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PreferredDate string    `json:"preferred_date"`
	PreferredTime string    `json:"preferred_time"`
	Duration      int       `json:"duration"`
	Priority      float64   `json:"priority"`
}

// ScheduledEntry is the outcome of a ScheduleRequest after optimization.
type ScheduledEntry struct {
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        string    `json:"scheduled_date"`
	Time        string    `json:"scheduled_time"`
	Confidence  float64   `json:"confidence"`
	Adjustments []string  `json:"adjustments"`
}

// HourForecast predicts availability and demand for one hour of a day.
type HourForecast struct {
	Time           string  `json:"time"`
	Probability    float64 `json:"probability"`
	ExpectedDemand float64 `json:"expected_demand"`
}

// DayForecast groups hourly forecasts for one calendar date.
type DayForecast struct {
	Date      string         `json:"date"`
	TimeSlots []HourForecast `json:"time_slots"`
}
