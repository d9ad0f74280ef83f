// Package conflict detects scheduling conflicts for incoming
// appointments and resolves them with strategy-driven rescheduling.
// Conflicts live in an in-memory store for the lifetime of the process;
// resolution is terminal and guarded against double execution.
package conflict

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConflictNotFound  = errors.New("conflict not found")
	ErrConflictResolved  = errors.New("conflict already resolved")
	ErrConflictDismissed = errors.New("conflict dismissed")
)

// Type names the category of a detected conflict.
type Type string

const (
	TypeDoctorUnavailable Type = "doctor_unavailable"
	TypePatient           Type = "patient_conflict"
	TypeSystemOverload    Type = "system_overload"
	TypeEmergencyOverride Type = "emergency_override"
)

// Severity grades how disruptive a conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OriginalSlot is the incoming slot that triggered detection.
type OriginalSlot struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Duration  int       `json:"duration"`
}

// ConflictingSlot identifies the existing booking that collides with
// the incoming one.
type ConflictingSlot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Reason        string    `json:"reason"`
}

// Details carries the slots involved in a conflict.
type Details struct {
	OriginalSlot    OriginalSlot     `json:"original_slot"`
	ConflictingSlot *ConflictingSlot `json:"conflicting_slot,omitempty"`
}

// SchedulingConflict is one detected conflict. ResolvedAt set marks it
// terminal; DismissedAt set marks it moot.
type SchedulingConflict struct {
	ID                   uuid.UUID           `json:"id"`
	Type                 Type                `json:"type"`
	Severity             Severity            `json:"severity"`
	AffectedAppointments []uuid.UUID         `json:"affected_appointments"`
	Details              Details             `json:"conflict_details"`
	DetectedAt           time.Time           `json:"detected_at"`
	ResolvedAt           *time.Time          `json:"resolved_at,omitempty"`
	DismissedAt          *time.Time          `json:"dismissed_at,omitempty"`
	ResolutionStrategy   *ResolutionStrategy `json:"resolution_strategy,omitempty"`
}

// StrategyType names a resolution approach.
type StrategyType string

const (
	StrategyReschedule StrategyType = "reschedule"
	StrategyReassign   StrategyType = "reassign"
	StrategyDefer      StrategyType = "defer"
	StrategyEscalate   StrategyType = "escalate"
)

// EstimatedImpact quantifies the expected fallout of applying a
// strategy.
type EstimatedImpact struct {
	PatientsAffected int `json:"patients_affected"`
	TimeDelayMinutes int `json:"time_delay_minutes"`
	CostImpact       int `json:"cost_impact"`
}

// StrategyAlternative is a replacement slot proposed by a strategy.
type StrategyAlternative struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Priority float64   `json:"priority"`
	Reason   string    `json:"reason"`
}

// ResolutionStrategy is the chosen plan for a conflict.
type ResolutionStrategy struct {
	Type            StrategyType          `json:"type"`
	Confidence      float64               `json:"confidence"`
	EstimatedImpact EstimatedImpact       `json:"estimated_impact"`
	Alternatives    []StrategyAlternative `json:"alternatives"`
	AutoApprove     bool                  `json:"auto_approve"`
}

// ProposedAppointment is a replacement booking materialized by a
// resolution.
type ProposedAppointment struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"` // confirmed | pending_approval
}

// Notification is a message queued for a resolution participant.
type Notification struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Type        string    `json:"type"` // patient | doctor | admin
	Message     string    `json:"message"`
	Urgency     string    `json:"urgency"`
}

// ResolutionResult is the outcome of resolving one conflict.
type ResolutionResult struct {
	Success         bool                  `json:"success"`
	ConflictID      uuid.UUID             `json:"conflict_id"`
	Strategy        ResolutionStrategy    `json:"strategy"`
	NewAppointments []ProposedAppointment `json:"new_appointments"`
	Notifications   []Notification        `json:"notifications"`
	ResolvedAt      time.Time             `json:"resolved_at"`
}

// ReschedulePreferences shape rescheduling suggestions.
type ReschedulePreferences struct {
	MaxDelayDays        int      `json:"max_delay_days"`
	PreferredTimes      []string `json:"preferred_times,omitempty"`
	SameDoctorPreferred bool     `json:"same_doctor_preferred"`
}

// RescheduleSuggestion is one ranked rescheduling option.
type RescheduleSuggestion struct {
	DoctorID   uuid.UUID `json:"doctor_id"`
	DoctorName string    `json:"doctor_name"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Confidence float64   `json:"confidence"`
	Benefits   []string  `json:"benefits"`
	Tradeoffs  []string  `json:"tradeoffs"`
}

// Prediction flags a likely future conflict window.
type Prediction struct {
	Date                  string   `json:"date"`
	Time                  string   `json:"time"`
	ConflictProbability   float64  `json:"conflict_probability"`
	PotentialCauses       []string `json:"potential_causes"`
	PreventionSuggestions []string `json:"prevention_suggestions"`
}

// OptimizationGoals select which objectives schedule optimization
// pursues.
type OptimizationGoals struct {
	MinimizeWaitTimes   bool `json:"minimize_wait_times"`
	MaximizeUtilization bool `json:"maximize_utilization"`
	BalanceWorkload     bool `json:"balance_workload"`
	PrioritizeUrgent    bool `json:"prioritize_urgent"`
}

// Improvements summarizes what an optimization pass achieved.
type Improvements struct {
	ConflictsReduced         int `json:"conflicts_reduced"`
	AverageWaitReductionMins int `json:"average_wait_time_reduction"`
	UtilizationImprovement   int `json:"utilization_improvement"`
}
