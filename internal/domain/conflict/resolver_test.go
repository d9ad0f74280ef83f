package conflict

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/domain/triage"
)

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

func testDoctor() scheduling.Doctor {
	return scheduling.Doctor{
		ID:                 uuid.New(),
		Name:               "Dr. Rahman",
		Specialty:          "Cardiologist",
		Rating:             4.6,
		Experience:         12,
		WeeklyAvailability: weekdayTemplate(),
	}
}

func newTestResolver(doctors ...scheduling.Doctor) *Resolver {
	return NewResolver(NewMemoryStore(), NewTemplateChecker(doctors), zerolog.Nop())
}

func existingAppt(doctorID, patientID uuid.UUID, date, timeStr string) scheduling.Appointment {
	return scheduling.Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		Time:      timeStr,
		Duration:  30,
		Status:    scheduling.StatusScheduled,
	}
}

func TestDetectCleanSlot(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %d", len(conflicts))
	}
}

func TestDetectTimeOverlap(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:15",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, []scheduling.Appointment{existing})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}

	c := conflicts[0]
	if c.Type != TypeDoctorUnavailable {
		t.Errorf("type = %s, want %s", c.Type, TypeDoctorUnavailable)
	}
	if c.Severity != SeverityHigh {
		t.Errorf("severity = %s, want high", c.Severity)
	}
	if len(c.AffectedAppointments) != 1 || c.AffectedAppointments[0] != existing.ID {
		t.Errorf("affected = %v, want [%s]", c.AffectedAppointments, existing.ID)
	}
	if c.Details.ConflictingSlot == nil || c.Details.ConflictingSlot.PatientID != existing.PatientID {
		t.Error("conflicting slot details missing")
	}
}

func TestDetectBackToBackIsNotOverlap(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:30",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, []scheduling.Appointment{existing})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	for _, c := range conflicts {
		if c.Details.ConflictingSlot != nil {
			t.Fatal("back-to-back slots must not overlap")
		}
	}
}

func TestDetectEmergencyEscalatesSeverity(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyEmergency,
	}, []scheduling.Appointment{existing})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(conflicts) == 0 || conflicts[0].Severity != SeverityCritical {
		t.Fatal("emergency overlap must be critical severity")
	}
}

func TestDetectOutsideTemplate(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	// 2025-03-09 is a Sunday.
	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-09",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 availability conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != TypeDoctorUnavailable || conflicts[0].Severity != SeverityMedium {
		t.Errorf("got %s/%s, want doctor_unavailable/medium", conflicts[0].Type, conflicts[0].Severity)
	}
	if len(conflicts[0].AffectedAppointments) != 0 {
		t.Error("availability conflict must not name affected appointments")
	}
}

func TestDetectSystemCapacity(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	var existing []scheduling.Appointment
	for i := 0; i < 10; i++ {
		other := testDoctor()
		existing = append(existing, existingAppt(other.ID, uuid.New(), "2025-03-04", "10:00"))
	}

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, existing)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	var overload *SchedulingConflict
	for i := range conflicts {
		if conflicts[i].Type == TypeSystemOverload {
			overload = &conflicts[i]
		}
	}
	if overload == nil {
		t.Fatal("expected system_overload at capacity")
	}
	if len(overload.AffectedAppointments) != 10 {
		t.Errorf("overload lists %d appointments, want all 10", len(overload.AffectedAppointments))
	}
}

func TestDetectCapacityBelowLimit(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	var existing []scheduling.Appointment
	for i := 0; i < 9; i++ {
		existing = append(existing, existingAppt(testDoctor().ID, uuid.New(), "2025-03-04", "10:00"))
	}

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
	}, existing)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	for _, c := range conflicts {
		if c.Type == TypeSystemOverload {
			t.Fatal("nine concurrent appointments must not trip the capacity limit")
		}
	}
}

func TestDetectPatientSameDay(t *testing.T) {
	doc := testDoctor()
	other := testDoctor()
	r := newTestResolver(doc, other)
	patientID := uuid.New()
	existing := existingAppt(other.ID, patientID, "2025-03-04", "14:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: patientID,
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, []scheduling.Appointment{existing})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 patient conflict, got %d", len(conflicts))
	}
	if conflicts[0].Type != TypePatient || conflicts[0].Severity != SeverityLow {
		t.Errorf("got %s/%s, want patient_conflict/low", conflicts[0].Type, conflicts[0].Severity)
	}
}

func TestDetectMultipleSimultaneousConflicts(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	patientID := uuid.New()
	existing := existingAppt(doc.ID, patientID, "2025-03-04", "10:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: patientID,
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, []scheduling.Appointment{existing})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	// Overlap plus patient same-day collision.
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}
}

func TestResolveUnknownConflict(t *testing.T) {
	r := newTestResolver(testDoctor())
	if _, err := r.Resolve(uuid.New()); !errors.Is(err, ErrConflictNotFound) {
		t.Fatalf("expected ErrConflictNotFound, got %v", err)
	}
}

func TestResolveOnce(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, err := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyLow,
	}, []scheduling.Appointment{existing})
	if err != nil || len(conflicts) == 0 {
		t.Fatalf("Detect: %v (%d conflicts)", err, len(conflicts))
	}
	id := conflicts[0].ID

	result, err := r.Resolve(id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Success {
		t.Error("resolution not marked successful")
	}
	if result.Strategy.Type != StrategyReschedule {
		t.Errorf("strategy = %s, want reschedule", result.Strategy.Type)
	}
	if !result.Strategy.AutoApprove {
		t.Error("high severity should auto-approve")
	}
	if len(result.NewAppointments) == 0 {
		t.Fatal("expected a proposed replacement appointment")
	}
	if result.NewAppointments[0].Status != string(scheduling.StatusConfirmed) {
		t.Errorf("proposal status = %s, want confirmed", result.NewAppointments[0].Status)
	}
	if len(result.Notifications) == 0 || result.Notifications[0].Type != "patient" {
		t.Error("expected a patient notification")
	}

	if _, err := r.Resolve(id); !errors.Is(err, ErrConflictResolved) {
		t.Fatalf("second resolve: expected ErrConflictResolved, got %v", err)
	}

	stored, ok := r.store.Get(id)
	if !ok || stored.ResolvedAt == nil {
		t.Fatal("resolved conflict not stamped in store")
	}
	if len(r.History()) != 1 {
		t.Fatalf("history has %d entries, want 1", len(r.History()))
	}
}

func TestResolveCriticalEscalates(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, _ := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
		Urgency:   triage.UrgencyEmergency,
	}, []scheduling.Appointment{existing})

	var critical *SchedulingConflict
	for i := range conflicts {
		if conflicts[i].Severity == SeverityCritical {
			critical = &conflicts[i]
		}
	}
	if critical == nil {
		t.Fatal("expected a critical conflict")
	}

	result, err := r.Resolve(critical.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Strategy.Type != StrategyEscalate {
		t.Errorf("strategy = %s, want escalate", result.Strategy.Type)
	}
	if result.Strategy.AutoApprove {
		t.Error("critical conflicts must not auto-approve")
	}
	if len(result.NewAppointments) > 0 && result.NewAppointments[0].Status != string(scheduling.StatusPendingApproval) {
		t.Errorf("proposal status = %s, want pending_approval", result.NewAppointments[0].Status)
	}
}

func TestResolveConcurrentlyResolvesExactlyOnce(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, _ := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
	}, []scheduling.Appointment{existing})
	id := conflicts[0].ID

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(id); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("conflict resolved %d times, want exactly once", successes)
	}
	if len(r.History()) != 1 {
		t.Fatalf("history has %d entries, want 1", len(r.History()))
	}
}

func TestDismissIsTerminal(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)
	existing := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	conflicts, _ := r.Detect(NewAppointment{
		DoctorID:  doc.ID,
		PatientID: uuid.New(),
		Date:      "2025-03-04",
		Time:      "10:00",
		Duration:  30,
	}, []scheduling.Appointment{existing})
	id := conflicts[0].ID

	if err := r.Dismiss(id); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if _, err := r.Resolve(id); !errors.Is(err, ErrConflictDismissed) {
		t.Fatalf("resolve after dismiss: expected ErrConflictDismissed, got %v", err)
	}
	if err := r.Dismiss(id); !errors.Is(err, ErrConflictDismissed) {
		t.Fatalf("second dismiss: expected ErrConflictDismissed, got %v", err)
	}
	if len(r.History()) != 0 {
		t.Error("dismissal must not be recorded as a resolution")
	}
	for _, c := range r.Active() {
		if c.ID == id {
			t.Fatal("dismissed conflict still listed as active")
		}
	}
}

func TestReschedulingSuggestionsFavorSameDoctor(t *testing.T) {
	doc := testDoctor()
	other := testDoctor()
	r := newTestResolver(doc, other)

	appt := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")
	suggestions, err := r.ReschedulingSuggestions(appt, []scheduling.Doctor{doc, other}, ReschedulePreferences{
		MaxDelayDays:        3,
		SameDoctorPreferred: true,
	})
	if err != nil {
		t.Fatalf("ReschedulingSuggestions: %v", err)
	}
	if len(suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	if len(suggestions) > 5 {
		t.Fatalf("got %d suggestions, want at most 5", len(suggestions))
	}
	if suggestions[0].DoctorID != doc.ID {
		t.Error("same doctor should rank first when continuity is preferred")
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i-1].Confidence < suggestions[i].Confidence {
			t.Fatal("suggestions not sorted by descending confidence")
		}
	}
	for _, s := range suggestions {
		if s.Confidence <= 0 || s.Confidence > 1 {
			t.Errorf("confidence %.2f out of range", s.Confidence)
		}
		if len(s.Benefits) == 0 {
			t.Error("suggestion missing benefits")
		}
	}
}

func TestPredictFutureConflictsSkipsWeekends(t *testing.T) {
	r := newTestResolver(testDoctor())

	// Friday 2025-03-07 through Monday 2025-03-10.
	predictions, err := r.PredictFutureConflicts("2025-03-07", "2025-03-10")
	if err != nil {
		t.Fatalf("PredictFutureConflicts: %v", err)
	}

	dates := map[string]bool{}
	for _, p := range predictions {
		dates[p.Date] = true
		if p.ConflictProbability <= 0 || p.ConflictProbability > 0.9 {
			t.Errorf("probability %.2f out of range", p.ConflictProbability)
		}
	}
	if dates["2025-03-08"] || dates["2025-03-09"] {
		t.Error("weekend days must have no predictions")
	}
	if !dates["2025-03-07"] || !dates["2025-03-10"] {
		t.Error("weekdays missing predictions")
	}
}

func TestPredictFutureConflictsUsesHistory(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	// Register several conflicts at 14:00 to build a hot-spot.
	for i := 0; i < 4; i++ {
		_, err := r.Detect(NewAppointment{
			DoctorID:  doc.ID,
			PatientID: uuid.New(),
			Date:      "2025-03-09", // Sunday, outside template
			Time:      "14:00",
			Duration:  30,
		}, nil)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
	}

	predictions, err := r.PredictFutureConflicts("2025-03-10", "2025-03-10")
	if err != nil {
		t.Fatalf("PredictFutureConflicts: %v", err)
	}
	if len(predictions) == 0 {
		t.Fatal("expected predictions from conflict history")
	}
	if predictions[0].Time != "14:00" {
		t.Errorf("hot-spot time = %s, want 14:00", predictions[0].Time)
	}
}

func TestOptimizeSchedulePrioritizeUrgent(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	low := existingAppt(doc.ID, uuid.New(), "2025-03-04", "09:00")
	low.Urgency = triage.UrgencyLow
	high := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")
	high.Urgency = triage.UrgencyEmergency

	optimized, _, recs := r.OptimizeSchedule([]scheduling.Appointment{low, high}, OptimizationGoals{PrioritizeUrgent: true})
	if optimized[0].ID != high.ID {
		t.Fatal("emergency appointment not ordered first")
	}
	if len(recs) == 0 {
		t.Error("expected schedule recommendations")
	}
}

func TestOptimizeScheduleResolvesDoubleBooking(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	a := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")
	b := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	optimized, improvements, _ := r.OptimizeSchedule([]scheduling.Appointment{a, b}, OptimizationGoals{MinimizeWaitTimes: true})
	if optimized[0].Time == optimized[1].Time {
		t.Fatal("double booking not separated")
	}
	if improvements.ConflictsReduced != 1 {
		t.Errorf("conflictsReduced = %d, want 1", improvements.ConflictsReduced)
	}
}

func TestOptimizeScheduleWithoutGoalsIsStable(t *testing.T) {
	doc := testDoctor()
	r := newTestResolver(doc)

	a := existingAppt(doc.ID, uuid.New(), "2025-03-04", "09:00")
	b := existingAppt(doc.ID, uuid.New(), "2025-03-04", "10:00")

	optimized, _, _ := r.OptimizeSchedule([]scheduling.Appointment{a, b}, OptimizationGoals{})
	if optimized[0].ID != a.ID || optimized[1].ID != b.ID {
		t.Fatal("order changed without any optimization goal")
	}
}
