package conflict

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/pkg/clock"
)

// existingAppointmentDuration is assumed for already-booked
// appointments whose duration is unknown at detection time.
const existingAppointmentDuration = 30

// capacityLimit is how many appointments may share one exact date+time
// across all doctors before detection flags an overload.
const capacityLimit = 10

// AvailabilityChecker answers whether a doctor's calendar covers a
// slot. The scheduling engine's weekly-template index satisfies it.
type AvailabilityChecker interface {
	CoversSlot(doctorID uuid.UUID, date string, startMinutes, durationMinutes int) bool
}

// TemplateChecker checks slots against doctors' weekly availability
// templates.
type TemplateChecker struct {
	mu      sync.RWMutex
	doctors map[uuid.UUID]scheduling.Doctor
}

// NewTemplateChecker indexes the given doctors by id.
func NewTemplateChecker(doctors []scheduling.Doctor) *TemplateChecker {
	t := &TemplateChecker{}
	t.Reload(doctors)
	return t
}

// Reload replaces the doctor index, typically from an engine snapshot
// refresh.
func (t *TemplateChecker) Reload(doctors []scheduling.Doctor) {
	byID := make(map[uuid.UUID]scheduling.Doctor, len(doctors))
	for _, d := range doctors {
		byID[d.ID] = d
	}
	t.mu.Lock()
	t.doctors = byID
	t.mu.Unlock()
}

// CoversSlot reports template coverage; unknown doctors are treated as
// unavailable.
func (t *TemplateChecker) CoversSlot(doctorID uuid.UUID, date string, start, duration int) bool {
	t.mu.RLock()
	d, ok := t.doctors[doctorID]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return d.CoversSlot(date, start, duration)
}

// NewAppointment is the incoming booking checked for conflicts.
type NewAppointment struct {
	DoctorID  uuid.UUID           `json:"doctor_id"`
	PatientID uuid.UUID           `json:"patient_id"`
	Date      string              `json:"date"`
	Time      string              `json:"time"`
	Duration  int                 `json:"duration"`
	Urgency   triage.UrgencyLevel `json:"urgency"`
}

// Resolver detects conflicts for incoming appointments and resolves
// registered ones. All dependencies are injected; the zero value is not
// usable.
type Resolver struct {
	store        Store
	availability AvailabilityChecker
	log          zerolog.Logger
	now          func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverNow overrides the resolver's clock.
func WithResolverNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver wires a resolver over the given store and availability
// source.
func NewResolver(store Store, availability AvailabilityChecker, log zerolog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:        store,
		availability: availability,
		log:          log,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect runs the four conflict checks against the incoming
// appointment and registers every match in the store. An empty result
// means the slot is clean.
func (r *Resolver) Detect(appt NewAppointment, existing []scheduling.Appointment) ([]SchedulingConflict, error) {
	if appt.Duration <= 0 {
		appt.Duration = scheduling.DefaultDuration
	}
	start, err := clock.ParseMinutes(appt.Time)
	if err != nil {
		return nil, err
	}
	if _, err := clock.ParseDate(appt.Date); err != nil {
		return nil, err
	}

	var conflicts []SchedulingConflict
	conflicts = append(conflicts, r.checkTimeOverlap(appt, start, existing)...)
	conflicts = append(conflicts, r.checkDoctorAvailability(appt, start)...)
	conflicts = append(conflicts, r.checkSystemCapacity(appt, existing)...)
	conflicts = append(conflicts, r.checkPatientSameDay(appt, existing)...)

	for _, c := range conflicts {
		r.store.Save(c)
		r.log.Info().
			Str("conflict_id", c.ID.String()).
			Str("type", string(c.Type)).
			Str("severity", string(c.Severity)).
			Str("date", appt.Date).
			Str("time", appt.Time).
			Msg("scheduling conflict detected")
	}
	return conflicts, nil
}

func (r *Resolver) originalSlot(appt NewAppointment) OriginalSlot {
	return OriginalSlot{
		DoctorID:  appt.DoctorID,
		PatientID: appt.PatientID,
		Date:      appt.Date,
		Time:      appt.Time,
		Duration:  appt.Duration,
	}
}

func (r *Resolver) checkTimeOverlap(appt NewAppointment, start int, existing []scheduling.Appointment) []SchedulingConflict {
	var conflicts []SchedulingConflict
	for _, ex := range existing {
		if ex.DoctorID != appt.DoctorID || ex.Date != appt.Date || ex.Status == scheduling.StatusCancelled {
			continue
		}
		exStart, err := clock.ParseMinutes(ex.Time)
		if err != nil {
			continue
		}
		if !clock.Overlaps(exStart, existingAppointmentDuration, start, appt.Duration) {
			continue
		}

		severity := SeverityHigh
		if appt.Urgency == triage.UrgencyEmergency {
			severity = SeverityCritical
		}
		conflicts = append(conflicts, SchedulingConflict{
			ID:                   uuid.New(),
			Type:                 TypeDoctorUnavailable,
			Severity:             severity,
			AffectedAppointments: []uuid.UUID{ex.ID},
			Details: Details{
				OriginalSlot: r.originalSlot(appt),
				ConflictingSlot: &ConflictingSlot{
					AppointmentID: ex.ID,
					PatientID:     ex.PatientID,
					Reason:        "Time slot already booked",
				},
			},
			DetectedAt: r.now(),
		})
	}
	return conflicts
}

func (r *Resolver) checkDoctorAvailability(appt NewAppointment, start int) []SchedulingConflict {
	if r.availability.CoversSlot(appt.DoctorID, appt.Date, start, appt.Duration) {
		return nil
	}
	return []SchedulingConflict{{
		ID:                   uuid.New(),
		Type:                 TypeDoctorUnavailable,
		Severity:             SeverityMedium,
		AffectedAppointments: []uuid.UUID{},
		Details:              Details{OriginalSlot: r.originalSlot(appt)},
		DetectedAt:           r.now(),
	}}
}

func (r *Resolver) checkSystemCapacity(appt NewAppointment, existing []scheduling.Appointment) []SchedulingConflict {
	var sameSlot []uuid.UUID
	for _, ex := range existing {
		if ex.Date == appt.Date && ex.Time == appt.Time && ex.Status != scheduling.StatusCancelled {
			sameSlot = append(sameSlot, ex.ID)
		}
	}
	if len(sameSlot) < capacityLimit {
		return nil
	}
	return []SchedulingConflict{{
		ID:                   uuid.New(),
		Type:                 TypeSystemOverload,
		Severity:             SeverityMedium,
		AffectedAppointments: sameSlot,
		Details:              Details{OriginalSlot: r.originalSlot(appt)},
		DetectedAt:           r.now(),
	}}
}

func (r *Resolver) checkPatientSameDay(appt NewAppointment, existing []scheduling.Appointment) []SchedulingConflict {
	var sameDay []uuid.UUID
	for _, ex := range existing {
		if ex.PatientID == appt.PatientID && ex.Date == appt.Date && ex.Status != scheduling.StatusCancelled {
			sameDay = append(sameDay, ex.ID)
		}
	}
	if len(sameDay) == 0 {
		return nil
	}
	return []SchedulingConflict{{
		ID:                   uuid.New(),
		Type:                 TypePatient,
		Severity:             SeverityLow,
		AffectedAppointments: sameDay,
		Details:              Details{OriginalSlot: r.originalSlot(appt)},
		DetectedAt:           r.now(),
	}}
}

// Resolve builds and executes a resolution strategy for a registered
// conflict. A conflict resolves at most once: the second caller gets
// ErrConflictResolved, a dismissed conflict gets ErrConflictDismissed.
func (r *Resolver) Resolve(conflictID uuid.UUID) (*ResolutionResult, error) {
	current, ok := r.store.Get(conflictID)
	if !ok {
		return nil, ErrConflictNotFound
	}

	strategy := r.buildStrategy(current)

	resolvedAt := r.now()
	resolved, err := r.store.MarkResolved(conflictID, strategy, resolvedAt)
	if err != nil {
		return nil, err
	}

	result := r.execute(resolved, strategy, resolvedAt)
	r.store.AppendResult(result)

	r.log.Info().
		Str("conflict_id", conflictID.String()).
		Str("strategy", string(strategy.Type)).
		Bool("auto_approve", strategy.AutoApprove).
		Float64("confidence", strategy.Confidence).
		Msg("scheduling conflict resolved")
	return &result, nil
}

// buildStrategy picks an approach from conflict type and severity and
// searches the doctor's template for replacement slots.
func (r *Resolver) buildStrategy(c SchedulingConflict) ResolutionStrategy {
	slot := c.Details.OriginalSlot
	alternatives := r.nextFreeSlots(slot, 1)

	strategyType := StrategyReschedule
	switch {
	case c.Severity == SeverityCritical:
		strategyType = StrategyEscalate
	case c.Type == TypeSystemOverload:
		strategyType = StrategyDefer
	}

	confidence := 0.85
	delay := 0
	if len(alternatives) == 0 {
		confidence = 0.4
	} else if altStart, err := clock.ParseMinutes(alternatives[0].Time); err == nil {
		if origStart, err := clock.ParseMinutes(slot.Time); err == nil {
			delay = altStart - origStart
			if alternatives[0].Date != slot.Date {
				delay += 24 * 60
			}
		}
	}
	if strategyType == StrategyEscalate {
		confidence = 0.95
	}

	return ResolutionStrategy{
		Type:       strategyType,
		Confidence: confidence,
		EstimatedImpact: EstimatedImpact{
			PatientsAffected: max(len(c.AffectedAppointments), 1),
			TimeDelayMinutes: delay,
			CostImpact:       0,
		},
		Alternatives: alternatives,
		AutoApprove:  c.Severity != SeverityCritical,
	}
}

// nextFreeSlots walks forward from the conflicted slot in 30-minute
// steps, rolling to following days, and returns up to limit covered
// slots with the same doctor.
func (r *Resolver) nextFreeSlots(slot OriginalSlot, limit int) []StrategyAlternative {
	start, err := clock.ParseMinutes(slot.Time)
	if err != nil {
		return nil
	}
	day, err := clock.ParseDate(slot.Date)
	if err != nil {
		return nil
	}
	duration := slot.Duration
	if duration <= 0 {
		duration = scheduling.DefaultDuration
	}

	var alts []StrategyAlternative
	for offset := 0; offset < 7 && len(alts) < limit; offset++ {
		date := clock.FormatDate(day.AddDate(0, 0, offset))
		from := 9 * 60
		if offset == 0 {
			from = start + scheduling.DefaultDuration
		}
		for t := from; t+duration <= 17*60 && len(alts) < limit; t += scheduling.DefaultDuration {
			if !r.availability.CoversSlot(slot.DoctorID, date, t, duration) {
				continue
			}
			priority := 0.9 - 0.1*float64(offset)
			alts = append(alts, StrategyAlternative{
				DoctorID: slot.DoctorID,
				Date:     date,
				Time:     clock.FormatMinutes(t),
				Priority: priority,
				Reason:   "Next available slot with same doctor",
			})
		}
	}
	return alts
}

func (r *Resolver) execute(c SchedulingConflict, strategy ResolutionStrategy, at time.Time) ResolutionResult {
	status := string(scheduling.StatusPendingApproval)
	urgency := "high"
	if strategy.AutoApprove {
		status = string(scheduling.StatusConfirmed)
		urgency = "medium"
	}

	proposals := make([]ProposedAppointment, 0, len(strategy.Alternatives))
	for _, alt := range strategy.Alternatives {
		proposals = append(proposals, ProposedAppointment{
			AppointmentID: uuid.New(),
			DoctorID:      alt.DoctorID,
			Date:          alt.Date,
			Time:          alt.Time,
			Status:        status,
		})
	}

	return ResolutionResult{
		Success:         true,
		ConflictID:      c.ID,
		Strategy:        strategy,
		NewAppointments: proposals,
		Notifications: []Notification{{
			RecipientID: c.Details.OriginalSlot.PatientID,
			Type:        "patient",
			Message:     "Your appointment has been rescheduled",
			Urgency:     urgency,
		}},
		ResolvedAt: at,
	}
}

// Dismiss marks a conflict moot, for example when its underlying
// appointment was cancelled before resolution. Dismissal is terminal
// and is not recorded as a resolution.
func (r *Resolver) Dismiss(conflictID uuid.UUID) error {
	if _, err := r.store.MarkDismissed(conflictID, r.now()); err != nil {
		return err
	}
	r.log.Info().Str("conflict_id", conflictID.String()).Msg("scheduling conflict dismissed")
	return nil
}

// Active lists unresolved, undismissed conflicts.
func (r *Resolver) Active() []SchedulingConflict {
	return r.store.Active()
}

// History lists completed resolutions in execution order.
func (r *Resolver) History() []ResolutionResult {
	return r.store.History()
}

// ReschedulingSuggestions ranks replacement doctor/date/time options
// for an appointment. Same-doctor continuity, preferred-time fit and
// short delays drive confidence.
func (r *Resolver) ReschedulingSuggestions(appt scheduling.Appointment, doctors []scheduling.Doctor, prefs ReschedulePreferences) ([]RescheduleSuggestion, error) {
	day, err := clock.ParseDate(appt.Date)
	if err != nil {
		return nil, err
	}
	maxDelay := prefs.MaxDelayDays
	if maxDelay <= 0 {
		maxDelay = 7
	}
	times := prefs.PreferredTimes
	if len(times) == 0 {
		times = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}
	}
	duration := appt.Duration
	if duration <= 0 {
		duration = scheduling.DefaultDuration
	}

	var suggestions []RescheduleSuggestion
	for _, doctor := range doctors {
		sameDoctor := doctor.ID == appt.DoctorID
		for delay := 1; delay <= maxDelay; delay++ {
			date := clock.FormatDate(day.AddDate(0, 0, delay))
			for _, t := range times {
				start, err := clock.ParseMinutes(t)
				if err != nil {
					continue
				}
				if !doctor.CoversSlot(date, start, duration) {
					continue
				}

				confidence := 0.6
				var benefits, tradeoffs []string
				if sameDoctor {
					confidence += 0.2
					benefits = append(benefits, "Same doctor maintains continuity")
				} else {
					tradeoffs = append(tradeoffs, "Different doctor")
					if doctor.Rating >= 4.5 {
						confidence += 0.05
						benefits = append(benefits, "Highly rated specialist")
					}
				}
				if prefs.SameDoctorPreferred && !sameDoctor {
					confidence -= 0.1
				}
				if hour := clock.Hour(t); hour < 12 {
					benefits = append(benefits, "Morning time slot")
				} else {
					tradeoffs = append(tradeoffs, "Afternoon slot")
				}
				confidence += 0.1 * (1 - float64(delay-1)/float64(maxDelay))
				if delay == 1 {
					benefits = append(benefits, "Only 1 day delay")
				} else {
					benefits = append(benefits, fmt.Sprintf("%d day delay", delay))
				}

				suggestions = append(suggestions, RescheduleSuggestion{
					DoctorID:   doctor.ID,
					DoctorName: doctor.Name,
					Date:       date,
					Time:       t,
					Confidence: math.Min(confidence, 0.99),
					Benefits:   benefits,
					Tradeoffs:  tradeoffs,
				})
				// One slot per doctor per day keeps the list varied.
				break
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions, nil
}

// PredictFutureConflicts flags weekday time buckets where past
// conflicts cluster. Weekends produce no predictions. With no recorded
// history the 10:00 peak-demand heuristic applies.
func (r *Resolver) PredictFutureConflicts(startDate, endDate string) ([]Prediction, error) {
	start, err := clock.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := clock.ParseDate(endDate)
	if err != nil {
		return nil, err
	}

	byTime := r.conflictCountsByTime()
	total := 0
	for _, n := range byTime {
		total += n
	}

	var predictions []Prediction
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if clock.IsWeekend(day.Weekday()) {
			continue
		}
		date := clock.FormatDate(day)

		if total == 0 {
			predictions = append(predictions, Prediction{
				Date:                  date,
				Time:                  "10:00",
				ConflictProbability:   0.7,
				PotentialCauses:       []string{"High demand time slot", "Multiple urgent appointments"},
				PreventionSuggestions: []string{"Add buffer time", "Suggest alternative times"},
			})
			continue
		}

		for _, t := range sortedTimes(byTime) {
			share := float64(byTime[t]) / float64(total)
			if share < 0.2 {
				continue
			}
			predictions = append(predictions, Prediction{
				Date:                  date,
				Time:                  t,
				ConflictProbability:   math.Min(0.3+share, 0.9),
				PotentialCauses:       []string{"Recurring conflicts at this time", "High demand time slot"},
				PreventionSuggestions: []string{"Add buffer time", "Spread bookings to adjacent slots"},
			})
		}
	}
	return predictions, nil
}

// conflictCountsByTime buckets every stored conflict by its original
// slot time.
func (r *Resolver) conflictCountsByTime() map[string]int {
	counts := make(map[string]int)
	for _, c := range r.store.Active() {
		counts[c.Details.OriginalSlot.Time]++
	}
	for _, res := range r.store.History() {
		if c, ok := r.store.Get(res.ConflictID); ok {
			counts[c.Details.OriginalSlot.Time]++
		}
	}
	return counts
}

func sortedTimes(byTime map[string]int) []string {
	times := make([]string, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Strings(times)
	return times
}

// OptimizeSchedule reorders and, where needed, reslots appointments to
// reduce detected overlaps, and reports the measured improvement.
func (r *Resolver) OptimizeSchedule(appointments []scheduling.Appointment, goals OptimizationGoals) ([]scheduling.Appointment, Improvements, []string) {
	optimized := make([]scheduling.Appointment, len(appointments))
	copy(optimized, appointments)

	if goals.PrioritizeUrgent {
		sort.SliceStable(optimized, func(i, j int) bool {
			return optimized[i].Urgency.Rank() > optimized[j].Urgency.Rank()
		})
	}

	before := countOverlaps(optimized)
	movedMinutes := 0

	if goals.MinimizeWaitTimes || goals.MaximizeUtilization {
		claimed := make(map[string]bool)
		slotKey := func(doctorID uuid.UUID, date, t string) string {
			return doctorID.String() + "|" + date + "|" + t
		}
		for i, appt := range optimized {
			k := slotKey(appt.DoctorID, appt.Date, appt.Time)
			if !claimed[k] {
				claimed[k] = true
				continue
			}
			start, err := clock.ParseMinutes(appt.Time)
			if err != nil {
				continue
			}
			for t := start + scheduling.DefaultDuration; t+scheduling.DefaultDuration <= 17*60; t += scheduling.DefaultDuration {
				candidate := clock.FormatMinutes(t)
				ck := slotKey(appt.DoctorID, appt.Date, candidate)
				if claimed[ck] {
					continue
				}
				if !r.availability.CoversSlot(appt.DoctorID, appt.Date, t, scheduling.DefaultDuration) {
					continue
				}
				claimed[ck] = true
				movedMinutes += t - start
				optimized[i].Time = candidate
				break
			}
		}
	}

	after := countOverlaps(optimized)
	improvements := Improvements{
		ConflictsReduced:       max(before-after, 0),
		UtilizationImprovement: 0,
	}
	if n := len(optimized); n > 0 {
		improvements.AverageWaitReductionMins = movedMinutes / n
		improvements.UtilizationImprovement = 100 * improvements.ConflictsReduced / n
	}

	return optimized, improvements, scheduleRecommendations(optimized)
}

// countOverlaps counts same-doctor same-date interval collisions.
func countOverlaps(appointments []scheduling.Appointment) int {
	overlaps := 0
	for i := 0; i < len(appointments); i++ {
		for j := i + 1; j < len(appointments); j++ {
			a, b := appointments[i], appointments[j]
			if a.DoctorID != b.DoctorID || a.Date != b.Date {
				continue
			}
			sa, errA := clock.ParseMinutes(a.Time)
			sb, errB := clock.ParseMinutes(b.Time)
			if errA != nil || errB != nil {
				continue
			}
			da, db := a.Duration, b.Duration
			if da <= 0 {
				da = scheduling.DefaultDuration
			}
			if db <= 0 {
				db = scheduling.DefaultDuration
			}
			if clock.Overlaps(sa, da, sb, db) {
				overlaps++
			}
		}
	}
	return overlaps
}

// scheduleRecommendations derives advice from observed load.
func scheduleRecommendations(appointments []scheduling.Appointment) []string {
	byHour := make(map[int]int)
	video := 0
	for _, a := range appointments {
		if h := clock.Hour(a.Time); h >= 0 {
			byHour[h]++
		}
		if a.Type == scheduling.TypeVideo {
			video++
		}
	}

	var recs []string
	peak, peakCount := 0, 0
	for h, n := range byHour {
		if n > peakCount {
			peak, peakCount = h, n
		}
	}
	if peakCount > 0 && float64(peakCount) > float64(len(appointments))*0.3 {
		recs = append(recs, fmt.Sprintf("Spread bookings away from the %02d:00 peak", peak))
	}
	if peakCount > 0 && peak < 17 {
		recs = append(recs, "Consider adding evening slots for high-demand doctors")
	}
	if video*2 < len(appointments) {
		recs = append(recs, "Use video consultations for follow-ups")
	}
	if len(recs) == 0 {
		recs = append(recs, "Implement buffer time between appointments")
	}
	return recs
}
