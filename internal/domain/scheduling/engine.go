package scheduling

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/internal/platform/geo"
	"github.com/telemed/telemed/pkg/clock"
)

// Common errors returned by the scheduling engine.
var (
	ErrNotInitialized = errors.New("scheduling engine not initialized")
	ErrDoctorNotFound = errors.New("doctor not found")
)

const (
	// recommendationWindowDays is the rolling window scanned for
	// candidate slots.
	recommendationWindowDays = 14
	// slotsPerDoctor caps how many slots one doctor contributes.
	slotsPerDoctor = 3
	// maxRecommendations caps the final ranked list.
	maxRecommendations = 10
	// overloadThreshold is the system-load fraction above which a slot
	// is flagged as system_overload.
	overloadThreshold = 0.9
	// confidenceTieBand treats confidences within this distance as tied.
	confidenceTieBand = 0.1
)

// Engine produces ranked appointment recommendations and slot-conflict
// probes over a snapshot of doctors and appointments loaded at
// initialization. All reads are deterministic for a fixed snapshot.
type Engine struct {
	mu          sync.RWMutex
	doctors     []Doctor
	byID        map[uuid.UUID]Doctor
	history     []Appointment
	index       *availabilityIndex
	initialized bool

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the engine's clock; used by tests to pin the
// rolling recommendation window.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an uninitialized engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize loads the engine with a fresh snapshot, fully replacing
// any prior state.
func (e *Engine) Initialize(doctors []Doctor, appointments []Appointment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.doctors = make([]Doctor, len(doctors))
	copy(e.doctors, doctors)

	e.byID = make(map[uuid.UUID]Doctor, len(doctors))
	for _, d := range doctors {
		e.byID[d.ID] = d
	}

	e.history = make([]Appointment, len(appointments))
	copy(e.history, appointments)

	e.index = newAvailabilityIndex(appointments)
	e.initialized = true
}

// SmartRecommendations returns up to ten ranked doctor/slot proposals
// for the given preferences and patient context. An empty result is not
// an error. The optional specialty filters doctors by case-insensitive
// substring match.
func (e *Engine) SmartRecommendations(prefs Preferences, pctx Context, specialty string) ([]SmartRecommendation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	candidates := e.doctors
	if specialty != "" {
		var filtered []Doctor
		for _, d := range candidates {
			if strings.Contains(strings.ToLower(d.Specialty), strings.ToLower(specialty)) {
				filtered = append(filtered, d)
			}
		}
		candidates = filtered
	}

	var recommendations []SmartRecommendation
	for _, doctor := range candidates {
		slots := e.candidateSlots(doctor, prefs)
		primary := slots
		if len(primary) > slotsPerDoctor {
			primary = primary[:slotsPerDoctor]
		}

		for _, slot := range primary {
			rec := SmartRecommendation{
				Doctor:               doctor,
				Slot:                 slot,
				Confidence:           confidence(doctor, slot, prefs),
				Reasoning:            reasoning(doctor, slot, prefs, pctx),
				Alternatives:         alternatives(doctor, slot, slots),
				EstimatedWaitMinutes: estimateWait(doctor, slot),
			}
			if pctx.Location != nil {
				rec.TravelInfo = travelInfo(doctor, *pctx.Location)
			}
			recommendations = append(recommendations, rec)
		}
	}

	e.rank(recommendations, prefs, pctx)
	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}
	return recommendations, nil
}

// candidateSlots intersects the doctor's weekly template with the
// rolling window at 30-minute increments, keeps slots matching the
// time-of-day preference, and drops slots already booked.
func (e *Engine) candidateSlots(doctor Doctor, prefs Preferences) []Slot {
	var slots []Slot
	today := e.now()

	for i := 1; i <= recommendationWindowDays; i++ {
		day := today.AddDate(0, 0, i)
		date := clock.FormatDate(day)
		dayName := strings.ToLower(day.Weekday().String())

		for _, w := range doctor.WeeklyAvailability {
			if !w.Available || strings.ToLower(w.Day) != dayName {
				continue
			}
			start, err := clock.ParseMinutes(w.StartTime)
			if err != nil {
				continue
			}
			end, err := clock.ParseMinutes(w.EndTime)
			if err != nil {
				continue
			}

			for t := start; t+DefaultDuration <= end; t += DefaultDuration {
				if !matchesTimeOfDay(prefs.PreferredTimeOfDay, t/60) {
					continue
				}
				if !e.index.isFree(doctor.ID, date, t, DefaultDuration) {
					continue
				}
				slots = append(slots, Slot{Date: date, Time: clock.FormatMinutes(t), Duration: DefaultDuration})
			}
		}
	}
	return slots
}

func matchesTimeOfDay(pref string, hour int) bool {
	switch pref {
	case "morning":
		return hour >= 9 && hour < 12
	case "afternoon":
		return hour >= 12 && hour < 17
	case "evening":
		return hour >= 17 && hour < 20
	default:
		return true
	}
}

// confidence blends doctor quality and preference fit into a [0,1]
// score: base 0.5, rating and experience terms, plus 0.1 each for
// language, budget and time-of-day matches.
func confidence(doctor Doctor, slot Slot, prefs Preferences) float64 {
	c := 0.5
	c += (doctor.Rating - 3) * 0.1
	c += math.Min(float64(doctor.Experience)*0.02, 0.2)

	if hasLanguageMatch(doctor.Languages, prefs.LanguagePreference) {
		c += 0.1
	}
	if prefs.BudgetRange.Max > 0 &&
		doctor.ConsultationFee >= prefs.BudgetRange.Min &&
		doctor.ConsultationFee <= prefs.BudgetRange.Max {
		c += 0.1
	}
	if matchesTimeOfDay(prefs.PreferredTimeOfDay, clock.Hour(slot.Time)) {
		c += 0.1
	}

	return math.Max(0, math.Min(c, 1))
}

func hasLanguageMatch(spoken, preferred []string) bool {
	for _, lang := range spoken {
		for _, want := range preferred {
			if strings.EqualFold(lang, want) {
				return true
			}
		}
	}
	return false
}

func reasoning(doctor Doctor, slot Slot, prefs Preferences, pctx Context) []string {
	var reasons []string
	if doctor.Rating >= 4.5 {
		reasons = append(reasons, fmt.Sprintf("Highly rated doctor (%.1f/5.0)", doctor.Rating))
	}
	if doctor.Experience >= 10 {
		reasons = append(reasons, fmt.Sprintf("Experienced specialist (%d years)", doctor.Experience))
	}
	if hasLanguageMatch(doctor.Languages, prefs.LanguagePreference) {
		reasons = append(reasons, "Speaks your preferred language")
	}
	if matchesTimeOfDay(prefs.PreferredTimeOfDay, clock.Hour(slot.Time)) && prefs.PreferredTimeOfDay != "" && prefs.PreferredTimeOfDay != "any" {
		reasons = append(reasons, "Matches your preferred time")
	}
	if len(pctx.Symptoms) > 0 {
		reasons = append(reasons, fmt.Sprintf("Specializes in treating %s", pctx.Symptoms[0]))
	}
	return reasons
}

// alternatives returns up to two other slots with the same doctor.
func alternatives(doctor Doctor, primary Slot, slots []Slot) []Alternative {
	var alts []Alternative
	for _, s := range slots {
		if s.Date == primary.Date && s.Time == primary.Time {
			continue
		}
		alts = append(alts, Alternative{
			Doctor: doctor,
			Slot:   s,
			Reason: "Alternative time with same doctor",
		})
		if len(alts) == 2 {
			break
		}
	}
	return alts
}

// estimateWait models the expected waiting-room delay in minutes:
// 15 base, popular doctors add up to 10, peak hours (10:00 and 14:00)
// add 5, floored at 5.
func estimateWait(doctor Doctor, slot Slot) int {
	wait := 15.0
	wait += (doctor.Rating - 3) * 5

	hour := clock.Hour(slot.Time)
	if hour == 10 || hour == 14 {
		wait += 5
	}
	if wait < 5 {
		wait = 5
	}
	return int(wait)
}

// travelInfo estimates the trip assuming dense urban traffic at roughly
// 20 km/h, with a 5-minute floor.
func travelInfo(doctor Doctor, from geo.Point) *TravelInfo {
	distance := geo.Distance(from, doctor.Location)
	minutes := int(math.Round(distance * 3))
	if minutes < 5 {
		minutes = 5
	}
	return &TravelInfo{
		DistanceKM:       distance,
		Distance:         geo.FormatDistance(distance),
		EstimatedMinutes: minutes,
		TransportOptions: []string{"CNG", "Uber", "Bus"},
	}
}

// rank orders recommendations in place. Emergencies sort by ascending
// wait time; otherwise by descending confidence with near-ties (within
// 0.1) broken by how often the patient has seen the doctor before.
func (e *Engine) rank(recs []SmartRecommendation, prefs Preferences, pctx Context) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if prefs.Urgency == triage.UrgencyEmergency {
			return a.EstimatedWaitMinutes < b.EstimatedWaitMinutes
		}
		if math.Abs(a.Confidence-b.Confidence) > confidenceTieBand {
			return a.Confidence > b.Confidence
		}
		return e.patientDoctorVisits(pctx.PatientID, a.Doctor.ID) > e.patientDoctorVisits(pctx.PatientID, b.Doctor.ID)
	})
}

func (e *Engine) patientDoctorVisits(patientID, doctorID uuid.UUID) int {
	count := 0
	for _, a := range e.history {
		if a.PatientID == patientID && a.DoctorID == doctorID {
			count++
		}
	}
	return count
}

// DetectSlotConflict probes one doctor/date/time slot. It returns nil
// when the slot is bookable. An unknown doctor is reported as an
// unavailability conflict with no alternatives, not as an error.
func (e *Engine) DetectSlotConflict(doctorID uuid.UUID, date, timeStr string, duration int) (*SlotConflict, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	start, err := clock.ParseMinutes(timeStr)
	if err != nil {
		return nil, err
	}
	if _, err := clock.ParseDate(date); err != nil {
		return nil, err
	}

	original := SlotRef{DoctorID: doctorID, Date: date, Time: timeStr}

	doctor, ok := e.byID[doctorID]
	if !ok {
		return &SlotConflict{
			Type:         ConflictDoctorUnavailable,
			OriginalSlot: original,
			Alternatives: []SlotAlternative{},
		}, nil
	}

	if !windowCovers(doctor, date, start, duration) || !e.index.isFree(doctorID, date, start, duration) {
		alts := e.alternativeSlots(doctor, date, duration, 3)
		return &SlotConflict{
			Type:           ConflictDoctorUnavailable,
			OriginalSlot:   original,
			Alternatives:   alts,
			AutoReschedule: len(alts) > 0 && alts[0].Priority > 0.8,
		}, nil
	}

	if e.systemLoad(date, timeStr) > overloadThreshold {
		return &SlotConflict{
			Type:           ConflictSystemOverload,
			OriginalSlot:   original,
			Alternatives:   e.lessCongestedSlots(doctor, date, duration, 3),
			AutoReschedule: false,
		}, nil
	}

	return nil, nil
}

// systemLoad is the fraction of doctors already booked at the exact
// date and time.
func (e *Engine) systemLoad(date, timeStr string) float64 {
	if len(e.doctors) == 0 {
		return 0
	}
	load := float64(e.index.countAt(date, timeStr)) / float64(len(e.doctors))
	return math.Min(load, 1)
}

// alternativeSlots finds the doctor's nearest free template slots from
// the requested date forward. Priority decays with distance from the
// requested day so the caller can auto-approve close replacements.
func (e *Engine) alternativeSlots(doctor Doctor, fromDate string, duration, limit int) []SlotAlternative {
	day, err := clock.ParseDate(fromDate)
	if err != nil {
		return nil
	}

	var alts []SlotAlternative
	for offset := 0; offset < 7 && len(alts) < limit; offset++ {
		date := clock.FormatDate(day.AddDate(0, 0, offset))
		dayName := strings.ToLower(day.AddDate(0, 0, offset).Weekday().String())

		for _, w := range doctor.WeeklyAvailability {
			if !w.Available || strings.ToLower(w.Day) != dayName {
				continue
			}
			start, err1 := clock.ParseMinutes(w.StartTime)
			end, err2 := clock.ParseMinutes(w.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}
			for t := start; t+duration <= end && len(alts) < limit; t += DefaultDuration {
				if !e.index.isFree(doctor.ID, date, t, duration) {
					continue
				}
				priority := 0.95 - 0.1*float64(offset) - 0.01*float64(len(alts))
				if priority < 0.1 {
					priority = 0.1
				}
				alts = append(alts, SlotAlternative{
					DoctorID: doctor.ID,
					Date:     date,
					Time:     clock.FormatMinutes(t),
					Priority: priority,
					Reason:   "Next available slot with same doctor",
				})
			}
		}
	}
	return alts
}

// lessCongestedSlots offers same-day slots ordered by ascending system
// load.
func (e *Engine) lessCongestedSlots(doctor Doctor, date string, duration, limit int) []SlotAlternative {
	type scored struct {
		timeStr string
		load    float64
	}
	var candidates []scored
	for hour := 9; hour <= 17; hour++ {
		if hour == 13 {
			continue
		}
		start := hour * 60
		if !windowCovers(doctor, date, start, duration) || !e.index.isFree(doctor.ID, date, start, duration) {
			continue
		}
		timeStr := clock.FormatMinutes(start)
		candidates = append(candidates, scored{timeStr: timeStr, load: e.systemLoad(date, timeStr)})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].load < candidates[j].load })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	alts := make([]SlotAlternative, 0, len(candidates))
	for _, c := range candidates {
		alts = append(alts, SlotAlternative{
			DoctorID: doctor.ID,
			Date:     date,
			Time:     c.timeStr,
			Priority: 1 - c.load,
			Reason:   "Less congested time",
		})
	}
	return alts
}

// OptimizeSchedule assigns each request its preferred slot in priority
// order; contended slots fall back to the doctor's nearest free
// alternative and record the adjustment.
func (e *Engine) OptimizeSchedule(requests []ScheduleRequest) ([]ScheduledEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	ordered := make([]ScheduleRequest, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	claimed := make(map[string]bool)
	key := func(doctorID uuid.UUID, date, timeStr string) string {
		return doctorID.String() + "|" + date + "|" + timeStr
	}

	scheduled := make([]ScheduledEntry, 0, len(ordered))
	for _, req := range ordered {
		duration := req.Duration
		if duration <= 0 {
			duration = DefaultDuration
		}

		k := key(req.DoctorID, req.PreferredDate, req.PreferredTime)
		if !claimed[k] {
			claimed[k] = true
			scheduled = append(scheduled, ScheduledEntry{
				PatientID:   req.PatientID,
				DoctorID:    req.DoctorID,
				Date:        req.PreferredDate,
				Time:        req.PreferredTime,
				Confidence:  1.0,
				Adjustments: []string{},
			})
			continue
		}

		entry := ScheduledEntry{
			PatientID:   req.PatientID,
			DoctorID:    req.DoctorID,
			Date:        req.PreferredDate,
			Time:        req.PreferredTime,
			Confidence:  0.5,
			Adjustments: []string{"Preferred slot contended; no alternative found"},
		}
		if doctor, ok := e.byID[req.DoctorID]; ok {
			for _, alt := range e.alternativeSlots(doctor, req.PreferredDate, duration, 8) {
				ak := key(alt.DoctorID, alt.Date, alt.Time)
				if claimed[ak] {
					continue
				}
				claimed[ak] = true
				entry.Date = alt.Date
				entry.Time = alt.Time
				entry.Confidence = 0.8
				entry.Adjustments = []string{"Time adjusted due to slot contention"}
				break
			}
		}
		scheduled = append(scheduled, entry)
	}
	return scheduled, nil
}

// PredictAvailability forecasts hourly availability probability and
// expected demand for each day in the inclusive date range. The base
// weekday/peak-hour heuristics are damped by the doctor's actual
// bookings and lifted by historical demand at that weekday and hour.
func (e *Engine) PredictAvailability(doctorID uuid.UUID, startDate, endDate string) ([]DayForecast, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if _, ok := e.byID[doctorID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}

	start, err := clock.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := clock.ParseDate(endDate)
	if err != nil {
		return nil, err
	}

	var forecasts []DayForecast
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := clock.FormatDate(day)
		weekday := day.Weekday()

		var hours []HourForecast
		for hour := 9; hour <= 17; hour++ {
			hours = append(hours, HourForecast{
				Time:           clock.FormatMinutes(hour * 60),
				Probability:    e.availabilityProbability(doctorID, date, weekday, hour),
				ExpectedDemand: e.expectedDemand(weekday, hour),
			})
		}
		forecasts = append(forecasts, DayForecast{Date: date, TimeSlots: hours})
	}
	return forecasts, nil
}

func (e *Engine) availabilityProbability(doctorID uuid.UUID, date string, weekday time.Weekday, hour int) float64 {
	var base float64
	switch {
	case clock.IsWeekend(weekday):
		base = 0.3
	case hour < 9 || hour > 17:
		base = 0.1
	case hour >= 10 && hour <= 16:
		base = 0.8
	default:
		base = 0.6
	}

	bookedFraction := float64(e.index.bookedMinutesInHour(doctorID, date, hour)) / 60
	p := base * (1 - bookedFraction)
	return math.Max(math.Round(p*100)/100, 0.05)
}

func (e *Engine) expectedDemand(weekday time.Weekday, hour int) float64 {
	base := 0.4
	if !clock.IsWeekend(weekday) {
		if hour >= 10 && hour <= 12 {
			base = 0.9
		} else if hour >= 14 && hour <= 16 {
			base = 0.8
		}
	}

	// Lift by the share of historical bookings at this weekday+hour.
	if len(e.history) > 0 {
		matches := 0
		for _, a := range e.history {
			d, err := clock.Weekday(a.Date)
			if err != nil || d != weekday {
				continue
			}
			if clock.Hour(a.Time) == hour {
				matches++
			}
		}
		base += 0.5 * float64(matches) / float64(len(e.history))
	}
	return math.Min(math.Round(base*100)/100, 1)
}
