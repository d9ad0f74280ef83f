// Package recommend scores doctors and candidate time slots against a
// patient's stated factors. Scoring is additive over a configurable
// weight table so deployments can tune ranking policy without code
// changes.
package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/telemed/telemed/internal/domain/scheduling"
	"github.com/telemed/telemed/internal/domain/triage"
	"github.com/telemed/telemed/internal/platform/geo"
	"github.com/telemed/telemed/pkg/clock"
)

// Factors are the patient-side inputs that influence ranking. All
// fields are optional; absent factors simply contribute nothing.
type Factors struct {
	PatientLocation    *geo.Point                 `json:"patient_location,omitempty"`
	PreferredDate      string                     `json:"preferred_date,omitempty"`
	PreferredTimeOfDay string                     `json:"preferred_time_of_day,omitempty"`
	Symptoms           []triage.Symptom           `json:"symptoms,omitempty"`
	Urgency            triage.UrgencyLevel        `json:"urgency,omitempty"`
	PreferredDoctorIDs []uuid.UUID                `json:"preferred_doctor_ids,omitempty"`
	PreviousDoctorIDs  []uuid.UUID                `json:"previous_doctor_ids,omitempty"`
	MaxDistanceKM      float64                    `json:"max_distance_km,omitempty"`
	AppointmentType    scheduling.AppointmentType `json:"appointment_type,omitempty"`
}

// ScoredSlot is one candidate visit time with its fit score.
type ScoredSlot struct {
	Date  string  `json:"date"`
	Time  string  `json:"time"`
	Score float64 `json:"score"`
}

// DoctorRecommendation pairs a doctor with its aggregate score, the
// reasons that fired, and a ranked candidate-slot list.
type DoctorRecommendation struct {
	Doctor         scheduling.Doctor `json:"doctor"`
	Score          float64           `json:"score"`
	AvailableSlots []ScoredSlot      `json:"available_slots"`
	Reasons        []string          `json:"reasons"`
	DistanceKM     *float64          `json:"distance_km,omitempty"`
}

// Weights is the scoring policy. Zero values are legal; use
// DefaultWeights for the standard table.
type Weights struct {
	DistanceVeryClose float64 `mapstructure:"distance_very_close"`
	DistanceClose     float64 `mapstructure:"distance_close"`
	DistanceModerate  float64 `mapstructure:"distance_moderate"`
	DistanceFar       float64 `mapstructure:"distance_far"`
	BeyondMaxPenalty  float64 `mapstructure:"beyond_max_penalty"`

	RatingExcellent float64 `mapstructure:"rating_excellent"`
	RatingGood      float64 `mapstructure:"rating_good"`
	RatingFair      float64 `mapstructure:"rating_fair"`

	ExperienceSenior float64 `mapstructure:"experience_senior"`
	ExperienceMid    float64 `mapstructure:"experience_mid"`
	ExperienceJunior float64 `mapstructure:"experience_junior"`

	PreferredDoctor float64 `mapstructure:"preferred_doctor"`
	PreviousDoctor  float64 `mapstructure:"previous_doctor"`

	VideoSupport float64 `mapstructure:"video_support"`
	InPerson     float64 `mapstructure:"in_person"`

	SlotPreferredDateExact float64 `mapstructure:"slot_preferred_date_exact"`
	SlotDayDecayPerDay     float64 `mapstructure:"slot_day_decay_per_day"`
	SlotDayDecayCap        float64 `mapstructure:"slot_day_decay_cap"`
	SlotTimeOfDayMatch     float64 `mapstructure:"slot_time_of_day_match"`
	SlotUrgentDay0         float64 `mapstructure:"slot_urgent_day0"`
	SlotUrgentDay1         float64 `mapstructure:"slot_urgent_day1"`
	SlotUrgentDay2         float64 `mapstructure:"slot_urgent_day2"`
	SlotMediumEarly        float64 `mapstructure:"slot_medium_early"`
}

// DefaultWeights returns the standard scoring table.
func DefaultWeights() Weights {
	return Weights{
		DistanceVeryClose: 20,
		DistanceClose:     15,
		DistanceModerate:  10,
		DistanceFar:       5,
		BeyondMaxPenalty:  50,

		RatingExcellent: 15,
		RatingGood:      10,
		RatingFair:      5,

		ExperienceSenior: 15,
		ExperienceMid:    10,
		ExperienceJunior: 5,

		PreferredDoctor: 25,
		PreviousDoctor:  20,

		VideoSupport: 10,
		InPerson:     5,

		SlotPreferredDateExact: 20,
		SlotDayDecayPerDay:     2,
		SlotDayDecayCap:        10,
		SlotTimeOfDayMatch:     10,
		SlotUrgentDay0:         30,
		SlotUrgentDay1:         20,
		SlotUrgentDay2:         10,
		SlotMediumEarly:        15,
	}
}

// slotTimes is the fixed daily grid; 13:00 is held out as a break.
var slotTimes = []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"}

// slotGridDays is how many days ahead the candidate-slot grid covers.
const slotGridDays = 7

// Scorer ranks doctors under a fixed weight table.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithNow overrides the scorer's clock for deterministic slot grids.
func WithNow(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer builds a scorer with the given weights.
func NewScorer(weights Weights, opts ...Option) *Scorer {
	s := &Scorer{weights: weights, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Doctors scores every candidate and returns them sorted by descending
// score. When symptoms are given, doctors are first narrowed to the
// recommended specialties; if that filter empties the pool, the full
// pool is scored instead so callers never see an empty result caused by
// over-filtering alone.
func (s *Scorer) Doctors(doctors []scheduling.Doctor, factors Factors) []DoctorRecommendation {
	candidates := doctors
	if len(factors.Symptoms) > 0 {
		specialties := triage.RecommendSpecialties(factors.Symptoms)
		wanted := make(map[string]bool, len(specialties))
		for _, sp := range specialties {
			wanted[sp] = true
		}

		var filtered []scheduling.Doctor
		for _, d := range doctors {
			if wanted[d.Specialty] {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	recs := make([]DoctorRecommendation, 0, len(candidates))
	for _, doctor := range candidates {
		recs = append(recs, s.scoreDoctor(doctor, factors))
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs
}

func (s *Scorer) scoreDoctor(doctor scheduling.Doctor, factors Factors) DoctorRecommendation {
	var score float64
	var reasons []string
	var distanceKM *float64

	if factors.PatientLocation != nil {
		d := geo.Distance(*factors.PatientLocation, doctor.Location)
		distanceKM = &d

		switch {
		case d <= 2:
			score += s.weights.DistanceVeryClose
			reasons = append(reasons, "Very close to your location")
		case d <= 5:
			score += s.weights.DistanceClose
			reasons = append(reasons, "Close to your location")
		case d <= 10:
			score += s.weights.DistanceModerate
			reasons = append(reasons, "Reasonable distance from your location")
		case d <= 20:
			score += s.weights.DistanceFar
		}

		if factors.MaxDistanceKM > 0 && d > factors.MaxDistanceKM {
			score -= s.weights.BeyondMaxPenalty
		}
	}

	switch {
	case doctor.Rating >= 4.5:
		score += s.weights.RatingExcellent
		reasons = append(reasons, "Highly rated doctor")
	case doctor.Rating >= 4.0:
		score += s.weights.RatingGood
		reasons = append(reasons, "Well-rated doctor")
	case doctor.Rating >= 3.5:
		score += s.weights.RatingFair
	}

	switch {
	case doctor.Experience >= 10:
		score += s.weights.ExperienceSenior
		reasons = append(reasons, "Very experienced doctor")
	case doctor.Experience >= 5:
		score += s.weights.ExperienceMid
		reasons = append(reasons, "Experienced doctor")
	default:
		score += s.weights.ExperienceJunior
	}

	if containsID(factors.PreferredDoctorIDs, doctor.ID) {
		score += s.weights.PreferredDoctor
		reasons = append(reasons, "You've selected this doctor as preferred")
	}
	if containsID(factors.PreviousDoctorIDs, doctor.ID) {
		score += s.weights.PreviousDoctor
		reasons = append(reasons, "You've consulted with this doctor before")
	}

	switch {
	case factors.AppointmentType == scheduling.TypeVideo && doctor.AvailableForVideo:
		score += s.weights.VideoSupport
		reasons = append(reasons, "Available for video consultation")
	case factors.AppointmentType == scheduling.TypeInPerson:
		score += s.weights.InPerson
	}

	return DoctorRecommendation{
		Doctor:         doctor,
		Score:          score,
		AvailableSlots: s.scoredSlots(factors),
		Reasons:        reasons,
		DistanceKM:     distanceKM,
	}
}

// scoredSlots builds the fixed 7-day slot grid and scores each slot by
// preferred-date proximity, time-of-day fit, and urgency front-loading.
func (s *Scorer) scoredSlots(factors Factors) []ScoredSlot {
	today := s.now()

	var slots []ScoredSlot
	for dayOffset := 0; dayOffset < slotGridDays; dayOffset++ {
		day := today.AddDate(0, 0, dayOffset)
		date := clock.FormatDate(day)

		for _, t := range slotTimes {
			var score float64

			if factors.PreferredDate != "" {
				if date == factors.PreferredDate {
					score += s.weights.SlotPreferredDateExact
				} else if preferred, err := clock.ParseDate(factors.PreferredDate); err == nil {
					daysDiff := math.Abs(day.Sub(preferred).Hours() / 24)
					score -= math.Min(daysDiff*s.weights.SlotDayDecayPerDay, s.weights.SlotDayDecayCap)
				}
			}

			if slotMatchesTimeOfDay(factors.PreferredTimeOfDay, clock.Hour(t)) {
				score += s.weights.SlotTimeOfDayMatch
			}

			switch factors.Urgency {
			case triage.UrgencyHigh, triage.UrgencyEmergency:
				switch dayOffset {
				case 0:
					score += s.weights.SlotUrgentDay0
				case 1:
					score += s.weights.SlotUrgentDay1
				case 2:
					score += s.weights.SlotUrgentDay2
				}
			case triage.UrgencyMedium:
				if dayOffset < 3 {
					score += s.weights.SlotMediumEarly
				}
			}

			slots = append(slots, ScoredSlot{Date: date, Time: t, Score: score})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Score > slots[j].Score })
	return slots
}

func slotMatchesTimeOfDay(pref string, hour int) bool {
	switch pref {
	case "morning":
		return hour < 12
	case "afternoon":
		return hour >= 12 && hour < 15
	case "evening":
		return hour >= 15
	default:
		return false
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
