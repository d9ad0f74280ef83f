// Package triage classifies free-text symptoms into an urgency level and
// a set of candidate medical specialties using keyword matching.
package triage

import "strings"

// UrgencyLevel grades how quickly a patient should be seen.
type UrgencyLevel string

const (
	UrgencyLow       UrgencyLevel = "low"
	UrgencyMedium    UrgencyLevel = "medium"
	UrgencyHigh      UrgencyLevel = "high"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// Symptom is a patient-reported complaint.
type Symptom struct {
	Name     string `json:"name"`
	Severity string `json:"severity,omitempty"`
}

// Keyword tiers, checked in descending order of urgency. The first tier
// with any substring match decides the level.
var (
	emergencyKeywords = []string{"chest pain", "difficulty breathing", "severe bleeding", "unconsciousness"}
	highKeywords      = []string{"high fever", "severe pain", "broken bone", "deep cut"}
	mediumKeywords    = []string{"moderate pain", "fever", "persistent cough", "rash"}
)

// UrgencyFor returns the urgency level for a set of symptoms. Symptoms
// that match no tier classify as low.
func UrgencyFor(symptoms []Symptom) UrgencyLevel {
	if matchesAny(symptoms, emergencyKeywords) {
		return UrgencyEmergency
	}
	if matchesAny(symptoms, highKeywords) {
		return UrgencyHigh
	}
	if matchesAny(symptoms, mediumKeywords) {
		return UrgencyMedium
	}
	return UrgencyLow
}

func matchesAny(symptoms []Symptom, keywords []string) bool {
	for _, s := range symptoms {
		name := strings.ToLower(s.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return true
			}
		}
	}
	return false
}

// Rank orders urgency levels for comparison; higher is more urgent.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyEmergency:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

// specialtyEntry keeps the lookup table ordered so matches accumulate
// deterministically.
type specialtyEntry struct {
	keyword     string
	specialties []string
}

var specialtyTable = []specialtyEntry{
	{"headache", []string{"Neurologist", "General Physician"}},
	{"migraine", []string{"Neurologist"}},
	{"chest pain", []string{"Cardiologist", "Pulmonologist"}},
	{"heart palpitations", []string{"Cardiologist"}},
	{"shortness of breath", []string{"Pulmonologist", "Cardiologist"}},
	{"cough", []string{"Pulmonologist", "General Physician"}},
	{"fever", []string{"General Physician", "Infectious Disease Specialist"}},
	{"sore throat", []string{"ENT Specialist", "General Physician"}},
	{"ear pain", []string{"ENT Specialist"}},
	{"vision problems", []string{"Ophthalmologist"}},
	{"skin rash", []string{"Dermatologist"}},
	{"joint pain", []string{"Orthopedic Surgeon", "Rheumatologist"}},
	{"back pain", []string{"Orthopedic Surgeon", "Neurologist", "Physiotherapist"}},
	{"stomach pain", []string{"Gastroenterologist", "General Physician"}},
	{"nausea", []string{"Gastroenterologist", "General Physician"}},
	{"diarrhea", []string{"Gastroenterologist", "General Physician"}},
	{"urinary problems", []string{"Urologist", "Nephrologist"}},
	{"mental health", []string{"Psychiatrist", "Psychologist"}},
	{"anxiety", []string{"Psychiatrist", "Psychologist"}},
	{"depression", []string{"Psychiatrist", "Psychologist"}},
	{"pregnancy", []string{"Gynecologist", "Obstetrician"}},
	{"menstrual problems", []string{"Gynecologist"}},
	{"diabetes", []string{"Endocrinologist", "General Physician"}},
	{"thyroid", []string{"Endocrinologist"}},
	{"allergies", []string{"Allergist", "Immunologist"}},
	{"cancer", []string{"Oncologist"}},
}

// RecommendSpecialties maps symptoms to candidate specialties. Each
// symptom is first matched exactly against the lookup table, then by
// substring in either direction. Results are deduplicated and keep
// first-insertion order. When nothing matches, the list falls back to
// General Physician so a search never dead-ends.
func RecommendSpecialties(symptoms []Symptom) []string {
	var ordered []string
	seen := make(map[string]bool)

	add := func(specialties []string) {
		for _, sp := range specialties {
			if !seen[sp] {
				seen[sp] = true
				ordered = append(ordered, sp)
			}
		}
	}

	for _, symptom := range symptoms {
		name := strings.ToLower(strings.TrimSpace(symptom.Name))
		if name == "" {
			continue
		}

		exact := false
		for _, entry := range specialtyTable {
			if entry.keyword == name {
				add(entry.specialties)
				exact = true
				break
			}
		}
		if exact {
			continue
		}

		for _, entry := range specialtyTable {
			if strings.Contains(name, entry.keyword) || strings.Contains(entry.keyword, name) {
				add(entry.specialties)
			}
		}
	}

	if len(ordered) == 0 {
		ordered = append(ordered, "General Physician")
	}
	return ordered
}
