package scheduling

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/telemed/telemed/pkg/clock"
)

// interval is a half-open booked range in minutes since midnight.
type interval struct {
	start int
	end   int
}

// availabilityIndex holds the booked intervals per doctor and date,
// sorted by start time. It is rebuilt on every Initialize and read-only
// afterwards, so lookups need no locking of their own.
type availabilityIndex struct {
	booked map[uuid.UUID]map[string][]interval
	byTime map[string]int // "date time" -> bookings across all doctors
}

func newAvailabilityIndex(appointments []Appointment) *availabilityIndex {
	ix := &availabilityIndex{
		booked: make(map[uuid.UUID]map[string][]interval),
		byTime: make(map[string]int),
	}

	for _, a := range appointments {
		if a.Status == StatusCancelled {
			continue
		}
		start, err := clock.ParseMinutes(a.Time)
		if err != nil {
			continue
		}
		dur := a.Duration
		if dur <= 0 {
			dur = DefaultDuration
		}

		days, ok := ix.booked[a.DoctorID]
		if !ok {
			days = make(map[string][]interval)
			ix.booked[a.DoctorID] = days
		}
		days[a.Date] = append(days[a.Date], interval{start: start, end: start + dur})
		ix.byTime[a.Date+" "+a.Time]++
	}

	for _, days := range ix.booked {
		for date := range days {
			ivs := days[date]
			sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
		}
	}
	return ix
}

// isFree reports whether the doctor has no booked interval intersecting
// [start, start+duration) on the given date.
func (ix *availabilityIndex) isFree(doctorID uuid.UUID, date string, start, duration int) bool {
	for _, iv := range ix.booked[doctorID][date] {
		if iv.start >= start+duration {
			break
		}
		if clock.Overlaps(iv.start, iv.end-iv.start, start, duration) {
			return false
		}
	}
	return true
}

// countAt returns how many appointments across all doctors share the
// exact date and time.
func (ix *availabilityIndex) countAt(date, timeStr string) int {
	return ix.byTime[date+" "+timeStr]
}

// bookedMinutesInHour returns how many minutes of the given hour are
// booked for the doctor on the date, capped at 60.
func (ix *availabilityIndex) bookedMinutesInHour(doctorID uuid.UUID, date string, hour int) int {
	hourStart := hour * 60
	hourEnd := hourStart + 60
	total := 0
	for _, iv := range ix.booked[doctorID][date] {
		lo := max(iv.start, hourStart)
		hi := min(iv.end, hourEnd)
		if hi > lo {
			total += hi - lo
		}
	}
	if total > 60 {
		total = 60
	}
	return total
}

// windowCovers reports whether the doctor's weekly template has an
// available window containing [start, start+duration) on the date's
// weekday.
func windowCovers(d Doctor, date string, start, duration int) bool {
	weekday, err := clock.Weekday(date)
	if err != nil {
		return false
	}
	dayName := strings.ToLower(weekday.String())

	for _, w := range d.WeeklyAvailability {
		if !w.Available || strings.ToLower(w.Day) != dayName {
			continue
		}
		wStart, err := clock.ParseMinutes(w.StartTime)
		if err != nil {
			continue
		}
		wEnd, err := clock.ParseMinutes(w.EndTime)
		if err != nil {
			continue
		}
		if start >= wStart && start+duration <= wEnd {
			return true
		}
	}
	return false
}

// CoversSlot reports whether the doctor's weekly template covers the
// interval starting at the given minute-of-day on the given date.
func (d Doctor) CoversSlot(date string, start, duration int) bool {
	return windowCovers(d, date, start, duration)
}
