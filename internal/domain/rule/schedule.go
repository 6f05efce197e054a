package rule

import (
	"time"
)

// Schedule is a time-based activation predicate. A rule with a schedule is
// skipped, contributing nothing, whenever the event time falls outside it.
type Schedule struct {
	Location  *time.Location
	StartHour int // inclusive
	EndHour   int // exclusive; EndHour <= StartHour wraps past midnight
	Days      map[time.Weekday]struct{} // empty means every day
}

// Active reports whether the schedule admits the given event time, evaluated
// in the schedule's timezone.
func (s *Schedule) Active(at time.Time) bool {
	if s == nil {
		return true
	}
	local := at.In(s.Location)

	if len(s.Days) > 0 {
		if _, ok := s.Days[local.Weekday()]; !ok {
			return false
		}
	}

	h := local.Hour()
	if s.StartHour == s.EndHour {
		// Degenerate range covers the whole day.
		return true
	}
	if s.StartHour < s.EndHour {
		return h >= s.StartHour && h < s.EndHour
	}
	// Wrapping range, e.g. 22-06.
	return h >= s.StartHour || h < s.EndHour
}
