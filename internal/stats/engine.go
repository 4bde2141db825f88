// Package stats derives per-user usage statistics from transformation history.
//
// Compute is a pure function of the record set and the evaluation instant: it performs no
// I/O, never mutates its input and is recomputed on every request.
package stats

import (
	"sort"
	"time"
)

// Week is the window counted by Usage.WeeklyCount.
const Week = 7 * 24 * time.Hour

// Record is the projection of a stored transformation the engine needs.
//
// A zero CreatedAt marks a timestamp the store could not parse; such records are excluded
// from every count.
type Record struct {
	Persona   string
	CreatedAt time.Time
}

// Usage aggregates a user's transformation activity.
type Usage struct {
	TotalCount         int `json:"total_count"`
	WeeklyCount        int `json:"weekly_count"`
	UniquePersonaCount int `json:"unique_persona_count"`
	StreakDays         int `json:"streak_days"`
}

// Compute derives Usage from records as seen at now. Calendar days are taken in now's location.
func Compute(records []Record, now time.Time) Usage {
	var usage Usage
	personas := make(map[string]struct{})
	days := make(map[civilDay]struct{})

	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			continue
		}
		usage.TotalCount++
		personas[rec.Persona] = struct{}{}
		// Clock skew can put a record ahead of now. It counts toward the totals only.
		if rec.CreatedAt.After(now) {
			continue
		}
		if now.Sub(rec.CreatedAt) < Week {
			usage.WeeklyCount++
		}
		days[dayOf(rec.CreatedAt.In(now.Location()))] = struct{}{}
	}

	usage.UniquePersonaCount = len(personas)
	usage.StreakDays = streak(days, dayOf(now))
	return usage
}

func streak(days map[civilDay]struct{}, today civilDay) int {
	if len(days) == 0 {
		return 0
	}

	ordered := make([]civilDay, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].after(ordered[j]) })

	anchor := ordered[0]
	if gap := today.sub(anchor); gap != 0 && gap != 1 {
		return 0
	}

	count := 1
	for _, d := range ordered[1:] {
		if anchor.sub(d) != 1 {
			break
		}
		count++
		anchor = d
	}
	return count
}

// civilDay is a calendar date with no time-of-day or zone attached.
type civilDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) civilDay {
	y, m, d := t.Date()
	return civilDay{year: y, month: m, day: d}
}

func (c civilDay) midnightUTC() time.Time {
	return time.Date(c.year, c.month, c.day, 0, 0, 0, 0, time.UTC)
}

func (c civilDay) after(other civilDay) bool {
	return c.midnightUTC().After(other.midnightUTC())
}

// sub returns the number of calendar days from other to c. Computed in UTC so daylight
// saving transitions in the caller's zone never produce 23 or 25 hour days.
func (c civilDay) sub(other civilDay) int {
	return int(c.midnightUTC().Sub(other.midnightUTC()) / (24 * time.Hour))
}
