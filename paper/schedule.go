package paper

import (
	"strconv"
	"strings"
	"time"

	"github.com/jimstein/diffstock/types"
)

// ParseHHMM parses a "HH:MM" local wall-clock time string.
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, types.NewBadInput("schedule: invalid time %q, want HH:MM", s)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, types.NewBadInput("schedule: invalid time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

// NextRebalance computes the smallest future instant matching either daily
// time T1/T2 or the weekly optimization window, satisfying testable
// property 7. It searches forward day by day up to one week, which is
// always sufficient since every weekday eventually recurs.
func NextRebalance(now time.Time, schedule types.Schedule) (time.Time, error) {
	candidates := make([]time.Time, 0, 3)

	for _, hhmm := range []string{schedule.Time1, schedule.Time2} {
		if hhmm == "" {
			continue
		}
		t, err := nextDailyOccurrence(now, hhmm)
		if err != nil {
			return time.Time{}, err
		}
		candidates = append(candidates, t)
	}

	if schedule.OptimizationTime != "" && len(schedule.OptimizationWeekdays) > 0 {
		t, err := nextWeekdayOccurrence(now, schedule.OptimizationTime, schedule.OptimizationWeekdays)
		if err != nil {
			return time.Time{}, err
		}
		candidates = append(candidates, t)
	}

	if len(candidates) == 0 {
		return time.Time{}, types.NewBadInput("schedule: no rebalance times configured")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(best) {
			best = c
		}
	}
	return best, nil
}

func nextDailyOccurrence(now time.Time, hhmm string) (time.Time, error) {
	hour, minute, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, nil
}

func nextWeekdayOccurrence(now time.Time, hhmm string, weekdays []time.Weekday) (time.Time, error) {
	hour, minute, err := ParseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	allowed := make(map[time.Weekday]bool, len(weekdays))
	for _, w := range weekdays {
		allowed[w] = true
	}
	for offset := 0; offset < 8; offset++ {
		day := now.AddDate(0, 0, offset)
		if !allowed[day.Weekday()] {
			continue
		}
		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate, nil
		}
	}
	return time.Time{}, types.NewBadInput("schedule: no matching weekday found within 8 days")
}
