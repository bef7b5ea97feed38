package services

import (
	"context"
	"fmt"
	"time"
)

// parseClock converts an "HH:mm" string to minutes since midnight.
func parseClock(value string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(value, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", value, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return hours*60 + minutes, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GetAvailableSlots lists the "HH:mm" start times on the given date at which
// an interview of the given duration fits inside the user's availability
// template without conflicting with an existing booking. Candidates are
// generated on a fixed step from the day's start up to end-duration
// inclusive. A day that is disabled, or absent from the template, yields no
// slots. The result is recomputed on every call.
func (s *Scheduler) GetAvailableSlots(ctx context.Context, userID string, date time.Time, duration int) ([]string, error) {
	week, err := s.store.GetAvailability(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}

	dayOfWeek := int(date.Weekday())
	var start, end int
	found := false
	for _, day := range week {
		if day.DayOfWeek != dayOfWeek {
			continue
		}
		if !day.Enabled {
			return []string{}, nil
		}
		start, err = parseClock(day.StartTime)
		if err != nil {
			return nil, err
		}
		end, err = parseClock(day.EndTime)
		if err != nil {
			return nil, err
		}
		found = true
		break
	}
	if !found {
		return []string{}, nil
	}

	slots := []string{}
	for minute := start; minute+duration <= end; minute += s.slotStep {
		candidate := time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, date.Location())
		if s.IsTimeSlotAvailable(userID, candidate, duration) {
			slots = append(slots, formatClock(minute))
		}
	}
	return slots, nil
}

// IsTimeSlotAvailable reports whether the half-open interval
// [start, start+duration) is free of the user's existing interviews.
// Cancelled interviews never conflict, and back-to-back bookings are allowed:
// an interval starting exactly when another ends is not a conflict. A zero
// duration yields an empty interval and is therefore always available;
// callers reject non-positive durations upstream.
func (s *Scheduler) IsTimeSlotAvailable(userID string, start time.Time, duration int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findConflict(userID, start, duration, "") == nil
}
