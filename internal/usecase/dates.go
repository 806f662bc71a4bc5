package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MeetingDateLayout is how the calendar prints meeting dates, e.g.
// "Monday, 14 March 2022 @ 6:00 PM".
const MeetingDateLayout = "Monday, 2 January 2006 @ 3:04 PM"

// ParseMeetingDate parses a calendar date in loc.
func ParseMeetingDate(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(MeetingDateLayout, collapseSpace(text), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing meeting date %q: %w", text, err)
	}
	return t, nil
}

// NormalizeDuration turns player duration text ("5:30" or "1:05:30") into
// HH:MM:SS, adding a zero hour field when it is missing.
func NormalizeDuration(text string) (string, error) {
	h, m, s, err := splitDuration(text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}

// ParseDuration parses player duration text into a time.Duration.
func ParseDuration(text string) (time.Duration, error) {
	h, m, s, err := splitDuration(text)
	if err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

func splitDuration(text string) (h, m, s int, err error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	switch len(parts) {
	case 2:
		parts = append([]string{"00"}, parts...)
	case 3:
	default:
		return 0, 0, 0, fmt.Errorf("invalid duration %q", text)
	}

	values := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil || v < 0 {
			return 0, 0, 0, fmt.Errorf("invalid duration %q", text)
		}
		values[i] = v
	}
	if values[1] > 59 || values[2] > 59 {
		return 0, 0, 0, fmt.Errorf("invalid duration %q", text)
	}
	return values[0], values[1], values[2], nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// InWindow reports whether t lies in [from, to].
func InWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
