package connector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe   = regexp.MustCompile(`(\d{1,2}):?(\d{2})?\s*(am|pm)?`)
)

// ResolveDate turns a spoken date reference into YYYY-MM-DD. Supported:
// already-ISO dates, "tomorrow", "next week" (next Monday), and weekday
// references like "next friday" / "friday" (the next occurrence).
func ResolveDate(raw string, now time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	if isoDateRe.MatchString(s) {
		return s, true
	}

	// Monday-based weekday, matching the spoken-calendar convention.
	wd := (int(now.Weekday()) + 6) % 7

	switch {
	case strings.Contains(s, "today"):
		return now.Format("2006-01-02"), true
	case strings.Contains(s, "tomorrow"):
		return now.AddDate(0, 0, 1).Format("2006-01-02"), true
	case strings.Contains(s, "next week"):
		return now.AddDate(0, 0, 7-wd).Format("2006-01-02"), true
	}

	weekdays := []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	for i, name := range weekdays {
		if !strings.Contains(s, name) {
			continue
		}
		ahead := (i - wd + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return now.AddDate(0, 0, ahead).Format("2006-01-02"), true
	}

	return "", false
}

// ResolveClock turns "2pm", "2:30 PM" or "14:00" into HH:MM.
func ResolveClock(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return "", false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return "", false
		}
	}

	switch m[3] {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 {
		return "", false
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
