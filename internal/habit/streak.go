package habit

import "time"

// Streak counts consecutive completed days ending at today. dates holds the
// completed days for one habit, newest first. A missing entry for today
// yields zero even if earlier days were completed.
func Streak(dates []string, today time.Time) int {
	expected := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	streak := 0

	for _, d := range dates {
		day, err := ParseDate(d)
		if err != nil {
			continue
		}
		switch {
		case day.Equal(expected):
			streak++
			expected = expected.AddDate(0, 0, -1)
		case day.Before(expected):
			return streak
		}
		// Future-dated records are skipped.
	}
	return streak
}
