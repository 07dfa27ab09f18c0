package transcript

import "fmt"

// FormatTimestamp renders a non-negative second count as a subtitle
// timestamp, HH:MM:SS,mmm. The millisecond component is truncated,
// never rounded.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	totalMillis := int64(seconds * 1000)
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// FormatDuration renders a second count in the short human form:
// H:MM:SS when at least one hour, M:SS otherwise. This is deliberately
// a different format from FormatTimestamp.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
