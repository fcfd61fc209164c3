package utils

import (
	"fmt"
	"time"
)

// CompactDuration renders d in its largest whole unit: "45s", "12m", "2h".
// Values are floored; negative durations render as "0s".
func CompactDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int64(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	default:
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	}
}

// UnixMillis is the export timestamp format.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
