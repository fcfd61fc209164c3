package utils

import (
	"fmt"
	"math"
)

// FormatPercent renders a 0-1 fraction with two decimals: 0.01 -> "1.00%".
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", sanitize(fraction)*100)
}

// FormatMillis rounds to whole milliseconds: 10.4 -> "10ms".
func FormatMillis(ms float64) string {
	return fmt.Sprintf("%dms", int64(math.Round(sanitize(ms))))
}

// FormatKbps formats a bandwidth: "800 kbps" below 10000, "12.5 Mbps" above.
func FormatKbps(kbps float64) string {
	kbps = sanitize(kbps)
	if kbps >= 10000 {
		return fmt.Sprintf("%.1f Mbps", kbps/1000)
	}
	return fmt.Sprintf("%d kbps", int64(math.Round(kbps)))
}

// FormatMegabytes formats a volume in MB.
func FormatMegabytes(mb float64) string {
	return fmt.Sprintf("%.2f MB", sanitize(mb))
}

// FormatQuality renders a quality score on the 0-5 scale: "4.2/5".
func FormatQuality(q float64) string {
	return fmt.Sprintf("%.1f/5", sanitize(q))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
