package domain

import (
	"fmt"
	"time"
)

// RangeToken selects a history window.
type RangeToken string

const (
	Range5m  RangeToken = "5m"
	Range1h  RangeToken = "1h"
	Range6h  RangeToken = "6h"
	Range24h RangeToken = "24h"
	Range7d  RangeToken = "7d"
	Range30d RangeToken = "30d"

	DefaultRange = Range1h
)

var rangeWindows = map[RangeToken]time.Duration{
	Range5m:  5 * time.Minute,
	Range1h:  time.Hour,
	Range6h:  6 * time.Hour,
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
	Range30d: 30 * 24 * time.Hour,
}

// AllRanges lists the ranges in display order.
func AllRanges() []RangeToken {
	return []RangeToken{Range5m, Range1h, Range6h, Range24h, Range7d, Range30d}
}

// ParseRangeToken validates s as a range token.
func ParseRangeToken(s string) (RangeToken, error) {
	r := RangeToken(s)
	if _, ok := rangeWindows[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return r, nil
}

// Valid reports whether r is a known range.
func (r RangeToken) Valid() bool {
	_, ok := rangeWindows[r]
	return ok
}

// Window returns the duration r covers, 0 when invalid.
func (r RangeToken) Window() time.Duration {
	return rangeWindows[r]
}

// HistoricalSnapshot is aggregated analytics for a range. Fields may be absent.
type HistoricalSnapshot struct {
	SessionStart     *time.Time `json:"sessionStart,omitempty"`
	PeakParticipants *int       `json:"peakParticipants,omitempty"`
	AverageQuality   *float64   `json:"averageQuality,omitempty"`
	DataTransferred  *float64   `json:"dataTransferred,omitempty"` // MB
}

// Peak returns the peak participant count, 0 when absent.
func (h *HistoricalSnapshot) Peak() int {
	if h == nil || h.PeakParticipants == nil {
		return 0
	}
	return *h.PeakParticipants
}

// Quality returns the average quality, 0 when absent.
func (h *HistoricalSnapshot) Quality() float64 {
	if h == nil || h.AverageQuality == nil {
		return 0
	}
	return finite(*h.AverageQuality)
}

// TransferredMB returns the transferred volume, 0 when absent.
func (h *HistoricalSnapshot) TransferredMB() float64 {
	if h == nil || h.DataTransferred == nil {
		return 0
	}
	return finite(*h.DataTransferred)
}

// SessionDuration is zero when the session start is unknown or in the future.
func (h *HistoricalSnapshot) SessionDuration(now time.Time) time.Duration {
	if h == nil || h.SessionStart == nil {
		return 0
	}
	d := now.Sub(*h.SessionStart)
	if d < 0 {
		return 0
	}
	return d
}
