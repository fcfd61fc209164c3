package domain

import "time"

// AlertKind identifies an alert rule.
type AlertKind string

const (
	AlertHighBandwidth AlertKind = "high-bandwidth"
	AlertPoorQuality   AlertKind = "poor-quality"
	AlertHighLatency   AlertKind = "high-latency"
)

// Alert is an active threshold breach.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlertEventType is raised or retired.
type AlertEventType string

const (
	AlertRaised  AlertEventType = "alert.raised"
	AlertRetired AlertEventType = "alert.retired"
)

// AlertEvent announces an alert change for a room.
type AlertEvent struct {
	Type   AlertEventType `json:"type"`
	RoomID string         `json:"roomId"`
	Alert  Alert          `json:"alert"`
}
