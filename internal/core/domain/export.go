package domain

import "time"

// ExportPayload is the JSON document written by an export.
type ExportPayload struct {
	RoomID         string              `json:"roomId"`
	RealTimeData   *Snapshot           `json:"realTimeData"`
	HistoricalData *HistoricalSnapshot `json:"historicalData"`
	Participants   []Participant       `json:"participants"`
	Alerts         []Alert             `json:"alerts"`
	ExportedAt     time.Time           `json:"exportedAt"`
}

// ExportRecord is a stored export as listed by an export repository.
type ExportRecord struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Filename  string    `json:"filename"`
	SizeBytes int       `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}
