package ports

import (
	"context"
	"time"

	"rillscope/internal/core/domain"
)

// StatsProvider is the telemetry source the dashboard polls.
type StatsProvider interface {
	GetDetailedStats(ctx context.Context) (*domain.Snapshot, error)
	GetRoomStats(ctx context.Context, roomID string) (*domain.ParticipantSnapshot, error)
	GetHistoricalAnalytics(ctx context.Context, roomID string, rng domain.RangeToken) (*domain.HistoricalSnapshot, error)
}

// Moderator carries out admin actions against participants of a room.
type Moderator interface {
	Mute(ctx context.Context, roomID, participantID string) error
	Kick(ctx context.Context, roomID, participantID string) error
}

// ExportSink receives finished export payloads.
type ExportSink interface {
	Deliver(ctx context.Context, payload *domain.ExportPayload) error
}

// ExportSinkFunc adapts a function to ExportSink.
type ExportSinkFunc func(ctx context.Context, payload *domain.ExportPayload) error

// Deliver calls f.
func (f ExportSinkFunc) Deliver(ctx context.Context, payload *domain.ExportPayload) error {
	return f(ctx, payload)
}

// MetricsRecorder records dashboard metrics.
type MetricsRecorder interface {
	RecordTick(generation uint64)
	RecordFetchError(source string)
	RecordSnapshot(snapshot *domain.Snapshot)
	RecordParticipants(count int)
	RecordActiveAlerts(count int)
	RecordHistoryFetch(rng domain.RangeToken, duration time.Duration, err error)
	RecordExport(sink string, err error)
}

// AlertPublisher announces alert changes to other instances.
type AlertPublisher interface {
	PublishAlertEvent(ctx context.Context, event domain.AlertEvent) error
}
