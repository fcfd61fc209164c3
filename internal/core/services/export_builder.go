package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/pkg/artifact"
	"rillscope/pkg/logger"
	"rillscope/pkg/tracing"
	"rillscope/pkg/utils"

	"go.uber.org/zap"
)

const (
	ExportSinkHost = "host"
	ExportSinkFile = "file"
)

// ExportSource supplies the current dashboard state. RoomID and ExportedAt
// are filled in by the builder.
type ExportSource func() domain.ExportPayload

// ExportOption configures an ExportBuilder.
type ExportOption func(*ExportBuilder)

// WithExportClock replaces time.Now for export timestamps.
func WithExportClock(now func() time.Time) ExportOption {
	return func(b *ExportBuilder) { b.now = now }
}

// WithExportMetrics records export outcomes on m.
func WithExportMetrics(m ports.MetricsRecorder) ExportOption {
	return func(b *ExportBuilder) { b.metrics = m }
}

// ExportBuilder builds analytics exports and delivers them.
type ExportBuilder struct {
	roomID  string
	source  ExportSource
	store   artifact.Storage
	logger  *zap.SugaredLogger
	metrics ports.MetricsRecorder
	now     func() time.Time
}

// NewExportBuilder creates a builder. store may be nil when every export
// goes to a sink.
func NewExportBuilder(roomID string, source ExportSource, store artifact.Storage, log *zap.SugaredLogger, opts ...ExportOption) *ExportBuilder {
	b := &ExportBuilder{
		roomID: roomID,
		source: source,
		store:  store,
		logger: logger.OrNop(log),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildSnapshot captures the current state. Empty lists are encoded as [].
func (b *ExportBuilder) BuildSnapshot() *domain.ExportPayload {
	payload := b.source()
	payload.RoomID = b.roomID
	payload.ExportedAt = b.now().UTC()
	if payload.Participants == nil {
		payload.Participants = []domain.Participant{}
	}
	if payload.Alerts == nil {
		payload.Alerts = []domain.Alert{}
	}
	return &payload
}

// Export hands the snapshot to sink when one is given. Otherwise the
// snapshot is written to the artifact store and the filename returned.
func (b *ExportBuilder) Export(ctx context.Context, sink ports.ExportSink) (string, error) {
	payload := b.BuildSnapshot()

	target := ExportSinkFile
	if sink != nil {
		target = ExportSinkHost
	}
	ctx, span := tracing.TraceExport(ctx, b.roomID, target)
	defer span.End()

	name, err := b.deliver(ctx, sink, payload)
	if b.metrics != nil {
		b.metrics.RecordExport(target, err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		b.logger.Errorw("Failed to export analytics",
			"room_id", b.roomID,
			"sink", target,
			"error", err,
		)
		return "", err
	}

	b.logger.Infow("Analytics exported",
		"room_id", b.roomID,
		"sink", target,
		"file", name,
		"participants", len(payload.Participants),
		"alerts", len(payload.Alerts),
	)
	return name, nil
}

func (b *ExportBuilder) deliver(ctx context.Context, sink ports.ExportSink, payload *domain.ExportPayload) (string, error) {
	if sink != nil {
		if err := sink.Deliver(ctx, payload); err != nil {
			return "", fmt.Errorf("export sink: %w", err)
		}
		return "", nil
	}
	if b.store == nil {
		return "", domain.ErrNoExportTarget
	}

	data, err := Encode(payload)
	if err != nil {
		return "", err
	}
	name := ExportFilename(b.roomID, payload.ExportedAt)
	if err := b.store.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}
	return name, nil
}

// ExportFilename is analytics-{roomId}-{unix millis}.json with the room id
// made safe for filenames.
func ExportFilename(roomID string, at time.Time) string {
	return fmt.Sprintf("analytics-%s-%d.json", utils.SanitizeFilename(roomID), utils.UnixMillis(at))
}

// ExportPrefix is the file name prefix shared by a room's exports.
func ExportPrefix(roomID string) string {
	return fmt.Sprintf("analytics-%s-", utils.SanitizeFilename(roomID))
}

// Encode renders the payload as indented JSON.
func Encode(payload *domain.ExportPayload) ([]byte, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export payload: %w", err)
	}
	return data, nil
}
