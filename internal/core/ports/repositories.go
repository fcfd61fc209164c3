package ports

import (
	"context"

	"rillscope/internal/core/domain"
)

// ExportRepository stores exported analytics payloads. Implementations are
// also usable directly as an ExportSink.
type ExportRepository interface {
	ExportSink
	Get(ctx context.Context, roomID, id string) (*domain.ExportPayload, error)
	List(ctx context.Context, roomID string) ([]*domain.ExportRecord, error)
	Delete(ctx context.Context, roomID, id string) error
}
