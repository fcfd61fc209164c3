package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/ports"
	"rillscope/internal/core/services"

	"github.com/google/uuid"
)

type storedExport struct {
	record *domain.ExportRecord
	data   []byte
}

// MemoryExportRepository keeps exports in process memory, keyed by room.
type MemoryExportRepository struct {
	exports map[string]map[string]*storedExport
	mu      sync.RWMutex

	now   func() time.Time
	newID func() string
}

// NewMemoryExportRepository creates an empty in-process export repository.
func NewMemoryExportRepository() *MemoryExportRepository {
	return &MemoryExportRepository{
		exports: make(map[string]map[string]*storedExport),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock replaces the time source. Used by tests.
func (r *MemoryExportRepository) WithClock(now func() time.Time) *MemoryExportRepository {
	r.now = now
	return r
}

// Deliver stores payload under a new id.
func (r *MemoryExportRepository) Deliver(ctx context.Context, payload *domain.ExportPayload) error {
	if payload == nil {
		return fmt.Errorf("nil export payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	at := r.now().UTC()
	rec := &domain.ExportRecord{
		ID:        r.newID(),
		RoomID:    payload.RoomID,
		Filename:  services.ExportFilename(payload.RoomID, at),
		SizeBytes: len(data),
		CreatedAt: at,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.exports[payload.RoomID]
	if room == nil {
		room = make(map[string]*storedExport)
		r.exports[payload.RoomID] = room
	}
	room[rec.ID] = &storedExport{record: rec, data: data}
	return nil
}

// Get returns a stored export.
func (r *MemoryExportRepository) Get(ctx context.Context, roomID, id string) (*domain.ExportPayload, error) {
	r.mu.RLock()
	entry, exists := r.exports[roomID][id]
	r.mu.RUnlock()

	if !exists {
		return nil, domain.ErrExportNotFound
	}

	var payload domain.ExportPayload
	if err := json.Unmarshal(entry.data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return &payload, nil
}

// List returns the room's exports, newest first.
func (r *MemoryExportRepository) List(ctx context.Context, roomID string) ([]*domain.ExportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*domain.ExportRecord, 0, len(r.exports[roomID]))
	for _, entry := range r.exports[roomID] {
		rec := *entry.record
		records = append(records, &rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Delete removes a stored export.
func (r *MemoryExportRepository) Delete(ctx context.Context, roomID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exports[roomID][id]; !exists {
		return domain.ErrExportNotFound
	}
	delete(r.exports[roomID], id)
	return nil
}

var _ ports.ExportRepository = (*MemoryExportRepository)(nil)
