// Package management provides the HTTP handlers that expose interaction rows,
// dashboard statistics, exports and manual refresh.
package management

import (
	"context"
	"time"

	"github.com/bakame-ai/interaction-logs/internal/export"
	"github.com/bakame-ai/interaction-logs/internal/refresh"
)

// SnapshotSource supplies interaction snapshots. *refresh.Refresher implements it.
type SnapshotSource interface {
	Snapshot() *refresh.Snapshot
	Refresh(ctx context.Context) (*refresh.Snapshot, error)
}

// Handler serves the management endpoints.
type Handler struct {
	source   SnapshotSource
	exporter *export.Exporter
	now      func() time.Time
}

// NewHandler creates a management handler.
func NewHandler(source SnapshotSource, exporter *export.Exporter) *Handler {
	return &Handler{
		source:   source,
		exporter: exporter,
		now:      time.Now,
	}
}

func (h *Handler) snapshot() *refresh.Snapshot {
	if h == nil || h.source == nil {
		return nil
	}
	return h.source.Snapshot()
}
