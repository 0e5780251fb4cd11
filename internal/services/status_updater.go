package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/smart-agro-advisor/internal/models"
)

// StatusUpdater records request progress. A nil store turns every call into a no-op.
type StatusUpdater struct {
	store  StatusStore
	logger *slog.Logger
}

func NewStatusUpdater(store StatusStore, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, requestID, sender string) {
	s.update(ctx, requestID, models.StatusProcessing, sender, "")
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, requestID, sender string) {
	s.update(ctx, requestID, models.StatusDelivered, sender, "")
}

func (s *StatusUpdater) MarkFallback(ctx context.Context, requestID, sender, detail string) {
	s.update(ctx, requestID, models.StatusFallback, sender, detail)
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, requestID, sender, detail string) {
	s.update(ctx, requestID, models.StatusFailed, sender, detail)
}

func (s *StatusUpdater) update(ctx context.Context, requestID, status, sender, detail string) {
	if s == nil || s.store == nil || requestID == "" {
		return
	}
	if err := s.store.UpdateStatus(ctx, requestID, status, sender, detail); err != nil {
		s.logger.Error("failed to update request status",
			slog.String("request_id", requestID),
			slog.String("status", status),
			slog.Any("error", err),
		)
	}
}
