package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"mangashelf-backend/internal/apperrors"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/repository"
)

const publishTimeout = 5 * time.Second

// lookupError turns a repository lookup failure into NotFound or Internal.
func lookupError(err error, what string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("%s %d not found", what, id)
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err, "failed to load %s %d", what, id)
}

// passThrough keeps typed errors raised inside a transaction and classifies
// anything else as internal.
func passThrough(err error, format string, args ...any) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err, format, args...)
}

type eventSink struct {
	publisher events.Publisher
	logger    *zap.Logger
}

// publish delivers committed events. Failures are logged, never returned,
// and a cancelled request does not cancel delivery.
func (s eventSink) publish(ctx context.Context, evts ...events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, e := range evts {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn("Failed to publish event",
				zap.String("event_type", e.Type),
				zap.String("key", e.Key),
				zap.Error(err))
		}
	}
}
