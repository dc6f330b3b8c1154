package alertservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
)

type AlertSaver interface {
	SaveAlert(ctx context.Context, alert models.Alert) (int64, error)
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert models.Alert) error
}

// Sink persists alerts and, when a publisher is set, announces them.
type Sink struct {
	log       *slog.Logger
	saver     AlertSaver
	publisher AlertPublisher
	metrics   *metrics.Metrics
}

// NewSink returns a sink. publisher may be nil.
func NewSink(log *slog.Logger, saver AlertSaver, publisher AlertPublisher, m *metrics.Metrics) *Sink {
	return &Sink{
		log:       log,
		saver:     saver,
		publisher: publisher,
		metrics:   m,
	}
}

// Emit returns an error only when the alert was not persisted. A failed
// publish is logged.
func (s *Sink) Emit(ctx context.Context, alert models.Alert) (models.Alert, error) {
	const op = "alertservice.Sink.Emit"

	log := s.log.With(
		slog.String("op", op),
		slog.String("level", string(alert.Level)),
	)

	id, err := s.saver.SaveAlert(ctx, alert)
	if err != nil {
		log.Error("failed to save alert", sl.Err(err))

		return models.Alert{}, fmt.Errorf("%s: %w", op, err)
	}

	alert.ID = id

	if s.publisher == nil {
		return alert, nil
	}

	if err := s.publisher.PublishAlert(ctx, alert); err != nil {
		s.metrics.PublishErrors.Add(1)

		log.Warn("failed to publish alert", slog.Int64("alert_id", id), sl.Err(err))
	}

	return alert, nil
}
