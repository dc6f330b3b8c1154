// Package alertservice throttles and persists compliance alerts and serves
// the alert queries.
package alertservice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

type AlertProvider interface {
	UnresolvedSince(ctx context.Context, since time.Time) ([]models.Alert, error)
	Latest(ctx context.Context, limit int) ([]models.Alert, error)
	Alert(ctx context.Context, id int64) (models.Alert, error)
	Resolve(ctx context.Context, id int64) error
}

type VideoLinker interface {
	VideoURL(ctx context.Context, video string) (string, error)
}

type Config struct {
	QueryWindow time.Duration
	LatestLimit int
	MediaURL    string
}

type AlertService struct {
	log      *slog.Logger
	provider AlertProvider
	linker   VideoLinker
	cfg      Config
}

// New returns the query service. linker may be nil, in which case detail
// links point at the local media route.
func New(log *slog.Logger, provider AlertProvider, linker VideoLinker, cfg Config) *AlertService {
	return &AlertService{
		log:      log,
		provider: provider,
		linker:   linker,
		cfg:      cfg,
	}
}

// Unresolved returns unresolved alerts raised within the query window,
// newest first.
func (s *AlertService) Unresolved(ctx context.Context) ([]models.Alert, error) {
	const op = "alertservice.Unresolved"

	log := s.log.With(
		slog.String("op", op),
		slog.Duration("window", s.cfg.QueryWindow),
	)

	alerts, err := s.provider.UnresolvedSince(ctx, time.Now().Add(-s.cfg.QueryWindow))
	if err != nil {
		log.Error("failed to get alerts", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return alerts, nil
}

func (s *AlertService) Latest(ctx context.Context) ([]models.Alert, error) {
	const op = "alertservice.Latest"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("limit", s.cfg.LatestLimit),
	)

	alerts, err := s.provider.Latest(ctx, s.cfg.LatestLimit)
	if err != nil {
		log.Error("failed to get latest alerts", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return alerts, nil
}

// Detail returns the alert and a playback link for its recording.
func (s *AlertService) Detail(ctx context.Context, id int64) (models.Alert, string, error) {
	const op = "alertservice.Detail"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("alert_id", id),
	)

	alert, err := s.provider.Alert(ctx, id)
	if err != nil {
		log.Error("failed to get alert", sl.Err(err))

		return models.Alert{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if alert.Video == "" {
		return alert, "", nil
	}

	if s.linker != nil {
		url, err := s.linker.VideoURL(ctx, alert.Video)
		if err == nil && url != "" {
			return alert, url, nil
		}
		if err != nil {
			log.Warn("failed to link recording, using local media", sl.Err(err))
		}
	}

	return alert, s.MediaURL(alert.Video), nil
}

func (s *AlertService) Resolve(ctx context.Context, id int64) error {
	const op = "alertservice.Resolve"

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("alert_id", id),
	)

	if err := s.provider.Resolve(ctx, id); err != nil {
		log.Error("failed to resolve alert", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("alert resolved")

	return nil
}

// MediaURL maps a recording path to the route serving local recordings.
func (s *AlertService) MediaURL(video string) string {
	if video == "" {
		return ""
	}
	return strings.TrimSuffix(s.cfg.MediaURL, "/") + "/" + filepath.Base(video)
}
