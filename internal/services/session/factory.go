package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/capture"
	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	alertservice "github.com/zanzhit/ppe_monitor/internal/services/alerts"
	"github.com/zanzhit/ppe_monitor/internal/services/pipeline"
	"github.com/zanzhit/ppe_monitor/internal/services/recording"
)

// Builder assembles a fresh source, recorder, throttle and pipeline for
// every session from shared, stateless collaborators.
type Builder struct {
	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Opener    capture.DeviceOpener
	Streams   capture.URLOpener
	Network   capture.NetworkConfig
	Indices   []int
	Sinks     recording.SinkFactory
	Archiver  recording.Archiver
	Recording recording.Config
	Detector  pipeline.Detector
	Evaluator pipeline.Evaluator
	Alerts    alertservice.Emitter
	Throttle  time.Duration

	// PersistTimeout bounds one alert write inside the frame loop.
	PersistTimeout time.Duration
	PersonLabel    string
	JPEGQuality    int
}

func (b *Builder) Build(sessionID string, params models.CameraParams) (Runtime, error) {
	const op = "session.Builder.Build"

	log := b.Log.With(slog.String("session_id", sessionID))

	var src capture.Source

	switch params.Kind {
	case models.CameraLocal:
		indices := params.DeviceIndices
		if len(indices) == 0 {
			indices = b.Indices
		}
		src = capture.NewLocal(log, b.Opener, indices)

	case models.CameraNetwork:
		cfg := b.Network
		if params.Address != "" {
			cfg.Address = params.Address
		}
		if params.Port != "" {
			cfg.Port = params.Port
		}
		src = capture.NewNetwork(log, b.Streams, cfg)

	default:
		return Runtime{}, fmt.Errorf("%s: %w: %q", op, errs.ErrUnknownCameraType, params.Kind)
	}

	rec := recording.New(log, b.Sinks, b.Archiver, b.Recording, sessionID)
	throttle := alertservice.NewThrottle(log, b.Alerts, b.Throttle, b.PersistTimeout, b.Metrics)

	return Runtime{
		Source:   src,
		Recorder: rec,
		Pipeline: pipeline.New(log, b.Detector, b.Evaluator, rec, throttle, b.Metrics, b.PersonLabel, b.JPEGQuality),
	}, nil
}
