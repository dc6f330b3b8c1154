package alertservice

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	"github.com/zanzhit/ppe_monitor/internal/services/compliance"
)

const (
	compliantMessage = "Person with complete PPE"

	defaultPersistTimeout = 2 * time.Second
)

type Emission int

const (
	NotWarranted Emission = iota
	Throttled
	Emitted
	Failed
)

func (e Emission) String() string {
	switch e {
	case Throttled:
		return "throttled"
	case Emitted:
		return "emitted"
	case Failed:
		return "failed"
	default:
		return "not-warranted"
	}
}

type Emitter interface {
	Emit(ctx context.Context, alert models.Alert) (models.Alert, error)
}

// Throttle gates alert emission for one camera session. A single cooldown
// covers every outcome type.
type Throttle struct {
	log     *slog.Logger
	emitter Emitter
	window  time.Duration
	timeout time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	last    time.Time
	emitted bool
}

// NewThrottle bounds every persist by timeout; non-positive means 2s.
func NewThrottle(log *slog.Logger, emitter Emitter, window, timeout time.Duration, m *metrics.Metrics) *Throttle {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}

	return &Throttle{
		log:     log,
		emitter: emitter,
		window:  window,
		timeout: timeout,
		metrics: m,
	}
}

// MaybeEmit persists an alert for outcome when it warrants one and the
// window since the last successful emission has elapsed. Failures are
// logged and reported as Failed; the cooldown does not advance on failure.
func (t *Throttle) MaybeEmit(ctx context.Context, outcome compliance.Outcome, recordingRef string, now time.Time) Emission {
	const op = "alertservice.Throttle.MaybeEmit"

	if !outcome.AlertWorthy {
		return NotWarranted
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.emitted && now.Sub(t.last) <= t.window {
		t.metrics.AlertsThrottled.Add(1)

		return Throttled
	}

	alert := Build(outcome, recordingRef, now)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	saved, err := t.emitter.Emit(ctx, alert)
	if err != nil {
		t.metrics.AlertErrors.Add(1)

		t.log.Error("failed to emit alert",
			slog.String("op", op),
			slog.String("level", string(alert.Level)),
			sl.Err(err),
		)

		return Failed
	}

	t.last = now
	t.emitted = true
	t.metrics.AlertsEmitted.Add(1)

	t.log.Info("alert emitted",
		slog.Int64("alert_id", saved.ID),
		slog.String("level", string(saved.Level)),
		slog.String("video", saved.Video),
	)

	return Emitted
}

// Build turns an alert-worthy outcome into an unsaved alert record. The
// timestamp keeps the microsecond precision Postgres stores.
func Build(outcome compliance.Outcome, recordingRef string, now time.Time) models.Alert {
	alert := models.Alert{
		Video:     recordingRef,
		Timestamp: now.Truncate(time.Microsecond),
	}

	missing := lo.FilterMap(outcome.Items, func(item compliance.Item, _ int) (string, bool) {
		return item.DisplayName, item.Status == compliance.StatusMissing
	})

	if len(missing) == 0 {
		alert.Message = compliantMessage
		alert.Level = models.LevelPositive

		return alert
	}

	alert.Missing = strings.Join(missing, ", ")
	alert.Message = "Person missing " + alert.Missing
	alert.Level = models.LevelHigh

	return alert
}
