// Package pipeline runs one frame through detection, compliance, recording
// and alerting, and encodes the annotated result.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	alertservice "github.com/zanzhit/ppe_monitor/internal/services/alerts"
	"github.com/zanzhit/ppe_monitor/internal/services/compliance"
)

type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]models.Detection, error)
}

type Evaluator interface {
	Evaluate(detections []models.Detection) compliance.Outcome
}

type Recorder interface {
	OnFrame(hasDetection bool, frame image.Image, now time.Time)
	Sweep(now time.Time)
	Current() string
	Recording() bool
}

type Alerter interface {
	MaybeEmit(ctx context.Context, outcome compliance.Outcome, recordingRef string, now time.Time) alertservice.Emission
}

type Result struct {
	JPEG      []byte
	Annotated bool
	Outcome   compliance.Outcome
	Emission  alertservice.Emission
}

type Pipeline struct {
	log         *slog.Logger
	detector    Detector
	evaluator   Evaluator
	recorder    Recorder
	alerter     Alerter
	metrics     *metrics.Metrics
	personLabel string
	quality     int
}

func New(
	log *slog.Logger,
	detector Detector,
	evaluator Evaluator,
	recorder Recorder,
	alerter Alerter,
	m *metrics.Metrics,
	personLabel string,
	quality int,
) *Pipeline {
	return &Pipeline{
		log:         log,
		detector:    detector,
		evaluator:   evaluator,
		recorder:    recorder,
		alerter:     alerter,
		metrics:     m,
		personLabel: personLabel,
		quality:     quality,
	}
}

// Process never panics. When detection or any later step fails, the raw
// frame is encoded instead; JPEG is nil only if even that fails.
func (p *Pipeline) Process(ctx context.Context, frame image.Image, now time.Time) (res Result) {
	const op = "pipeline.Process"

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("frame processing panicked",
				slog.String("op", op),
				slog.Any("panic", r),
			)

			res = Result{JPEG: p.raw(frame)}
		}
	}()

	detections, err := p.detector.Detect(ctx, frame)
	if err != nil {
		p.metrics.DetectionErrors.Add(1)

		p.log.Warn("detection failed, delivering raw frame", slog.String("op", op), sl.Err(err))

		// An open recording keeps every frame and still times out.
		p.recorder.OnFrame(false, frame, now)
		p.recorder.Sweep(now)
		metrics.SetFlag(&p.metrics.RecordingActive, p.recorder.Recording())

		return Result{JPEG: p.raw(frame)}
	}

	outcome := p.evaluator.Evaluate(detections)

	p.recorder.OnFrame(len(detections) > 0, frame, now)

	emission := p.alerter.MaybeEmit(ctx, outcome, p.recorder.Current(), now)

	p.recorder.Sweep(now)

	recording := p.recorder.Recording()
	metrics.SetFlag(&p.metrics.RecordingActive, recording)

	annotated := Annotate(frame, Overlay{
		PersonLabel: p.personLabel,
		Detections:  detections,
		Outcome:     outcome,
		Recording:   recording,
	})

	data, err := p.encode(annotated)
	if err != nil {
		p.log.Warn("failed to encode annotated frame", slog.String("op", op), sl.Err(err))

		return Result{JPEG: p.raw(frame), Outcome: outcome, Emission: emission}
	}

	p.metrics.FramesProcessed.Add(1)
	p.metrics.ObserveProcess(time.Since(start))

	return Result{
		JPEG:      data,
		Annotated: true,
		Outcome:   outcome,
		Emission:  emission,
	}
}

func (p *Pipeline) raw(frame image.Image) (data []byte) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
		}
	}()

	data, err := p.encode(frame)
	if err != nil {
		p.log.Error("failed to encode raw frame", sl.Err(err))

		return nil
	}

	p.metrics.FramesRaw.Add(1)

	return data
}

func (p *Pipeline) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
