package recordingservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
)

// RecordingService keeps the recordings catalogue in sync with the frame
// loop and moves finalized files to the object store.
type RecordingService struct {
	log               *slog.Logger
	recordingSaver    RecordingSaver
	recordingProvider RecordingProvider
	videoService      VideoService
	metrics           *metrics.Metrics
	timeout           time.Duration

	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
}

type job struct {
	rec      models.Recording
	finished bool
}

type RecordingSaver interface {
	Start(ctx context.Context, rec models.Recording) error
	Stop(ctx context.Context, recordingID string, stopTime time.Time, frames int64) error
}

type RecordingProvider interface {
	RecordingByPath(ctx context.Context, filePath string) (models.Recording, error)
	Move(ctx context.Context, recordingID, objectKey string) error
}

// VideoService is the object store. nil keeps recordings on local disk.
type VideoService interface {
	Upload(ctx context.Context, key, filePath string) error
	Presign(ctx context.Context, key string) (string, error)
}

func New(
	log *slog.Logger,
	recordingSaver RecordingSaver,
	recordingProvider RecordingProvider,
	videoService VideoService,
	m *metrics.Metrics,
	timeout time.Duration,
) *RecordingService {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	s := &RecordingService{
		log:               log,
		recordingSaver:    recordingSaver,
		recordingProvider: recordingProvider,
		videoService:      videoService,
		metrics:           m,
		timeout:           timeout,
		jobs:              make(chan job, queueSize),
		done:              make(chan struct{}),
	}

	go s.worker()

	return s
}

const queueSize = 64

// Started queues the catalogue insert. It never blocks the caller.
func (s *RecordingService) Started(rec models.Recording) {
	s.enqueue(job{rec: rec})
}

// Finalized queues the stop data and the upload behind the matching insert.
func (s *RecordingService) Finalized(rec models.Recording) {
	s.metrics.RecordingsFinished.Add(1)
	s.enqueue(job{rec: rec, finished: true})
}

func (s *RecordingService) enqueue(j job) {
	const op = "service.recordings.enqueue"

	select {
	case s.jobs <- j:
	default:
		s.log.Warn("archive queue is full, dropping event",
			slog.String("op", op),
			slog.String("recording_id", j.rec.RecordingID),
			slog.Bool("finished", j.finished),
		)
	}
}

func (s *RecordingService) worker() {
	defer close(s.done)

	for j := range s.jobs {
		if j.finished {
			s.finish(j.rec)
			continue
		}

		s.start(j.rec)
	}
}

func (s *RecordingService) start(rec models.Recording) {
	const op = "service.recordings.start"

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.recordingSaver.Start(ctx, rec); err != nil {
		s.log.Error("failed to write start data",
			slog.String("op", op),
			slog.String("recording_id", rec.RecordingID),
			sl.Err(err),
		)
	}
}

func (s *RecordingService) finish(rec models.Recording) {
	const op = "service.recordings.finish"

	log := s.log.With(
		slog.String("op", op),
		slog.String("recording_id", rec.RecordingID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.recordingSaver.Stop(ctx, rec.RecordingID, rec.StopTime, rec.FrameCount); err != nil {
		log.Error("failed to write stop data", sl.Err(err))
	}

	if s.videoService == nil {
		return
	}

	if err := s.move(rec); err != nil {
		s.metrics.UploadErrors.Add(1)
		log.Error("failed to archive recording", sl.Err(err))
	}
}

// move uploads a finalized recording and marks it as archived.
func (s *RecordingService) move(rec models.Recording) error {
	const op = "service.recordings.move"

	log := s.log.With(
		slog.String("op", op),
		slog.String("recording_id", rec.RecordingID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := ObjectKey(rec)

	log.Info("move recording", slog.String("object_key", key))

	if err := s.videoService.Upload(ctx, key, rec.FilePath); err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrUpload, err)
	}

	if err := s.recordingProvider.Move(ctx, rec.RecordingID, key); err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrWriteToDB, err)
	}

	return nil
}

// VideoURL returns a presigned link for an archived recording, or "" when
// the file has not left local disk.
func (s *RecordingService) VideoURL(ctx context.Context, video string) (string, error) {
	const op = "service.recordings.VideoURL"

	if s.videoService == nil || video == "" {
		return "", nil
	}

	rec, err := s.recordingProvider.RecordingByPath(ctx, video)
	if err != nil {
		if errors.Is(err, errs.ErrRecordingNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !rec.IsMoved || rec.ObjectKey == "" {
		return "", nil
	}

	url, err := s.videoService.Presign(ctx, rec.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

// Close drains the queue and waits for pending uploads. Lifecycle events
// must not be sent after Close.
func (s *RecordingService) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	<-s.done
}

func ObjectKey(rec models.Recording) string {
	return rec.SessionID + "/" + filepath.Base(rec.FilePath)
}
