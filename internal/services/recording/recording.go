// Package recording starts a video file when detections appear and
// finalizes it after a quiet period.
package recording

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v3"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

const fileTimeLayout = "20060102_150405"

type Sink interface {
	Write(frame image.Image) error
	Close() error
}

type SinkFactory interface {
	Create(path string, width, height int) (Sink, error)
}

// Archiver is told about recording lifecycle transitions. Implementations
// must not block the frame loop.
type Archiver interface {
	Started(rec models.Recording)
	Finalized(rec models.Recording)
}

type Config struct {
	Dir         string
	Container   string
	IdleTimeout time.Duration
}

type Controller struct {
	log       *slog.Logger
	factory   SinkFactory
	archiver  Archiver
	cfg       Config
	sessionID string

	mu            sync.Mutex
	sink          Sink
	current       models.Recording
	lastDetection time.Time
	lastStem      string
	seq           int
}

// New returns an idle controller. archiver may be nil.
func New(log *slog.Logger, factory SinkFactory, archiver Archiver, cfg Config, sessionID string) *Controller {
	return &Controller{
		log:       log,
		factory:   factory,
		archiver:  archiver,
		cfg:       cfg,
		sessionID: sessionID,
	}
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sink != nil
}

// Current returns the output path of the open recording, or "".
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink == nil {
		return ""
	}
	return c.current.FilePath
}

// OnFrame starts a recording on the first detection while idle and writes
// every frame while recording.
func (c *Controller) OnFrame(hasDetection bool, frame image.Image, now time.Time) {
	const op = "recording.Controller.OnFrame"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink == nil {
		if !hasDetection {
			return
		}
		if err := c.start(frame, now); err != nil {
			c.log.Error("failed to start recording",
				slog.String("op", op),
				slog.String("session_id", c.sessionID),
				sl.Err(err),
			)

			return
		}
	}

	if hasDetection {
		c.lastDetection = now
	}

	if err := c.sink.Write(frame); err != nil {
		c.log.Warn("failed to write frame",
			slog.String("op", op),
			slog.String("file", c.current.FilePath),
			sl.Err(fmt.Errorf("%w: %w", errs.ErrRecordingSink, err)),
		)

		return
	}

	c.current.FrameCount++
}

// Sweep finalizes the recording once no detection arrived for longer than
// the idle timeout.
func (c *Controller) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink == nil {
		return
	}

	if now.Sub(c.lastDetection) > c.cfg.IdleTimeout {
		c.stop(now)
	}
}

// Close finalizes any open recording.
func (c *Controller) Close(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink != nil {
		c.stop(now)
	}
}

func (c *Controller) start(frame image.Image, now time.Time) error {
	const op = "recording.Controller.start"

	path := c.nextPath(now)

	bounds := frame.Bounds()

	sink, err := c.factory.Create(path, bounds.Dx(), bounds.Dy())
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrRecordingSink, err)
	}

	c.sink = sink
	c.lastDetection = now
	c.current = models.Recording{
		RecordingID: shortuuid.New(),
		SessionID:   c.sessionID,
		FilePath:    path,
		StartTime:   now,
	}

	c.log.Info("recording started",
		slog.String("session_id", c.sessionID),
		slog.String("recording_id", c.current.RecordingID),
		slog.String("file", path),
	)

	if c.archiver != nil {
		c.archiver.Started(c.current)
	}

	return nil
}

// nextPath names the file after its start second. Later recordings in the
// same second, or names already on disk, get a numeric suffix.
func (c *Controller) nextPath(now time.Time) string {
	stem := "recording_" + now.Format(fileTimeLayout)

	if stem == c.lastStem {
		c.seq++
	} else {
		c.lastStem, c.seq = stem, 0
	}

	for {
		name := stem + "." + c.cfg.Container
		if c.seq > 0 {
			name = fmt.Sprintf("%s_%d.%s", stem, c.seq, c.cfg.Container)
		}

		path := filepath.Join(c.cfg.Dir, name)
		if _, err := os.Stat(path); err != nil {
			return path
		}
		c.seq++
	}
}

// stop releases the sink even when Close fails; a failed close is logged
// and the file is still handed to the archiver.
func (c *Controller) stop(now time.Time) {
	const op = "recording.Controller.stop"

	if err := c.sink.Close(); err != nil {
		c.log.Error("failed to finalize recording",
			slog.String("op", op),
			slog.String("file", c.current.FilePath),
			sl.Err(fmt.Errorf("%w: %w", errs.ErrRecordingSink, err)),
		)
	}

	rec := c.current
	rec.StopTime = now

	c.sink = nil
	c.current = models.Recording{}

	c.log.Info("recording stopped",
		slog.String("session_id", c.sessionID),
		slog.String("recording_id", rec.RecordingID),
		slog.Int64("frames", rec.FrameCount),
	)

	if c.archiver != nil {
		c.archiver.Finalized(rec)
	}
}
