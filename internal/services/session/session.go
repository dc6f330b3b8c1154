// Package session owns the single active camera session and its frame loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lithammer/shortuuid/v3"

	"github.com/zanzhit/ppe_monitor/internal/capture"
	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	"github.com/zanzhit/ppe_monitor/internal/services/pipeline"
)

type Processor interface {
	Process(ctx context.Context, frame image.Image, now time.Time) pipeline.Result
}

type Recorder interface {
	Sweep(now time.Time)
	Close(now time.Time)
	Recording() bool
	Current() string
}

// Runtime is everything one session owns exclusively.
type Runtime struct {
	Source   capture.Source
	Recorder Recorder
	Pipeline Processor
}

type Factory interface {
	Build(sessionID string, params models.CameraParams) (Runtime, error)
}

type Config struct {
	FrameInterval time.Duration
	// Headless keeps processing frames with no viewer connected.
	Headless bool
}

type Session struct {
	id        string
	params    models.CameraParams
	rt        Runtime
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	lastReadOK atomic.Bool
	framesRead atomic.Uint64
	readErrors atomic.Uint64
}

func (s *Session) info() models.SessionInfo {
	return models.SessionInfo{
		ID:               s.id,
		Params:           s.params,
		Running:          true,
		StartedAt:        s.startedAt,
		LastReadOK:       s.lastReadOK.Load(),
		FramesRead:       s.framesRead.Load(),
		ReadErrors:       s.readErrors.Load(),
		Recording:        s.rt.Recorder.Recording(),
		CurrentRecording: s.rt.Recorder.Current(),
	}
}

type Manager struct {
	log         *slog.Logger
	factory     Factory
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
	cfg         Config

	mu     sync.Mutex
	active *Session
}

const defaultFrameInterval = 50 * time.Millisecond

// NewManager falls back to a 50ms frame interval when cfg has none.
func NewManager(log *slog.Logger, factory Factory, broadcaster *Broadcaster, m *metrics.Metrics, cfg Config) *Manager {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}

	return &Manager{
		log:         log,
		factory:     factory,
		broadcaster: broadcaster,
		metrics:     m,
		cfg:         cfg,
	}
}

// Toggle applies a control command. A session of another backend kind is
// stopped first whatever the action. Start keeps a running session with
// identical parameters and replaces one with different parameters.
func (m *Manager) Toggle(ctx context.Context, cmd models.CameraCommand) (models.SessionStatus, error) {
	const op = "session.Manager.Toggle"

	log := m.log.With(
		slog.String("op", op),
		slog.String("action", string(cmd.Action)),
		slog.String("camera_type", string(cmd.Params.Kind)),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.params.Kind != cmd.Params.Kind {
		log.Info("switching camera backend", slog.String("previous", string(m.active.params.Kind)))

		m.stopLocked()
	}

	switch cmd.Action {
	case models.CommandStop:
		m.stopLocked()

		return models.StatusStopped, nil

	case models.CommandStart:
		if m.active != nil {
			if sameParams(m.active.params, cmd.Params) {
				return models.StatusStarted, nil
			}

			log.Info("camera parameters changed, restarting session")

			m.stopLocked()
		}

		if err := m.startLocked(ctx, cmd.Params); err != nil {
			log.Error("failed to start camera", sl.Err(err))

			return models.StatusError, fmt.Errorf("%s: %w", op, err)
		}

		return models.StatusStarted, nil

	default:
		return models.StatusError, fmt.Errorf("%s: %w: %q", op, errs.ErrUnknownAction, cmd.Action)
	}
}

// Status returns a snapshot of the active session.
func (m *Manager) Status() (models.SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return models.SessionInfo{}, false
	}

	return m.active.info(), true
}

// Shutdown stops the active session, if any.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *Manager) startLocked(ctx context.Context, params models.CameraParams) error {
	const op = "session.Manager.start"

	id := shortuuid.New()

	rt, err := m.factory.Build(id, params)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := rt.Source.Open(ctx); err != nil {
		if cerr := rt.Source.Close(); cerr != nil {
			m.log.Warn("failed to release camera", slog.String("op", op), sl.Err(cerr))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:        id,
		params:    params,
		rt:        rt,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.lastReadOK.Store(true)

	m.active = s
	m.metrics.SessionActive.Store(1)

	go m.run(loopCtx, s)

	m.log.Info("camera session started",
		slog.String("session_id", id),
		slog.String("camera_type", string(params.Kind)),
	)

	return nil
}

func (m *Manager) stopLocked() {
	if m.active == nil {
		return
	}

	s := m.active
	m.active = nil
	m.metrics.SessionActive.Store(0)

	m.release(s)
}

// release stops the loop, then finalizes the recording and closes the
// camera. Handles are released even if the loop already exited.
func (m *Manager) release(s *Session) {
	const op = "session.Manager.release"

	s.cancel()
	<-s.done

	s.rt.Recorder.Close(time.Now())
	metrics.SetFlag(&m.metrics.RecordingActive, false)

	if err := s.rt.Source.Close(); err != nil {
		m.log.Warn("failed to close camera", slog.String("op", op), slog.String("session_id", s.id), sl.Err(err))
	}

	m.log.Info("camera session stopped", slog.String("session_id", s.id))
}

// detach removes a session whose camera died, unless it was already
// replaced.
func (m *Manager) detach(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != s {
		return
	}

	m.stopLocked()
}

func (m *Manager) run(ctx context.Context, s *Session) {
	const op = "session.Manager.run"

	log := m.log.With(
		slog.String("op", op),
		slog.String("session_id", s.id),
	)

	defer close(s.done)

	ticker := time.NewTicker(m.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !m.cfg.Headless && m.broadcaster.Count() == 0 {
			s.rt.Recorder.Sweep(time.Now())
			continue
		}

		frame, err := s.rt.Source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			s.lastReadOK.Store(false)
			s.readErrors.Add(1)
			m.metrics.ReadErrors.Add(1)

			if errors.Is(err, errs.ErrSourceClosed) || errors.Is(err, errs.ErrNotRunning) {
				log.Error("camera lost, stopping session", sl.Err(err))

				go m.detach(s)

				return
			}

			log.Debug("frame read failed", sl.Err(err))

			continue
		}

		s.lastReadOK.Store(true)
		s.framesRead.Add(1)
		m.metrics.FramesRead.Add(1)

		res := s.rt.Pipeline.Process(ctx, frame, time.Now())
		if res.JPEG != nil {
			m.broadcaster.Publish(res.JPEG)
		}
	}
}

func sameParams(a, b models.CameraParams) bool {
	return a.Kind == b.Kind &&
		a.Address == b.Address &&
		a.Port == b.Port &&
		slices.Equal(a.DeviceIndices, b.DeviceIndices)
}
