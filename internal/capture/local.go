package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

// Device is an opened capture device.
type Device interface {
	Read() (image.Image, error)
	Close() error
}

type DeviceOpener interface {
	OpenDevice(index int) (Device, error)
}

type Local struct {
	log     *slog.Logger
	opener  DeviceOpener
	indices []int

	mu     sync.Mutex
	dev    Device
	active int
}

func NewLocal(log *slog.Logger, opener DeviceOpener, indices []int) *Local {
	return &Local{
		log:     log,
		opener:  opener,
		indices: append([]int(nil), indices...),
	}
}

func (l *Local) Kind() models.CameraKind {
	return models.CameraLocal
}

// Index returns the device index that is currently open.
func (l *Local) Index() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.active, l.dev != nil
}

// Open tries each configured index in order. An index counts only when the
// device both opens and yields a first frame.
func (l *Local) Open(ctx context.Context) error {
	const op = "capture.Local.Open"

	log := l.log.With(
		slog.String("op", op),
		slog.Any("indices", l.indices),
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dev != nil {
		return nil
	}

	for _, idx := range l.indices {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		dev, err := l.opener.OpenDevice(idx)
		if err != nil {
			log.Debug("device did not open", slog.Int("index", idx), sl.Err(err))

			continue
		}

		if _, err := dev.Read(); err != nil {
			log.Debug("device opened but produced no frame", slog.Int("index", idx), sl.Err(err))

			if err := dev.Close(); err != nil {
				log.Warn("failed to release device", slog.Int("index", idx), sl.Err(err))
			}

			continue
		}

		l.dev = dev
		l.active = idx

		log.Info("camera opened", slog.Int("index", idx))

		return nil
	}

	log.Error("no camera available")

	return fmt.Errorf("%s: %w", op, errs.ErrNoCamera)
}

func (l *Local) Read(ctx context.Context) (image.Image, error) {
	const op = "capture.Local.Read"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dev == nil {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotRunning)
	}

	img, err := l.dev.Read()
	if err != nil {
		if errors.Is(err, errs.ErrSourceClosed) || errors.Is(err, errs.ErrReadFrame) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrReadFrame, err)
	}

	return img, nil
}

func (l *Local) Close() error {
	const op = "capture.Local.Close"

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dev == nil {
		return nil
	}

	dev := l.dev
	l.dev = nil

	if err := dev.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
