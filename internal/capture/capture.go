// Package capture provides frame sources for the monitor: a local camera
// device tried across several indices and a network stream opened by URL.
package capture

import (
	"context"
	"image"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

// Source yields raw frames from one camera backend.
//
// Read on an unopened or closed source returns errs.ErrNotRunning.
// errs.ErrReadFrame is transient; errs.ErrSourceClosed means the handle is
// gone and the source must be reopened. Close is idempotent.
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (image.Image, error)
	Close() error
	Kind() models.CameraKind
}
