package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

const defaultStreamPath = "/video"

// URLOpener opens a stream address through the same backend as local devices.
type URLOpener interface {
	OpenURL(url string) (Device, error)
}

type NetworkConfig struct {
	Address        string
	Port           string
	Path           string
	ConnectTimeout time.Duration
}

// URL builds the stream address, e.g. http://192.168.1.100:4747/video.
func (c NetworkConfig) URL() string {
	path := c.Path
	if path == "" {
		path = defaultStreamPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	host := c.Address
	if c.Port != "" {
		host = net.JoinHostPort(c.Address, c.Port)
	}

	return "http://" + host + path
}

// Network is a camera reached by URL, e.g. a phone running DroidCam.
type Network struct {
	log    *slog.Logger
	opener URLOpener
	cfg    NetworkConfig

	mu  sync.Mutex
	dev Device
}

func NewNetwork(log *slog.Logger, opener URLOpener, cfg NetworkConfig) *Network {
	return &Network{
		log:    log,
		opener: opener,
		cfg:    cfg,
	}
}

func (n *Network) Kind() models.CameraKind {
	return models.CameraNetwork
}

type opened struct {
	dev Device
	err error
}

// Open connects and reads one confirming frame. ctx and the connect timeout
// bound the handshake; a handle that arrives after the deadline is released.
func (n *Network) Open(ctx context.Context) error {
	const op = "capture.Network.Open"

	url := n.cfg.URL()

	log := n.log.With(
		slog.String("op", op),
		slog.String("url", url),
	)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dev != nil {
		return nil
	}

	if n.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.ConnectTimeout)
		defer cancel()
	}

	done := make(chan opened, 1)
	go func() {
		done <- n.connect(url)
	}()

	var res opened
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if late := <-done; late.dev != nil {
				n.release(late.dev)
			}
		}()
		res.err = context.Cause(ctx)
	}

	if res.err != nil {
		log.Error("cannot connect to camera stream", sl.Err(res.err))

		return fmt.Errorf("%s: %w: %w", op, errs.ErrCannotConnect, res.err)
	}

	n.dev = res.dev

	log.Info("camera stream opened")

	return nil
}

func (n *Network) connect(url string) opened {
	dev, err := n.opener.OpenURL(url)
	if err != nil {
		return opened{err: err}
	}

	if _, err := dev.Read(); err != nil {
		n.release(dev)
		return opened{err: fmt.Errorf("no confirming frame: %w", err)}
	}

	return opened{dev: dev}
}

func (n *Network) release(dev Device) {
	if err := dev.Close(); err != nil {
		n.log.Warn("failed to release stream", sl.Err(err))
	}
}

func (n *Network) Read(ctx context.Context) (image.Image, error) {
	const op = "capture.Network.Read"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dev == nil {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrNotRunning)
	}

	img, err := n.dev.Read()
	if err != nil {
		if errors.Is(err, errs.ErrSourceClosed) || errors.Is(err, errs.ErrReadFrame) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrReadFrame, err)
	}

	return img, nil
}

func (n *Network) Close() error {
	const op = "capture.Network.Close"

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.dev == nil {
		return nil
	}

	dev := n.dev
	n.dev = nil

	if err := dev.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
