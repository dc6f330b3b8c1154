// Package opencv binds the capture and recording interfaces to gocv.
package opencv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/zanzhit/ppe_monitor/internal/capture"
	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/services/recording"
)

type Opener struct{}

func (Opener) OpenDevice(index int) (capture.Device, error) {
	const op = "opencv.OpenDevice"

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%s: device %d is not opened", op, index)
	}

	return &device{vc: vc, mat: gocv.NewMat()}, nil
}

// OpenURL opens a network stream, e.g. http://192.168.1.100:4747/video.
func (Opener) OpenURL(url string) (capture.Device, error) {
	const op = "opencv.OpenURL"

	vc, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%s: stream %s is not opened", op, url)
	}

	return &device{vc: vc, mat: gocv.NewMat()}, nil
}

type device struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (d *device) Read() (image.Image, error) {
	if !d.vc.Read(&d.mat) {
		if !d.vc.IsOpened() {
			return nil, errs.ErrSourceClosed
		}
		return nil, errs.ErrReadFrame
	}

	if d.mat.Empty() {
		return nil, errs.ErrReadFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrReadFrame, err)
	}

	return img, nil
}

func (d *device) Close() error {
	d.mat.Close()
	return d.vc.Close()
}

// WriterFactory opens VideoWriter sinks, e.g. XVID in an avi container.
type WriterFactory struct {
	Codec string
	FPS   float64
}

func (f WriterFactory) Create(path string, width, height int) (recording.Sink, error) {
	const op = "opencv.WriterFactory.Create"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	vw, err := gocv.VideoWriterFile(path, f.Codec, f.FPS, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%s: writer for %s is not opened", op, path)
	}

	return &writer{vw: vw}, nil
}

type writer struct {
	vw *gocv.VideoWriter
}

func (w *writer) Write(frame image.Image) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	return w.vw.Write(mat)
}

func (w *writer) Close() error {
	return w.vw.Close()
}
