package camerashandler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

type Frames interface {
	Subscribe() (int, <-chan []byte)
	Unsubscribe(id int)
}

type StreamHandler struct {
	log         *slog.Logger
	frames      Frames
	keepalive   time.Duration
	placeholder []byte
}

func NewStream(log *slog.Logger, frames Frames, keepalive time.Duration) *StreamHandler {
	if keepalive <= 0 {
		keepalive = 5 * time.Second
	}

	return &StreamHandler{
		log:         log,
		frames:      frames,
		keepalive:   keepalive,
		placeholder: blankJPEG(640, 480),
	}
}

// Stream serves annotated frames as multipart/x-mixed-replace. The
// connection survives session restarts; a blank frame is sent whenever the
// camera is silent for the keepalive interval.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cameras.Stream"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, frames := h.frames.Subscribe()
	defer h.frames.Unsubscribe(id)

	log.Info("viewer connected", slog.Int("viewer_id", id))
	defer log.Info("viewer disconnected", slog.Int("viewer_id", id))

	timer := time.NewTimer(h.keepalive)
	defer timer.Stop()

	for {
		var frame []byte

		select {
		case <-r.Context().Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			frame = f
		case <-timer.C:
			frame = h.placeholder
		}

		if err := writePart(w, frame); err != nil {
			log.Debug("failed to write frame", sl.Err(err))
			return
		}
		flusher.Flush()

		timer.Reset(h.keepalive)
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func blankJPEG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 50}); err != nil {
		return nil
	}
	return buf.Bytes()
}
