// Package detection talks to the object detection model server.
package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

type Config struct {
	Endpoint      string
	Timeout       time.Duration
	ConfThreshold float64
	IoUThreshold  float64
}

type Client struct {
	http *http.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

type predictResponse struct {
	Detections []models.Detection `json:"detections"`
}

type labelsResponse struct {
	Labels []string `json:"labels"`
}

// Detect sends frame as JPEG to /predict and returns detections at or above
// the confidence threshold.
func (c *Client) Detect(ctx context.Context, frame image.Image) ([]models.Detection, error) {
	const op = "detection.Detect"

	var img bytes.Buffer
	if err := jpeg.Encode(&img, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("%s: encode frame: %w", op, err)
	}

	var buf bytes.Buffer
	contentType, err := c.writeForm(&buf, img.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/predict"), &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	var resp predictResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrDetection, err)
	}

	return lo.Filter(resp.Detections, func(d models.Detection, _ int) bool {
		return d.Class != "" && d.Score >= c.cfg.ConfThreshold
	}), nil
}

// writeForm encodes the frame as the "file" part followed by the conf and iou
// fields, and returns the form content type.
func (c *Client) writeForm(w io.Writer, img []byte) (string, error) {
	writer := multipart.NewWriter(w)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}

	if _, err := part.Write(img); err != nil {
		return "", fmt.Errorf("write image data: %w", err)
	}

	if err := writer.WriteField("conf", strconv.FormatFloat(c.cfg.ConfThreshold, 'f', -1, 64)); err != nil {
		return "", fmt.Errorf("write conf field: %w", err)
	}

	if err := writer.WriteField("iou", strconv.FormatFloat(c.cfg.IoUThreshold, 'f', -1, 64)); err != nil {
		return "", fmt.Errorf("write iou field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	return writer.FormDataContentType(), nil
}

// Labels returns the class vocabulary of the loaded model.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	const op = "detection.Labels"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/labels"), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	var resp labelsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return resp.Labels, nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.cfg.Endpoint, "/") + path
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bad status: %s, error: %s", resp.Status, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
