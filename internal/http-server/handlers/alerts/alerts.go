package alertshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/samber/lo"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/http-server/handlers"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

const (
	listTimeLayout   = "2006-01-02 15:04:05"
	latestTimeLayout = "15:04:05 02-01-2006"
)

type AlertHandler struct {
	log    *slog.Logger
	alerts Alerts
}

type Alerts interface {
	Unresolved(ctx context.Context) ([]models.Alert, error)
	Latest(ctx context.Context) ([]models.Alert, error)
	Detail(ctx context.Context, id int64) (models.Alert, string, error)
	Resolve(ctx context.Context, id int64) error
	MediaURL(video string) string
}

func New(log *slog.Logger, alerts Alerts) *AlertHandler {
	return &AlertHandler{
		log:    log,
		alerts: alerts,
	}
}

type Item struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Missing   string `json:"missing"`
	Level     string `json:"level"`
	VideoURL  string `json:"video_url"`
	Timestamp string `json:"timestamp"`
}

type ListResponse struct {
	Alerts []Item `json:"alerts"`
}

type LatestItem struct {
	ID        int64             `json:"id"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Video     *string           `json:"video"`
	Level     models.AlertLevel `json:"level"`
}

type LatestResponse struct {
	Alerts []LatestItem `json:"alerts"`
}

type DetailResponse struct {
	ID        int64             `json:"id"`
	Message   string            `json:"message"`
	Missing   string            `json:"missing"`
	Level     models.AlertLevel `json:"level"`
	Video     string            `json:"video"`
	VideoURL  string            `json:"video_url"`
	Timestamp string            `json:"timestamp"`
	Resolved  bool              `json:"resolved"`
}

type ResolveResponse struct {
	ID       int64 `json:"id"`
	Resolved bool  `json:"resolved"`
}

// List returns unresolved alerts of the query window, newest first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.alerts.List"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	alerts, err := h.alerts.Unresolved(r.Context())
	if err != nil {
		log.Error("failed to get alerts", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, "failed to get alerts")

		return
	}

	render.JSON(w, r, ListResponse{
		Alerts: lo.Map(alerts, func(a models.Alert, _ int) Item {
			return Item{
				ID:        a.ID,
				Message:   a.Message,
				Missing:   a.Missing,
				Level:     a.Level.Display(),
				VideoURL:  h.alerts.MediaURL(a.Video),
				Timestamp: a.Timestamp.Local().Format(listTimeLayout),
			}
		}),
	})
}

func (h *AlertHandler) Latest(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.alerts.Latest"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	alerts, err := h.alerts.Latest(r.Context())
	if err != nil {
		log.Error("failed to get latest alerts", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, "failed to get alerts")

		return
	}

	render.JSON(w, r, LatestResponse{
		Alerts: lo.Map(alerts, func(a models.Alert, _ int) LatestItem {
			item := LatestItem{
				ID:        a.ID,
				Message:   a.Message,
				Timestamp: a.Timestamp.Local().Format(latestTimeLayout),
				Level:     a.Level,
			}
			if url := h.alerts.MediaURL(a.Video); url != "" {
				item.Video = &url
			}
			return item
		}),
	})
}

func (h *AlertHandler) Detail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.alerts.Detail"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := alertID(w, r)
	if !ok {
		return
	}

	alert, videoURL, err := h.alerts.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrAlertNotFound) {
			handlers.Error(w, r, http.StatusNotFound, "alert not found")

			return
		}

		log.Error("failed to get alert", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, "failed to get alert")

		return
	}

	render.JSON(w, r, DetailResponse{
		ID:        alert.ID,
		Message:   alert.Message,
		Missing:   alert.Missing,
		Level:     alert.Level,
		Video:     alert.Video,
		VideoURL:  videoURL,
		Timestamp: alert.Timestamp.Local().Format(listTimeLayout),
		Resolved:  alert.Resolved,
	})
}

func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.alerts.Resolve"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := alertID(w, r)
	if !ok {
		return
	}

	if err := h.alerts.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, errs.ErrAlertNotFound) {
			handlers.Error(w, r, http.StatusNotFound, "alert not found")

			return
		}

		log.Error("failed to resolve alert", sl.Err(err))

		handlers.Error(w, r, http.StatusInternalServerError, "failed to resolve alert")

		return
	}

	render.JSON(w, r, ResolveResponse{ID: id, Resolved: true})
}

func alertID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		handlers.Error(w, r, http.StatusBadRequest, "invalid alert id")

		return 0, false
	}

	return id, true
}
