package camerashandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/lib/api/response"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
)

type CameraHandler struct {
	log      *slog.Logger
	sessions Sessions
	validate *validator.Validate
}

type Sessions interface {
	Toggle(ctx context.Context, cmd models.CameraCommand) (models.SessionStatus, error)
	Status() (models.SessionInfo, bool)
}

func New(log *slog.Logger, sessions Sessions) *CameraHandler {
	return &CameraHandler{
		log:      log,
		sessions: sessions,
		validate: validator.New(),
	}
}

type Request struct {
	Action        string `json:"action" validate:"required,oneof=start stop"`
	CameraType    string `json:"camera_type" validate:"omitempty,oneof=local network pc droidcam"`
	IP            string `json:"ip" validate:"omitempty,hostname|ip"`
	Port          string `json:"port" validate:"omitempty,numeric"`
	DeviceIndices []int  `json:"device_indices" validate:"omitempty,dive,min=-1"`
}

type Response struct {
	Status     models.SessionStatus `json:"status"`
	CameraType models.CameraKind    `json:"camera_type,omitempty"`
	response.Response
}

type StatusResponse struct {
	Running bool                `json:"running"`
	Session *models.SessionInfo `json:"session,omitempty"`
}

var cameraAliases = map[string]models.CameraKind{
	"":         models.CameraLocal,
	"local":    models.CameraLocal,
	"pc":       models.CameraLocal,
	"network":  models.CameraNetwork,
	"droidcam": models.CameraNetwork,
}

// Toggle starts or stops the camera session.
func (h *CameraHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cameras.Toggle"

	requestID := middleware.GetReqID(r.Context())

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", requestID),
	)

	var req Request
	err := render.DecodeJSON(r.Body, &req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Error("request body is empty")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, Response{Status: models.StatusError, Response: response.Error("empty request", requestID)})

			return
		}

		log.Error("failed to decode request body", sl.Err(err))

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Response{Status: models.StatusError, Response: response.Error("failed to decode request", requestID)})

		return
	}

	req.CameraType = strings.ToLower(strings.TrimSpace(req.CameraType))

	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if !errors.As(err, &validateErr) {
			log.Error("failed to validate request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, Response{Status: models.StatusError, Response: response.Error("invalid request", requestID)})

			return
		}

		log.Error("invalid request", sl.Err(err))

		resp := response.ValidationError(validateErr)
		resp.RequestID = requestID

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Response{Status: models.StatusError, CameraType: models.CameraKind(req.CameraType), Response: resp})

		return
	}

	kind := cameraAliases[req.CameraType]

	cmd := models.CameraCommand{
		Action: models.CommandAction(req.Action),
		Params: models.CameraParams{
			Kind:          kind,
			DeviceIndices: req.DeviceIndices,
			Address:       req.IP,
			Port:          req.Port,
		},
	}

	status, err := h.sessions.Toggle(r.Context(), cmd)
	if err != nil {
		log.Error("failed to toggle camera", sl.Err(err))

		code := http.StatusInternalServerError
		msg := "failed to toggle camera"

		switch {
		case errors.Is(err, errs.ErrNoCamera):
			code, msg = http.StatusServiceUnavailable, errs.ErrNoCamera.Error()
		case errors.Is(err, errs.ErrCannotConnect):
			code, msg = http.StatusServiceUnavailable, errs.ErrCannotConnect.Error()
		case errors.Is(err, errs.ErrUnknownAction), errors.Is(err, errs.ErrUnknownCameraType):
			code, msg = http.StatusBadRequest, err.Error()
		}

		render.Status(r, code)
		render.JSON(w, r, Response{Status: models.StatusError, CameraType: kind, Response: response.Error(msg, requestID)})

		return
	}

	log.Info("camera toggled", slog.String("status", string(status)))

	render.JSON(w, r, Response{Status: status, CameraType: kind})
}

func (h *CameraHandler) Status(w http.ResponseWriter, r *http.Request) {
	info, ok := h.sessions.Status()
	if !ok {
		render.JSON(w, r, StatusResponse{})

		return
	}

	render.JSON(w, r, StatusResponse{Running: true, Session: &info})
}
