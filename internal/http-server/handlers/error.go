package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/zanzhit/ppe_monitor/internal/lib/api/response"
)

// Error writes a JSON error body tagged with the request id.
func Error(w http.ResponseWriter, r *http.Request, statusCode int, msg string) {
	render.Status(r, statusCode)
	render.JSON(w, r, response.Error(msg, middleware.GetReqID(r.Context())))
}
