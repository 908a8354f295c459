// Package httpapi exposes the auth and registry decode operations over HTTP.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
)

// envelope is the body of every /auth response.
type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindUpstreamRejected:
		return http.StatusBadRequest
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindUpstreamProtocol:
		return http.StatusBadGateway
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"status": status, "message": message, "data": data})
}

// respondError logs err through the error handler and writes the error envelope.
func respondError(c *gin.Context, h *apperrors.Handler, err error) {
	message, _ := h.Handle(c.Request.Context(), err)
	status := statusFor(apperrors.KindOf(err))

	body := envelope{Status: status, Message: message}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		body.Errors = appErr.Fields
	}

	c.AbortWithStatusJSON(status, body)
}

func respondInvalidJSON(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Status:  http.StatusBadRequest,
		Message: "Invalid JSON",
		Errors:  map[string]string{"json": "Request body must be valid JSON."},
	})
}
