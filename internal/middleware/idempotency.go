package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/ruz-auth/internal/idempotency"
)

const (
	// IdempotencyKeyHeader carries the client token of a retryable POST.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks a response served from the idempotency store.
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
)

// Idempotency replays the stored response of an earlier request that carried the same
// Idempotency-Key on the same route. Requests without the header pass through.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if manager == nil || token == "" {
			c.Next()
			return
		}

		if len(token) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status":  http.StatusBadRequest,
				"message": "Invalid Idempotency-Key header.",
			})
			return
		}

		key := idempotency.GenerateKey(c.Request.Method, c.FullPath(), token)
		ran := false

		result, err := manager.Execute(c.Request.Context(), key, ttl, func(ctx context.Context) (*idempotency.Response, error) {
			ran = true

			w := &capturingWriter{ResponseWriter: c.Writer}
			c.Writer = w
			c.Next()
			c.Writer = w.ResponseWriter

			return &idempotency.Response{
				StatusCode:  w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}, nil
		})

		switch {
		case errors.Is(err, idempotency.ErrRequestInProgress):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"status":  http.StatusConflict,
				"message": "A request with this Idempotency-Key is still being processed.",
			})
		case err != nil:
			log.Warn("idempotency store unavailable", slog.String("route", c.FullPath()), slog.Any("error", err))
			if !ran {
				c.Next()
			}
		case result != nil && result.FromCache && result.Response != nil:
			c.Header(IdempotentReplayHeader, "true")
			c.Data(result.Response.StatusCode, result.Response.ContentType, result.Response.Body)
			c.Abort()
		}
	}
}

// capturingWriter copies the body into a buffer while writing it through.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
