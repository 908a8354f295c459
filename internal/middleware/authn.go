package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerScheme prefixes the Authorization header of protected requests.
const BearerScheme = "Bearer "

const userIDKey = "user_id"

// TokenParser resolves an access token to the user id it was issued for.
type TokenParser interface {
	Parse(raw string) (int64, error)
}

// Authenticate requires a valid bearer token and stores the user id on the context.
func Authenticate(tokens TokenParser, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, BearerScheme) {
			AbortUnauthorized(c)
			return
		}

		userID, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, BearerScheme)))
		if err != nil {
			log.Warn("access token rejected", slog.String("path", c.FullPath()), slog.Any("error", err))
			AbortUnauthorized(c)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by Authenticate.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// AbortUnauthorized writes the 401 body used by every protected route.
func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  http.StatusUnauthorized,
		"message": "Unauthorized",
	})
}
