package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/ruz-auth/internal/domain"
	"github.com/Proton-105/ruz-auth/internal/middleware"
	"github.com/Proton-105/ruz-auth/internal/repository"
)

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// UserHandler serves /user.
type UserHandler struct {
	users UserFinder
	log   *slog.Logger
}

func NewUserHandler(users UserFinder, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}

	return &UserHandler{users: users, log: log}
}

type profile struct {
	ID         int64             `json:"id"`
	Phone      string            `json:"phone"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Status     domain.UserStatus `json:"status"`
	IsVerified bool              `json:"isVerified"`
}

// Me returns the profile of the authenticated user. A token for a deleted user is unauthorized.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.AbortUnauthorized(c)
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.log.Warn("token for unknown user", slog.Int64("user_id", userID))
		middleware.AbortUnauthorized(c)
		return
	case err != nil:
		h.log.Error("profile lookup failed", slog.Int64("user_id", userID), slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			Status:  http.StatusInternalServerError,
			Message: "Internal server error",
		})
		return
	}

	respond(c, http.StatusOK, "User profile", profile{
		ID:         user.ID,
		Phone:      user.Phone,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Status:     user.Status,
		IsVerified: user.IsVerified,
	})
}
