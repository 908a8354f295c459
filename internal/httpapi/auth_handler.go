package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/ruz-auth/internal/auth"
	"github.com/Proton-105/ruz-auth/internal/domain"
	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/internal/middleware"
	"github.com/Proton-105/ruz-auth/internal/token"
)

// AuthService is the account workflow behind the /auth routes.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error)
	VerifyOtp(ctx context.Context, in auth.VerifyInput) (*auth.VerifyResult, error)
	ForgotPassword(ctx context.Context, phone string) (string, error)
	ResetPassword(ctx context.Context, in auth.ResetInput) (string, error)
	Login(ctx context.Context, in auth.LoginInput) (*domain.User, error)
}

// TokenIssuer signs access tokens for logged in users.
type TokenIssuer interface {
	Issue(userID int64) (token.Access, error)
}

// PhoneLimiter counts code requests per phone number.
type PhoneLimiter interface {
	CheckPhone(ctx context.Context, phone string) (int, bool)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	service AuthService
	tokens  TokenIssuer
	limiter PhoneLimiter
	errs    *apperrors.Handler
	log     *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. limiter may be nil.
func NewAuthHandler(service AuthService, tokens TokenIssuer, limiter PhoneLimiter, errs *apperrors.Handler, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		service: service,
		tokens:  tokens,
		limiter: limiter,
		errs:    errs,
		log:     log,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in auth.RegisterInput
	if !h.bind(c, &in) || h.limited(c, in.Phone) {
		return
	}

	res, err := h.service.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.errs, err)
		return
	}

	respond(c, http.StatusCreated, res.Message, res)
}

func (h *AuthHandler) VerifyOtp(c *gin.Context) {
	var in auth.VerifyInput
	if !h.bind(c, &in) || h.limited(c, in.Phone) {
		return
	}

	res, err := h.service.VerifyOtp(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.errs, err)
		return
	}

	respond(c, http.StatusOK, res.Message, nil)
}

type forgotPasswordRequest struct {
	Phone string `json:"phone"`
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var in forgotPasswordRequest
	if !h.bind(c, &in) || h.limited(c, in.Phone) {
		return
	}

	message, err := h.service.ForgotPassword(c.Request.Context(), in.Phone)
	if err != nil {
		respondError(c, h.errs, err)
		return
	}

	respond(c, http.StatusOK, message, nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var in auth.ResetInput
	if !h.bind(c, &in) || h.limited(c, in.Phone) {
		return
	}

	message, err := h.service.ResetPassword(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.errs, err)
		return
	}

	respond(c, http.StatusOK, message, nil)
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in auth.LoginInput
	if !h.bind(c, &in) {
		return
	}

	user, err := h.service.Login(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.errs, err)
		return
	}

	access, err := h.tokens.Issue(user.ID)
	if err != nil {
		respondError(c, h.errs, apperrors.NewInternalError("issue access token", err))
		return
	}

	respond(c, http.StatusOK, "Login successful.", loginResponse{
		Token:     access.Value,
		TokenType: strings.TrimSpace(middleware.BearerScheme),
		ExpiresAt: access.ExpiresAt,
	})
}

// bind decodes the JSON body into dst. An empty body decodes to the zero value so that
// validation reports the missing fields.
func (h *AuthHandler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.log.Warn("invalid json body", slog.String("path", c.FullPath()), slog.Any("error", err))
		respondInvalidJSON(c)
		return false
	}

	return true
}

func (h *AuthHandler) limited(c *gin.Context, phone string) bool {
	if h.limiter == nil {
		return false
	}

	retryAfter, limited := h.limiter.CheckPhone(c.Request.Context(), strings.TrimSpace(phone))
	if limited {
		middleware.AbortRateLimited(c, retryAfter)
	}

	return limited
}
