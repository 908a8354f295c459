package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/Proton-105/ruz-auth/internal/domain"
	"github.com/Proton-105/ruz-auth/internal/middleware"
	"github.com/Proton-105/ruz-auth/internal/repository"
	"github.com/Proton-105/ruz-auth/internal/ruz"
)

// Decoder resolves registry classification codes.
type Decoder interface {
	Decode(ctx context.Context, dictType, code string) (*domain.Decoded, error)
	DecodeBatch(ctx context.Context, items []ruz.Item) []*domain.Decoded
	DecodeCompany(ctx context.Context, c *domain.Company) *domain.DecodedCompany
}

// CompanyFinder loads stored companies.
type CompanyFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Company, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.Company, error)
}

// RuzHandler serves /ruz. Successful responses are the bare decoded objects.
type RuzHandler struct {
	decoder   Decoder
	companies CompanyFinder
	log       *slog.Logger
}

// NewRuzHandler constructs a RuzHandler.
func NewRuzHandler(decoder Decoder, companies CompanyFinder, log *slog.Logger) *RuzHandler {
	if log == nil {
		log = slog.Default()
	}

	return &RuzHandler{
		decoder:   decoder,
		companies: companies,
		log:       log,
	}
}

func (h *RuzHandler) Decode(c *gin.Context) {
	dictType := strings.TrimSpace(c.Query("type"))
	code := strings.TrimSpace(c.Query("code"))

	if dictType == "" || code == "" {
		errs := make(map[string]string, 2)
		if dictType == "" {
			errs["type"] = "errors.type.required"
		}
		if code == "" {
			errs["code"] = "errors.code.required"
		}
		h.log.Warn("missing type or code in decode request", slog.String("type", dictType), slog.String("code", code))
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Status:  http.StatusBadRequest,
			Message: "Missing type or code",
			Errors:  errs,
		})
		return
	}

	decoded, err := h.decoder.Decode(c.Request.Context(), dictType, code)
	if err != nil {
		h.log.Error("decode failed", slog.String("type", dictType), slog.String("code", code), slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			Status:  http.StatusInternalServerError,
			Message: "Internal decode error",
		})
		return
	}

	if decoded == nil {
		decoded = &domain.Decoded{Code: code}
	}

	c.JSON(http.StatusOK, decoded)
}

type decodeBatchRequest struct {
	Items json.RawMessage `json:"items"`
}

func (h *RuzHandler) DecodeBatch(c *gin.Context) {
	var req decodeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("invalid decode batch body", slog.Any("error", err))
		respondInvalidJSON(c)
		return
	}

	parsed := gjson.ParseBytes(req.Items)
	if len(req.Items) > 0 && parsed.Type != gjson.Null && !parsed.IsArray() {
		h.log.Warn("invalid decode batch payload", slog.String("items", parsed.Type.String()))
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Status:  http.StatusBadRequest,
			Message: "Invalid payload format",
			Errors:  map[string]string{"items": "Must be an array"},
		})
		return
	}

	items := []ruz.Item{}
	if parsed.IsArray() {
		for _, el := range parsed.Array() {
			items = append(items, batchItem(el))
		}
	}

	h.log.Info("decode batch", slog.Int("count", len(items)))
	c.JSON(http.StatusOK, h.decoder.DecodeBatch(c.Request.Context(), items))
}

// batchItem reads one element of a batch request. Numeric codes are taken as text; an element
// that is not an object yields an empty item, which decodes to null.
func batchItem(el gjson.Result) ruz.Item {
	if !el.IsObject() {
		return ruz.Item{}
	}

	return ruz.Item{Type: scalarText(el.Get("type")), Code: scalarText(el.Get("code"))}
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number:
		return v.String()
	default:
		return ""
	}
}

func (h *RuzHandler) CompanyDecoded(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.log.Warn("company not found", slog.String("company_id", c.Param("id")))
		h.companyNotFound(c)
		return
	}

	company, err := h.companies.FindByID(c.Request.Context(), id)
	h.writeDecodedCompany(c, company, err, slog.Int64("company_id", id))
}

// CompanyMeDecoded decodes the company of the authenticated user.
func (h *RuzHandler) CompanyMeDecoded(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.AbortUnauthorized(c)
		return
	}

	company, err := h.companies.FindByUserID(c.Request.Context(), userID)
	h.writeDecodedCompany(c, company, err, slog.Int64("user_id", userID))
}

func (h *RuzHandler) writeDecodedCompany(c *gin.Context, company *domain.Company, err error, ref slog.Attr) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.log.Warn("company not found", ref)
		h.companyNotFound(c)
		return
	case err != nil:
		h.log.Error("company lookup failed", ref, slog.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			Status:  http.StatusInternalServerError,
			Message: "Error decoding company data",
		})
		return
	}

	c.JSON(http.StatusOK, h.decoder.DecodeCompany(c.Request.Context(), company))
}

func (h *RuzHandler) companyNotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, envelope{
		Status:  http.StatusNotFound,
		Message: "Company not found",
	})
}
