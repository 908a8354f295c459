// Package registry is a client for the RegisterUZ public API.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/pkg/config"
	"github.com/Proton-105/ruz-auth/pkg/metrics"
)

const (
	apiName             = "registeruz"
	defaultTimeout      = 20 * time.Second
	defaultChangedSince = "2000-01-01"
	maxBodyBytes        = 32 << 20
)

// Classifier is one entry of a registry code list.
type Classifier struct {
	Code   string
	NameSk string
	NameEn *string
}

// Client reads company records and code lists. GET calls are retried on transport failures.
type Client struct {
	baseURL      string
	changedSince string
	http         *http.Client
	breaker      *apperrors.CircuitBreaker
	retryBackoff time.Duration
	log          *slog.Logger
}

// NewClient creates a Client from configuration. A nil httpClient gets one with the configured timeout.
func NewClient(cfg config.RegistryConfig, httpClient *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	changedSince := cfg.ChangedSince
	if changedSince == "" {
		changedSince = defaultChangedSince
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		changedSince: changedSince,
		http:         httpClient,
		breaker: apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{
			Name: apiName,
			IsFailure: func(err error) bool {
				return apperrors.IsKind(err, apperrors.KindUpstreamUnavailable)
			},
		}),
		retryBackoff: apperrors.InitialBackoff,
		log:          log.With(slog.String("component", "registry")),
	}
}

// FindIDsByICO returns the internal ids of accounting units registered under ico.
// An empty slice means the registry knows no such company.
func (c *Client) FindIDsByICO(ctx context.Context, ico string) ([]int64, error) {
	query := url.Values{}
	query.Set("zmenene-od", c.changedSince)
	query.Set("ico", ico)

	body, err := c.get(ctx, "search", "/uctovne-jednotky", query)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, apperrors.NewUpstreamProtocolError(apiName, truncate(string(body)))
	}

	ids := gjson.GetBytes(body, "id")
	if !ids.Exists() {
		return nil, nil
	}
	if !ids.IsArray() {
		return nil, apperrors.NewUpstreamProtocolError(apiName, truncate(string(body)))
	}

	var out []int64
	for _, v := range ids.Array() {
		if id := v.Int(); id > 0 {
			out = append(out, id)
		}
	}

	return out, nil
}

// GetDetail returns the raw JSON detail of accounting unit id.
func (c *Client) GetDetail(ctx context.Context, id int64) ([]byte, error) {
	query := url.Values{}
	query.Set("id", fmt.Sprintf("%d", id))

	body, err := c.get(ctx, "detail", "/uctovna-jednotka", query)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, apperrors.NewUpstreamProtocolError(apiName, truncate(string(body)))
	}

	return body, nil
}

// FetchClassifiers downloads a code list such as "kraje" or "sk-nace". Items come from
// either the klasifikacie or the lokacie array; entries without a code or Slovak name are skipped.
func (c *Client) FetchClassifiers(ctx context.Context, endpoint string) ([]Classifier, error) {
	body, err := c.get(ctx, "classifiers", "/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewUpstreamProtocolError(apiName, truncate(string(body)))
	}

	parsed := gjson.ParseBytes(body)
	items := parsed.Get("klasifikacie")
	if !items.Exists() {
		items = parsed.Get("lokacie")
	}

	var out []Classifier
	items.ForEach(func(_, item gjson.Result) bool {
		code := strings.TrimSpace(item.Get("kod").String())
		nameSk := item.Get("nazov.sk").String()
		if code == "" || nameSk == "" {
			return true
		}

		cl := Classifier{Code: code, NameSk: nameSk}
		if en := item.Get("nazov.en"); en.Exists() && en.Type != gjson.Null {
			s := en.String()
			cl.NameEn = &s
		}
		out = append(out, cl)
		return true
	})

	return out, nil
}

func (c *Client) get(ctx context.Context, operation, path string, query url.Values) ([]byte, error) {
	start := time.Now()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	err := apperrors.WithRetryBackoff(ctx, c.retryBackoff, func() error {
		return c.breaker.Call(func() error {
			var callErr error
			body, callErr = c.do(ctx, endpoint)
			return callErr
		})
	})

	var appErr *apperrors.AppError
	if err != nil && !errors.As(err, &appErr) {
		err = apperrors.NewUpstreamUnavailableError(apiName, err)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		c.log.Warn("registry call failed",
			slog.String("operation", operation),
			slog.String("url", endpoint),
			slog.Any("error", err),
		)
	}
	metrics.RecordExternalCall(apiName, operation, outcome, time.Since(start))

	return body, err
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("build registry request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(apiName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(apiName, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.NewUpstreamUnavailableError(apiName, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, apperrors.NewUpstreamRejectedError(apiName, fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body))))
	}

	return body, nil
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
