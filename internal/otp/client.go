// Package otp is a client for the Telnyx Verify API.
package otp

import (
	"bytes"
	"context"
	"encoding/json"
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
	apiName        = "telnyx"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client sends and verifies SMS codes.
type Client struct {
	baseURL   string
	apiKey    string
	profileID string
	http      *http.Client
	breaker   *apperrors.CircuitBreaker
	log       *slog.Logger
}

// NewClient creates a Client from configuration. A nil httpClient gets one with the configured timeout.
func NewClient(cfg config.OTPConfig, httpClient *http.Client, log *slog.Logger) *Client {
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

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		profileID: cfg.VerifyProfileID,
		http:      httpClient,
		breaker: apperrors.NewCircuitBreakerWithSettings(apperrors.BreakerSettings{
			Name: apiName,
			IsFailure: func(err error) bool {
				return apperrors.IsKind(err, apperrors.KindUpstreamUnavailable)
			},
		}),
		log: log.With(slog.String("component", "otp")),
	}
}

// Send asks the provider to deliver a code to phone.
func (c *Client) Send(ctx context.Context, phone string) (*SendResult, error) {
	start := time.Now()

	payload := map[string]string{
		"phone_number":      phone,
		"verify_profile_id": c.profileID,
	}

	body, err := c.post(ctx, c.baseURL+"/verifications/sms", payload)
	if err != nil {
		c.record("send", "unavailable", start)
		c.log.Warn("otp send failed", slog.String("phone", phone), slog.Any("error", err))
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	switch {
	case parsed.Get("data").Exists():
		c.record("send", "sent", start)
		return &SendResult{Ref: parsed.Get("data.id").String()}, nil
	case parsed.Get("errors").Exists():
		detail := parsed.Get("errors").Raw
		c.record("send", "rejected", start)
		c.log.Error("otp send rejected", slog.String("phone", phone), slog.String("errors", detail))
		return nil, apperrors.NewUpstreamRejectedError(apiName, detail)
	default:
		c.record("send", "unrecognized", start)
		c.log.Error("otp send returned unexpected response", slog.String("phone", phone), slog.String("raw", string(body)))
		return nil, apperrors.NewUpstreamProtocolError(apiName, string(body))
	}
}

// Verify checks code for phone. It never returns an error: every failure is folded into the result.
func (c *Client) Verify(ctx context.Context, phone, code string) VerifyResult {
	start := time.Now()

	payload := map[string]string{
		"code":              code,
		"verify_profile_id": c.profileID,
	}
	endpoint := fmt.Sprintf("%s/verifications/by_phone_number/%s/actions/verify", c.baseURL, url.PathEscape(phone))

	body, err := c.post(ctx, endpoint, payload)
	if err != nil {
		c.record("verify", "unavailable", start)
		c.log.Error("otp verify failed", slog.String("phone", phone), slog.Any("error", err))
		return VerifyResult{Outcome: OutcomeProviderError, Unavailable: true, Detail: err.Error()}
	}

	result := classify(body)
	c.record("verify", result.Outcome.String(), start)

	switch result.Outcome {
	case OutcomeAccepted:
		c.log.Info("otp accepted", slog.String("phone", phone))
	case OutcomeRejected:
		c.log.Warn("otp rejected", slog.String("phone", phone))
	case OutcomeProviderError:
		c.log.Warn("otp verify request invalid", slog.String("phone", phone), slog.String("errors", result.Detail))
	default:
		c.log.Error("otp verify returned unexpected response", slog.String("phone", phone), slog.String("raw", result.Raw))
	}

	return result
}

func classify(body []byte) VerifyResult {
	raw := string(body)
	if !gjson.ValidBytes(body) {
		return VerifyResult{Outcome: OutcomeUnrecognized, Raw: raw}
	}

	parsed := gjson.ParseBytes(body)
	switch parsed.Get("data.response_code").String() {
	case "accepted":
		return VerifyResult{Outcome: OutcomeAccepted, Raw: raw}
	case "rejected":
		return VerifyResult{Outcome: OutcomeRejected, Raw: raw}
	}

	if errs := parsed.Get("errors"); errs.Exists() {
		return VerifyResult{Outcome: OutcomeProviderError, Detail: errs.Raw, Raw: raw}
	}

	return VerifyResult{Outcome: OutcomeUnrecognized, Raw: raw}
}

// post returns the body for any response the provider produced on purpose, including 4xx
// with an errors payload. Transport failures, 5xx and an open breaker become UpstreamUnavailable.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("encode otp request", err)
	}

	var body []byte
	callErr := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return apperrors.NewInternalError("build otp request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.NewUpstreamUnavailableError(apiName, err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return apperrors.NewUpstreamUnavailableError(apiName, err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return apperrors.NewUpstreamUnavailableError(apiName, fmt.Errorf("status %d", resp.StatusCode))
		}

		return nil
	})

	// breaker refusals are plain errors
	var appErr *apperrors.AppError
	if callErr != nil && !errors.As(callErr, &appErr) {
		return nil, apperrors.NewUpstreamUnavailableError(apiName, callErr)
	}

	return body, callErr
}

func (c *Client) record(operation, outcome string, start time.Time) {
	metrics.RecordExternalCall(apiName, operation, outcome, time.Since(start))
}
