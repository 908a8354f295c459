package otp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/ruz-auth/internal/errors"
	"github.com/Proton-105/ruz-auth/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.OTPConfig{
		BaseURL:         srv.URL,
		APIKey:          "KEY",
		VerifyProfileID: "profile-1",
		Timeout:         time.Second,
	}, nil, testLogger())
}

func TestSendSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verifications/sms", r.URL.Path)
		assert.Equal(t, "Bearer KEY", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+421900111222", body["phone_number"])
		assert.Equal(t, "profile-1", body["verify_profile_id"])

		_, _ = w.Write([]byte(`{"data":{"id":"ver-1","status":"pending"}}`))
	})

	res, err := client.Send(context.Background(), "+421900111222")
	require.NoError(t, err)
	assert.Equal(t, "ver-1", res.Ref)
}

func TestSendOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind apperrors.Kind
	}{
		{name: "provider errors", status: http.StatusUnprocessableEntity, body: `{"errors":[{"code":"10015","title":"Invalid phone"}]}`, wantKind: apperrors.KindUpstreamRejected},
		{name: "unexpected shape", status: http.StatusOK, body: `{"hello":"world"}`, wantKind: apperrors.KindUpstreamProtocol},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, wantKind: apperrors.KindUpstreamUnavailable},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.Send(context.Background(), "+421900111222")
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestVerifyOutcomes(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		wantOutcome     Outcome
		wantUnavailable bool
	}{
		{name: "accepted", status: http.StatusOK, body: `{"data":{"response_code":"accepted","phone_number":"+421900111222"}}`, wantOutcome: OutcomeAccepted},
		{name: "rejected", status: http.StatusOK, body: `{"data":{"response_code":"rejected"}}`, wantOutcome: OutcomeRejected},
		{name: "errors payload", status: http.StatusBadRequest, body: `{"errors":[{"code":"10002","title":"Invalid code"}]}`, wantOutcome: OutcomeProviderError},
		{name: "unknown response code", status: http.StatusOK, body: `{"data":{"response_code":"expired"}}`, wantOutcome: OutcomeUnrecognized},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantOutcome: OutcomeUnrecognized},
		{name: "server error", status: http.StatusServiceUnavailable, body: ``, wantOutcome: OutcomeProviderError, wantUnavailable: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/verifications/by_phone_number/+421900111222/actions/verify", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			res := client.Verify(context.Background(), "+421900111222", "12345")
			assert.Equal(t, tc.wantOutcome, res.Outcome)
			assert.Equal(t, tc.wantUnavailable, res.Unavailable)
			if tc.wantOutcome == OutcomeUnrecognized {
				assert.Equal(t, tc.body, res.Raw)
			}
		})
	}
}

func TestVerifyTimeoutIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(config.OTPConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil, testLogger())

	res := client.Verify(context.Background(), "+421900111222", "12345")
	assert.Equal(t, OutcomeProviderError, res.Outcome)
	assert.True(t, res.Unavailable)
	assert.NotEmpty(t, res.Detail)
}

func TestBreakerOpensAfterRepeatedOutages(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < apperrors.MinRequests+5; i++ {
		res := client.Verify(context.Background(), "+421900111222", "12345")
		assert.True(t, res.Unavailable)
	}

	assert.Equal(t, apperrors.MinRequests, calls)
}
