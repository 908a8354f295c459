package registry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

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

	c := NewClient(config.RegistryConfig{BaseURL: srv.URL, Timeout: time.Second}, nil, testLogger())
	c.retryBackoff = time.Millisecond
	return c
}

func TestFindIDsByICO(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uctovne-jednotky", r.URL.Path)
		assert.Equal(t, "2000-01-01", r.URL.Query().Get("zmenene-od"))
		assert.Equal(t, "12345678", r.URL.Query().Get("ico"))
		_, _ = w.Write([]byte(`{"id":[1234,5678],"existujeDalsieId":false}`))
	})

	ids, err := client.FindIDsByICO(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, []int64{1234, 5678}, ids)
}

func TestFindIDsByICONoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":[]}`))
	})

	ids, err := client.FindIDsByICO(context.Background(), "00000000")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFindIDsByICORejectsNonJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "html page", body: `<html><body>Maintenance</body></html>`},
		{name: "array", body: `[1,2]`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})

			ids, err := client.FindIDsByICO(context.Background(), "12345678")
			require.Error(t, err)
			assert.Nil(t, ids)
			assert.True(t, apperrors.IsKind(err, apperrors.KindUpstreamProtocol))
		})
	}
}

func TestGetDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uctovna-jednotka", r.URL.Path)
		assert.Equal(t, "1234", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"id":1234,"nazovUJ":"ACME s.r.o."}`))
	})

	body, err := client.GetDetail(context.Background(), 1234)
	require.NoError(t, err)
	assert.Equal(t, "ACME s.r.o.", gjson.GetBytes(body, "nazovUJ").String())
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":[1]}`))
	})

	ids, err := client.FindIDsByICO(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetDetail(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUpstreamRejected, apperrors.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetDetailRejectsNonObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	})

	_, err := client.GetDetail(context.Background(), 1)
	assert.Equal(t, apperrors.KindUpstreamProtocol, apperrors.KindOf(err))
}

func TestFetchClassifiers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Classifier
	}{
		{
			name: "klasifikacie",
			body: `{"klasifikacie":[{"kod":"112","nazov":{"sk":"Spoločnosť s ručením obmedzeným","en":"Limited liability company"}},{"kod":"","nazov":{"sk":"x"}},{"kod":"999","nazov":{}}]}`,
			want: []Classifier{{Code: "112", NameSk: "Spoločnosť s ručením obmedzeným", NameEn: strPtr("Limited liability company")}},
		},
		{
			name: "lokacie",
			body: `{"lokacie":[{"kod":"1","nazov":{"sk":"Bratislavský kraj"}}]}`,
			want: []Classifier{{Code: "1", NameSk: "Bratislavský kraj"}},
		},
		{
			name: "neither",
			body: `{"other":[]}`,
			want: nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/kraje", r.URL.Path)
				_, _ = w.Write([]byte(tc.body))
			})

			got, err := client.FetchClassifiers(context.Background(), "kraje")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func strPtr(s string) *string { return &s }
