package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hft_bot/internal/models"
	"hft_bot/internal/ratelimit"
	"hft_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	m.Run()
}

func newTestClient(baseURL string) *Client {
	return &Client{
		http:       &http.Client{Timeout: 5 * time.Second},
		limiter:    ratelimit.NewDefault(),
		baseURL:    baseURL,
		apiKey:     "LAqUlngMIQkIUjXMUreyu3qn",
		apiSecret:  "chNOOS4KvNXR_Xq4k4c9qsfoKWvnDecLATCRlcBwyKDYnWgO",
		retryDelay: time.Millisecond,
		now:        time.Now,
	}
}

// Канонический вектор подписи из документации BitMEX.
func TestSignDeterministic(t *testing.T) {
	c := newTestClient("")

	want := "c7682d435d0cfe87c16098df34ef2eb5a549d4c5a3c2b1f0f77b8af73423bf00"
	got := c.sign("GET", "/api/v1/instrument", 1518064236, "")
	require.Equal(t, want, got)

	// детерминированность: одинаковые входы — одинаковая подпись
	require.Equal(t, got, c.sign("GET", "/api/v1/instrument", 1518064236, ""))

	// любое изменение входа меняет подпись
	require.NotEqual(t, got, c.sign("POST", "/api/v1/instrument", 1518064236, ""))
	require.NotEqual(t, got, c.sign("GET", "/api/v1/instrument", 1518064237, ""))
}

func TestRequestAttachesAuthHeaders(t *testing.T) {
	var gotKey, gotExpires, gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotExpires = r.Header.Get("api-expires")
		gotSig = r.Header.Get("api-signature")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Request(context.Background(), http.MethodGet, "/position", "")
	require.NoError(t, err)

	require.Equal(t, c.apiKey, gotKey)
	require.NotEmpty(t, gotExpires)
	require.Len(t, gotSig, 64) // hex sha256
}

func TestRequestRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	data, err := c.Request(context.Background(), http.MethodGet, "/instrument?symbol=XBTUSD", "")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(data))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRequestExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Request(context.Background(), http.MethodPost, "/order", `{}`)
	require.Error(t, err)

	var apiErr *models.ApiError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, models.ApiKindApplication, apiErr.Kind)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestRequestMissingCredentials(t *testing.T) {
	c := newTestClient("http://localhost:0")
	c.apiKey = ""

	_, err := c.Request(context.Background(), http.MethodGet, "/position", "")
	var cfgErr *models.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestClassifyStatus(t *testing.T) {
	require.Equal(t, models.ApiKindRateLimit, classifyStatus(429, "").Kind)
	require.Equal(t, models.ApiKindServer, classifyStatus(500, "").Kind)
	require.Equal(t, models.ApiKindApplication, classifyStatus(400, "").Kind)
	require.True(t, classifyStatus(503, "").LoadShedding())
}
