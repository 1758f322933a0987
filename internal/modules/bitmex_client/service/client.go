package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	otext "github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"

	"hft_bot/internal/models"
	"hft_bot/internal/modules/config"
	"hft_bot/internal/ratelimit"
	"hft_bot/pkg/logger"
)

const (
	apiPrefix = "/api/v1"

	maxAttempts = 3
	// пауза между повторами неудачных запросов
	defaultRetryDelay = 5 * time.Second
	// срок жизни подписи
	signatureTTL = 60 * time.Second
)

// Client — подписанный REST-клиент BitMEX. Каждый запрос проходит через
// локальный rate limiter; отказ лимитера — это сон на период окна и повтор
// в рамках того же ограниченного цикла попыток, никакой рекурсии.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter

	baseURL   string
	apiKey    string
	apiSecret string

	retryDelay time.Duration
	now        func() time.Time
}

func NewClient(cfg *config.Config, limiter *ratelimit.Limiter) *Client {
	return &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		baseURL:    cfg.BaseURL(),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

// sign — hex(HMAC-SHA256(secret, method + path + expires + body)).
func (c *Client) sign(method, path string, expires int64, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(method + path + strconv.FormatInt(expires, 10) + body))
	return hex.EncodeToString(h.Sum(nil))
}

// Request выполняет подписанный запрос с классификацией и повторами.
// endpoint — путь после /api/v1, вместе с query ("/position?filter=...").
func (c *Client) Request(ctx context.Context, method, endpoint, body string) ([]byte, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, &models.ConfigError{Msg: "API credentials are missing or empty"}
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "rest "+method+" "+endpoint)
	defer span.Finish()
	otext.HTTPMethod.Set(span, method)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		if !c.limiter.Admit() {
			logger.Warn("rest: лимитер отказал (%s %s), ждём окно", method, endpoint)
			lastErr = &models.RateLimitExceeded{RetryAfter: c.limiter.ResetInterval()}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.limiter.ResetInterval()):
			}
			continue
		}

		data, err := c.do(ctx, method, endpoint, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		logger.Error("rest: %s %s attempt %d/%d: %v", method, endpoint, attempt+1, maxAttempts, err)
	}

	otext.Error.Set(span, true)
	return nil, errors.Wrapf(lastErr, "%s %s: giving up after %d attempts", method, endpoint, maxAttempts)
}

func (c *Client) do(ctx context.Context, method, endpoint, body string) ([]byte, error) {
	path := apiPrefix + endpoint
	expires := c.now().Unix() + int64(signatureTTL/time.Second)

	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, &models.ApiError{Kind: models.ApiKindTransport, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("api-expires", strconv.FormatInt(expires, 10))
	req.Header.Set("api-signature", c.sign(method, path, expires, body))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &models.ApiError{Kind: models.ApiKindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.ApiError{Kind: models.ApiKindTransport, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, string(data))
	}

	return data, nil
}

func classifyStatus(code int, body string) *models.ApiError {
	kind := models.ApiKindApplication
	switch {
	case code == http.StatusTooManyRequests:
		kind = models.ApiKindRateLimit
	case code >= 500:
		kind = models.ApiKindServer
	}
	return &models.ApiError{Kind: kind, StatusCode: code, Body: body}
}
