package models

import (
	"fmt"
	"time"
)

// Таксономия ошибок ядра. Фатальны только ConfigError и ConnectivityError —
// всё остальное гасится внутри компонентов или доезжает до цикла стратегии,
// который логирует и ждёт.

// ConfigError — битый конфиг или отсутствующие креды. Не ретраится.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// ConnectivityError — WS-сессия исчерпала попытки переподключения.
type ConnectivityError struct {
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: give up after %d reconnect attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RateLimitExceeded — локальный лимитер отказал. Восстановимо.
type RateLimitExceeded struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// ApiErrorKind — классификация ошибок REST.
type ApiErrorKind int

const (
	ApiKindTransport ApiErrorKind = iota
	ApiKindApplication
	ApiKindRateLimit
	ApiKindServer
)

func (k ApiErrorKind) String() string {
	switch k {
	case ApiKindTransport:
		return "transport"
	case ApiKindApplication:
		return "application"
	case ApiKindRateLimit:
		return "rate_limit"
	case ApiKindServer:
		return "server"
	}
	return "unknown"
}

// ApiError — ошибка HTTP-уровня (транспорт или статус >= 400).
type ApiError struct {
	Kind       ApiErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *ApiError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api %s: http %d: %s", e.Kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("api %s: %v", e.Kind, e.Err)
}

func (e *ApiError) Unwrap() error { return e.Err }

// LoadShedding — биржа сбрасывает нагрузку (503). Обрабатывается отдельной паузой.
func (e *ApiError) LoadShedding() bool { return e.StatusCode == 503 }

// TradingRuleRejection — локальное вето торговых правил, ордер на биржу не ушёл.
type TradingRuleRejection struct {
	Rule   string
	Reason string
}

func (e *TradingRuleRejection) Error() string {
	return fmt.Sprintf("trading rule %s: %s", e.Rule, e.Reason)
}

// DataError — сообщение неожиданной формы. Дропаем, не падаем.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "data: " + e.Msg }
