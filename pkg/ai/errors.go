package ai

import (
	"context"
	"errors"
	"fmt"
	"net"

	ollamaapi "github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
)

// ErrorKind классифицирует ошибку внешнего провайдера.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindMalformed   ErrorKind = "malformed_response"
	KindUnreachable ErrorKind = "unreachable"
)

// ErrBudgetExceeded - промпт превышает бюджет токенов, запрос не отправлялся.
var ErrBudgetExceeded = errors.New("prompt token budget exceeded")

// ProviderError - типизированная ошибка вызова внешнего провайдера.
// Один вызов клиента выполняет не более одной сетевой попытки, поэтому
// решение о повторе принимает вызывающий каскад, а не клиент.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError оборачивает err в ProviderError с указанным kind.
func newProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// classifyHTTPStatus переводит HTTP статус в ErrorKind.
func classifyHTTPStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimited
	case status == 408 || status == 504:
		return KindTimeout
	default:
		return KindUnreachable
	}
}

// classifyOpenAIError классифицирует ошибки go-openai клиента.
func classifyOpenAIError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(provider, KindTimeout, err)
	}

	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return newProviderError(provider, classifyHTTPStatus(apiErr.HTTPStatusCode), err)
	}

	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return newProviderError(provider, classifyHTTPStatus(reqErr.HTTPStatusCode), err)
	}

	return newProviderError(provider, KindUnreachable, err)
}

// classifyOllamaError классифицирует ошибки нативного API Ollama.
func classifyOllamaError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(provider, KindTimeout, err)
	}

	var statusErr ollamaapi.StatusError
	if errors.As(err, &statusErr) {
		return newProviderError(provider, classifyHTTPStatus(statusErr.StatusCode), err)
	}

	return newProviderError(provider, KindUnreachable, err)
}
