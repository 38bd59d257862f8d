package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Options задает параметры создаваемого HTTP клиента.
type Options struct {
	Timeout time.Duration
}

// New создает *http.Client с настроенным транспортом для вызовов внешних
// провайдеров. Таймаут клиента ограничивает весь запрос целиком; ретраи
// здесь не выполняются, это ответственность вызывающего слоя.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
