// Package netutil builds the outbound HTTP clients used for the Telegram Bot
// API and the IQAir API.
package netutil

import (
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes an outbound HTTP client. Zero values select defaults.
type ClientOptions struct {
	// Timeout bounds a whole request including retries.
	Timeout time.Duration
	// ResponseHeader bounds the wait for response headers of one attempt.
	ResponseHeader time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
	// Backoff is the first retry delay; later delays double up to maxBackoff.
	Backoff time.Duration
}

const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	headerTimeout   = 5 * time.Second
	clientTimeout   = 30 * time.Second
)

// NewClient returns a client with a pooled transport. MaxRetries > 0 adds a
// retrying round tripper.
func NewClient(opts ClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = clientTimeout
	}
	var rt http.RoundTripper = newTransport(opts.ResponseHeader)
	if opts.MaxRetries > 0 {
		rt = &retryTransport{base: rt, maxRetries: opts.MaxRetries, backoff: opts.Backoff}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

func newTransport(header time.Duration) *http.Transport {
	if header <= 0 {
		header = headerTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: header,
		ExpectContinueTimeout: time.Second,
	}
}
