package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/aqibot/core/telegram/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Long polling holds the request open, so the client timeout must exceed the poll timeout.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	timeout := 30 * time.Second
	if pollTimeout+10*time.Second > timeout {
		timeout = pollTimeout + 10*time.Second
	}
	return netutil.NewClient(netutil.ClientOptions{
		Timeout:        timeout,
		ResponseHeader: timeout,
		MaxRetries:     3,
		Backoff:        2 * time.Second,
	})
}
