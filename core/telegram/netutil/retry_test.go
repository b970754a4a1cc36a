package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("boom")))
	assert.True(t, ShouldRetry(timeoutErr{}))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}))
	assert.False(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: errors.New("bad")}))
	assert.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "http://x", Err: syscall.ECONNRESET}))
	assert.True(t, ShouldRetry(fmt.Errorf("read body: %w", io.ErrUnexpectedEOF)))
	assert.True(t, ShouldRetry(&net.DNSError{Err: "server misbehaving", IsTemporary: true}))
	assert.False(t, ShouldRetry(&net.DNSError{Err: "no such host", IsNotFound: true}))
	assert.False(t, ShouldRetry(&url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}))
}

type flakyTransport struct {
	calls atomic.Int32
	fails int32
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestRetryTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	flaky := &flakyTransport{fails: 2}
	client := &http.Client{Transport: &retryTransport{base: flaky, maxRetries: 2, backoff: time.Millisecond}}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestNewClientWithoutRetries(t *testing.T) {
	c := NewClient(ClientOptions{Timeout: time.Second})
	_, isRetry := c.Transport.(*retryTransport)
	assert.False(t, isRetry)
	assert.Equal(t, time.Second, c.Timeout)

	c = NewClient(ClientOptions{MaxRetries: 1})
	_, isRetry = c.Transport.(*retryTransport)
	assert.True(t, isRetry)
}

func TestRetryTransportRetriesUnavailableGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{MaxRetries: 2, Backoff: time.Millisecond})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetryTransportKeepsPostStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientOptions{MaxRetries: 3, Backoff: time.Millisecond})
	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryTransportGivesUp(t *testing.T) {
	flaky := &flakyTransport{fails: 10}
	client := &http.Client{Transport: &retryTransport{base: flaky, maxRetries: 2}}
	_, err := client.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	assert.Equal(t, int32(3), flaky.calls.Load())
}
