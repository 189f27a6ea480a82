package httpapi

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// NewStreaming creates a client for long-lived streamed responses. timeout
// bounds dialing and waiting for response headers but not reading the body;
// pair it with an IdleTimer. Zero means no limit.
func NewStreaming(provider, baseURL string, timeout time.Duration) *Client {
	c := New(provider, baseURL, 0)
	c.HTTP = StreamingHTTPClient(timeout)
	return c
}

// StreamingHTTPClient returns an http.Client without an overall deadline.
func StreamingHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Transport: transport}
}

// IdleTimer cancels a stream when a pending read sees no data for its
// timeout. It only runs between Arm and Disarm, so a slow consumer never
// trips it. A nil *IdleTimer is valid and does nothing.
type IdleTimer struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

// NewIdleTimer returns a disarmed timer that calls cancel on expiry, or nil
// when timeout is not positive.
func NewIdleTimer(timeout time.Duration, cancel context.CancelFunc) *IdleTimer {
	if timeout <= 0 {
		return nil
	}
	t := &IdleTimer{timeout: timeout}
	t.timer = time.AfterFunc(timeout, func() {
		t.fired.Store(true)
		cancel()
	})
	t.timer.Stop()
	return t
}

// Arm restarts the countdown.
func (t *IdleTimer) Arm() {
	if t != nil {
		t.timer.Reset(t.timeout)
	}
}

// Disarm stops the countdown.
func (t *IdleTimer) Disarm() {
	if t != nil {
		t.timer.Stop()
	}
}

// Fired reports whether the timer cancelled the stream.
func (t *IdleTimer) Fired() bool {
	return t != nil && t.fired.Load()
}

// Timeout returns the idle limit.
func (t *IdleTimer) Timeout() time.Duration {
	if t == nil {
		return 0
	}
	return t.timeout
}
