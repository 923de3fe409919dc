package telegram

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultRequestTimeout  = 15 * time.Second
	defaultKeepAlive       = 30 * time.Second
)

// HTTPOptions tunes the Bot API client. Zero values fall back to defaults.
type HTTPOptions struct {
	// RequestTimeout bounds one Bot API call, not counting the long-poll wait.
	RequestTimeout time.Duration
	// LongPoll is the getUpdates wait; it extends every deadline below.
	LongPoll time.Duration
}

// BuildHTTPClient returns the client used for Bot API calls. It never retries:
// sendMessage is not idempotent, sender.Dispatcher owns send retries and the
// long poller re-issues getUpdates on its own.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	budget := opts.RequestTimeout
	if budget <= 0 {
		budget = defaultRequestTimeout
	}
	if opts.LongPoll > 0 {
		budget += opts.LongPoll
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: budget,
	}
	return &http.Client{
		Timeout:   budget,
		Transport: transport,
	}
}
