// Package upstream performs single-attempt JSON GETs against third-party HTTP
// providers behind a circuit breaker.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/core/telegram/netutil"
)

// ErrUnavailable is returned while the breaker for a provider is open.
var ErrUnavailable = errors.New("upstream: provider unavailable")

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected status %d", e.Provider, e.Status)
}

// Code satisfies the handler summary error-code convention.
func (e *StatusError) Code() string {
	return "upstream_status_" + strconv.Itoa(e.Status)
}

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tunes a Client.
type Options struct {
	Timeout time.Duration
	// HTTP overrides the default client; Timeout is ignored when set.
	HTTP Doer
	// MaxFailures opens the breaker after that many consecutive failures.
	MaxFailures uint32
	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration
}

// Client calls one provider. It never retries.
type Client struct {
	name    string
	http    Doer
	breaker *gobreaker.CircuitBreaker
}

const maxBodyBytes = 1 << 20

// NewClient builds a Client for the named provider.
func NewClient(name string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}
	doer := opts.HTTP
	if doer == nil {
		doer = &http.Client{Timeout: opts.Timeout}
	}
	maxFailures := opts.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn(logger.Background(), "upstream."+name, "breaker.state",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	breakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return &Client{name: name, http: doer, breaker: cb}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// GetJSON issues GET endpoint?query and decodes a 2xx body into out.
// Non-2xx answers yield *StatusError; transport failures are wrapped.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	start := time.Now()
	component := "upstream." + c.name

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("upstream %s: parse endpoint: %w", c.name, err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("upstream %s: build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// Server-side trouble counts against the breaker; client errors do not.
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return nil, &StatusError{Provider: c.name, Status: resp.StatusCode}
		}
		return resp, nil
	})

	status := 0
	defer func() {
		observe(c.name, outcome(status, err), time.Since(start))
	}()

	if err != nil {
		var se *StatusError
		switch {
		case errors.As(err, &se):
			status = se.Status
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			err = fmt.Errorf("%w: %s: %v", ErrUnavailable, c.name, err)
		default:
			err = fmt.Errorf("upstream %s: %w", c.name, err)
		}
		logFailure(ctx, component, status, start, err)
		return err
	}

	resp := result.(*http.Response)
	defer drain(resp)
	status = resp.StatusCode
	if status < 200 || status >= 300 {
		err = &StatusError{Provider: c.name, Status: status}
		logFailure(ctx, component, status, start, err)
		return err
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		err = fmt.Errorf("upstream %s: decode: %w", c.name, err)
		logFailure(ctx, component, status, start, err)
		return err
	}

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, component, "request.done",
			slog.String("status", "ok"),
			slog.Int("http_status", status),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

func outcome(status int, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnavailable):
		return "breaker_open"
	case status > 0:
		return "http_" + strconv.Itoa(status/100) + "xx"
	case netutil.IsTimeout(err):
		return "timeout"
	}
	return "error"
}

func logFailure(ctx context.Context, component string, status int, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.Duration("duration", logger.Took(start)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	}
	if status > 0 {
		attrs = append(attrs, slog.Int("http_status", status))
	}
	logger.Warn(ctx, component, "request.failed", attrs...)
}
