// Package geocode turns a shared location into a city name.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/internal/upstream"
)

// UnknownLocation is the city reported when a location cannot be resolved.
const UnknownLocation = "Unknown location"

// ErrUnresolved is returned alongside UnknownLocation.
var ErrUnresolved = errors.New("geocode: location could not be resolved")

// Resolver maps coordinates to a city name.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, error)
}

// Client resolves coordinates through an OpenCage-compatible API.
type Client struct {
	api      *upstream.Client
	endpoint string
	apiKey   string
}

var _ Resolver = (*Client)(nil)

// NewClient builds a Client calling endpoint with apiKey.
func NewClient(api *upstream.Client, endpoint, apiKey string) *Client {
	return &Client{api: api, endpoint: endpoint, apiKey: apiKey}
}

type response struct {
	Results []struct {
		Components struct {
			City string `json:"city"`
		} `json:"components"`
	} `json:"results"`
}

// Resolve returns the first result's city. Provider failures, empty results and
// results without a city all yield UnknownLocation with ErrUnresolved.
func (c *Client) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("q", formatCoord(lat)+","+formatCoord(lon))
	q.Set("key", c.apiKey)

	var body response
	if err := c.api.GetJSON(ctx, c.endpoint, q, &body); err != nil {
		return UnknownLocation, fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	if len(body.Results) == 0 {
		logger.Info(ctx, "upstream.geocode", "resolve.empty",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
		)
		return UnknownLocation, ErrUnresolved
	}
	city := strings.TrimSpace(body.Results[0].Components.City)
	if city == "" || city == UnknownLocation {
		return UnknownLocation, ErrUnresolved
	}
	return city, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Static resolves every location to a fixed city. It stands in when no
// geocoding key is configured.
type Static struct {
	City string
}

var _ Resolver = Static{}

// Resolve returns s.City, or UnknownLocation with ErrUnresolved when it is empty.
func (s Static) Resolve(context.Context, float64, float64) (string, error) {
	city := strings.TrimSpace(s.City)
	if city == "" {
		return UnknownLocation, ErrUnresolved
	}
	return city, nil
}
