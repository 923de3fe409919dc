// Package weather fetches current conditions for a city.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/m3rciful/weatherbot/internal/upstream"
)

const (
	// NoDescription replaces a missing condition description.
	NoDescription = "No description available"
	// NoTemperature replaces a missing temperature.
	NoTemperature = "n/a"
)

// Conditions is the subset of the provider response the bot renders.
type Conditions struct {
	Description string
	// Kelvin is nil when the provider omitted main.temp.
	Kelvin *float64
}

// Celsius renders the temperature rounded to two decimals.
func (c Conditions) Celsius() string {
	if c.Kelvin == nil || math.IsNaN(*c.Kelvin) || math.IsInf(*c.Kelvin, 0) {
		return NoTemperature
	}
	return strconv.FormatFloat(*c.Kelvin-273.15, 'f', 2, 64)
}

// Format renders the chat message for city.
func Format(city string, c Conditions) string {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		desc = NoDescription
	}
	return fmt.Sprintf("Weather in %s:\n%s\nTemperature: %s°C", city, desc, c.Celsius())
}

// Fetcher looks up conditions for city using apiKey.
type Fetcher interface {
	Current(ctx context.Context, city, apiKey string) (Conditions, error)
}

// Client talks to an OpenWeatherMap-compatible endpoint.
type Client struct {
	api      *upstream.Client
	endpoint string
}

var _ Fetcher = (*Client)(nil)

// NewClient builds a Client for endpoint.
func NewClient(api *upstream.Client, endpoint string) *Client {
	return &Client{api: api, endpoint: endpoint}
}

type response struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
}

// Current performs one request. The key is read per call so credential
// rotation applies to the next fetch.
func (c *Client) Current(ctx context.Context, city, apiKey string) (Conditions, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", apiKey)

	var body response
	if err := c.api.GetJSON(ctx, c.endpoint, q, &body); err != nil {
		return Conditions{}, err
	}
	var out Conditions
	if len(body.Weather) > 0 {
		out.Description = body.Weather[0].Description
	}
	if body.Main != nil {
		out.Kelvin = body.Main.Temp
	}
	return out, nil
}
