package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/weatherbot/internal/upstream"
)

func kelvin(v float64) *float64 { return &v }

func TestCelsius(t *testing.T) {
	cases := []struct {
		in   *float64
		want string
	}{
		{kelvin(300), "26.85"},
		{kelvin(273.15), "0.00"},
		{kelvin(250), "-23.15"},
		{nil, NoTemperature},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Conditions{Kelvin: tc.in}.Celsius())
	}
}

func TestFormat(t *testing.T) {
	got := Format("Berlin", Conditions{Description: "clear sky", Kelvin: kelvin(300)})
	assert.Equal(t, "Weather in Berlin:\nclear sky\nTemperature: 26.85°C", got)

	got = Format("Berlin", Conditions{})
	assert.Equal(t, "Weather in Berlin:\nNo description available\nTemperature: n/a°C", got)
}

func TestCurrent(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("appid")
		assert.Equal(t, "Tallinn", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"weather":[{"description":"light rain"},{"description":"mist"}],"main":{"temp":280.15}}`))
	}))
	defer srv.Close()

	c := NewClient(upstream.NewClient("weather_current", upstream.Options{}), srv.URL)
	cond, err := c.Current(context.Background(), "Tallinn", "k-1")
	require.NoError(t, err)
	assert.Equal(t, "k-1", gotKey)
	assert.Equal(t, "light rain", cond.Description)
	assert.Equal(t, "7.00", cond.Celsius())
}

func TestCurrentMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[]}`))
	}))
	defer srv.Close()

	c := NewClient(upstream.NewClient("weather_missing", upstream.Options{}), srv.URL)
	cond, err := c.Current(context.Background(), "Oslo", "k")
	require.NoError(t, err)
	assert.Equal(t, "Weather in Oslo:\nNo description available\nTemperature: n/a°C", Format("Oslo", cond))
}

func TestCurrentUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(upstream.NewClient("weather_unauthorized", upstream.Options{}), srv.URL)
	_, err := c.Current(context.Background(), "Oslo", "bad")
	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}
