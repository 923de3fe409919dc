package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/geocode"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/subscription"
	"github.com/m3rciful/weatherbot/internal/weather"
)

type nopMessenger struct{}

func (nopMessenger) SendText(context.Context, int64, string) error            { return nil }
func (nopMessenger) SendLocationRequest(context.Context, int64, string) error { return nil }

type nopWeather struct{}

func (nopWeather) Current(context.Context, string, string) (weather.Conditions, error) {
	return weather.Conditions{}, nil
}

type env struct {
	router http.Handler
	svc    *subscription.Service
	repo   *subscriber.MemoryRepository
	creds  *credential.Cell
}

func newEnv(t *testing.T, token string) *env {
	t.Helper()
	repo := subscriber.NewMemoryRepository()
	creds := credential.NewCell("secret-key-1234")
	svc, err := subscription.NewService(subscription.Deps{
		Repo:        repo,
		Geocoder:    geocode.Static{City: "Berlin"},
		Weather:     nopWeather{},
		Credentials: creds,
		Messenger:   nopMessenger{},
	})
	require.NoError(t, err)
	return &env{
		router: NewRouter(token, NewHandler(svc, creds)),
		svc:    svc,
		repo:   repo,
		creds:  creds,
	}
}

func (e *env) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListUsers(t *testing.T) {
	e := newEnv(t, "")
	rec := e.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	_, err := e.repo.Create(context.Background(), 42, "Ada")
	require.NoError(t, err)

	rec = e.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]map[string]any](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, float64(42), users[0]["chatId"])
	assert.Equal(t, "Ada", users[0]["username"])
	assert.Equal(t, false, users[0]["isBlock"])
}

func TestBlockUnblockDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "")
	_, err := e.repo.Create(ctx, 42, "Ada")
	require.NoError(t, err)
	e.svc.LoadActive(ctx)

	rec := e.do(t, http.MethodPatch, "/users/block/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgUserBlocked, decode[messageBody](t, rec).Message)
	got, _ := e.repo.FindByChatID(ctx, 42)
	assert.True(t, got.Blocked)

	rec = e.do(t, http.MethodPatch, "/users/unblock/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgUserUnblocked, decode[messageBody](t, rec).Message)

	rec = e.do(t, http.MethodDelete, "/users/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgUserDeleted, decode[messageBody](t, rec).Message)
	assert.False(t, e.svc.Active().Has(42))

	rec = e.do(t, http.MethodDelete, "/users/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, msgUserNotFound, body.Message)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
}

func TestBadChatID(t *testing.T) {
	e := newEnv(t, "")
	rec := e.do(t, http.MethodPatch, "/users/block/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKey(t *testing.T) {
	e := newEnv(t, "")

	rec := e.do(t, http.MethodGet, "/admin/api-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "***********1234", decode[apiKeyResponse](t, rec).APIKey)

	rec = e.do(t, http.MethodPut, "/admin/api-key", `{"key":"rotated"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, credential.UpdatedMessage, decode[messageBody](t, rec).Message)
	assert.Equal(t, "rotated", e.creds.Get())

	rec = e.do(t, http.MethodPut, "/admin/api-key", `{"key":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation error", decode[errorBody](t, rec).Message)
	assert.Equal(t, "rotated", e.creds.Get())

	rec = e.do(t, http.MethodPut, "/admin/api-key", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearerToken(t *testing.T) {
	e := newEnv(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/users", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/users", "", "Authorization", "Bearer s3cret").Code)

	// health and metrics stay open
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestServerStartShutdown(t *testing.T) {
	e := newEnv(t, "")
	srv := NewServer(Options{Listen: "127.0.0.1:0"}, NewHandler(e.svc, e.creds))
	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))

	assert.NoError(t, NewServer(Options{}, NewHandler(e.svc, e.creds)).Shutdown(context.Background()))
}
