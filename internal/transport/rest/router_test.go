package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dailysync/keeper/internal/service/assistant"
	"github.com/dailysync/keeper/internal/transport/middleware"
)

func testRouter() http.Handler {
	svc := &chatServiceMock{handleFn: func(_ context.Context, _ string) (assistant.Reply, error) {
		return assistant.Reply{}, nil
	}}
	h := Handlers{
		Health:    NewHealthHandler(nil, "test"),
		Assistant: NewAssistantHandler(svc, discardLogger()),
		Sync:      NewSyncHandler(nil, discardLogger()),
	}
	return NewRouter(h, nil, middleware.RequestID())
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	router := testRouter()

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/live", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodPost, "/api/assistant", `{"input":"ciao"}`, http.StatusOK},
		{http.MethodGet, "/api/sync", "", http.StatusOK},
		{http.MethodPost, "/api/sync", "", http.StatusOK},
		{http.MethodGet, "/api/assistant", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		var body *strings.Reader
		if tc.body != "" {
			body = strings.NewReader(tc.body)
		} else {
			body = strings.NewReader("")
		}
		req := httptest.NewRequest(tc.method, tc.path, body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	t.Parallel()

	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_RateLimitGuardsAssistant(t *testing.T) {
	t.Parallel()

	svc := &chatServiceMock{handleFn: func(_ context.Context, _ string) (assistant.Reply, error) {
		return assistant.Reply{}, nil
	}}
	h := Handlers{
		Health:    NewHealthHandler(nil, "test"),
		Assistant: NewAssistantHandler(svc, discardLogger()),
		Sync:      NewSyncHandler(nil, discardLogger()),
	}
	limiter := middleware.NewRateLimiter(time.Minute)
	defer limiter.Stop()
	router := NewRouter(h, limiter)

	var last int
	for i := 0; i < assistantRateLimit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/assistant", strings.NewReader(`{"input":"x"}`))
		req.RemoteAddr = "9.9.9.9:1"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	// Health stays unthrottled.
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.RemoteAddr = "9.9.9.9:1"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
