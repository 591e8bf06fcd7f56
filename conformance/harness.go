// Package conformance provides a test harness that checks the control API
// contract of the feed sync agent against a fully wired engine.
package conformance

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/config"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/engine"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/server"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/storage"
)

// Harness runs the agent against a FakeBackend and serves its control API.
type Harness struct {
	Backend *FakeBackend
	Engine  *engine.Engine
	server  *httptest.Server
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// Token is the viewer's bearer token, empty for an anonymous session
	Token string

	// Media is the number of items the fake backend serves
	Media int

	// PageSize is the feed page size
	PageSize int
}

// NewHarness starts a fake backend, an engine talking to it over HTTP and
// the control API in front of the engine. The engine is started.
func NewHarness(cfg Config) (*Harness, error) {
	if cfg.Media <= 0 {
		cfg.Media = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 3
	}

	fb := NewFakeBackend(cfg.Media)
	log := slog.New(slog.DiscardHandler)
	sess := session.New(cfg.Token, "")

	e, err := engine.New(engine.Options{
		Config: config.Config{
			MediaType:        "all",
			PageSize:         cfg.PageSize,
			ScrollThreshold:  100,
			SuggestionDelay:  50 * time.Millisecond,
			FilterDelay:      100 * time.Millisecond,
			Workers:          4,
			ReconnectInitial: time.Second,
			ReconnectMax:     30 * time.Second,
			PublicMediaURL:   "http://media.local",
		},
		Session: sess,
		Backend: backend.New(fb.URL(), sess.Credential, backend.WithTimeout(5*time.Second), backend.WithLogger(log)),
		Store:   storage.NewMemory(),
		Logger:  log,
	})
	if err != nil {
		fb.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if err := e.Start(); err != nil {
		e.Close()
		fb.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	return &Harness{
		Backend: fb,
		Engine:  e,
		server:  httptest.NewServer(server.NewMux(e, log)),
	}, nil
}

// URL returns the base URL of the control API.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the control API, the engine and the fake backend.
func (h *Harness) Close() {
	h.server.Close()
	h.Engine.Close()
	h.Backend.Close()
}

// Do sends a control request and returns the status and body.
func (h *Harness) Do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.URL()+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

// WaitFeed waits until the feed window holds n items and no fetch is in flight.
func (h *Harness) WaitFeed(t *testing.T, n int) engine.FeedView {
	t.Helper()
	var view engine.FeedView
	require.Eventually(t, func() bool {
		v, err := h.Engine.Feed()
		if err != nil {
			return false
		}
		view = v
		return !v.Loading && len(v.Items) == n
	}, 3*time.Second, 10*time.Millisecond)
	return view
}

// RunConformanceTests runs the control API contract checks.
func (h *Harness) RunConformanceTests(t *testing.T) {
	// pagination runs first; the route sweep below resets the window
	t.Run("Pagination", h.testPagination)
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("Routes", h.testRoutes)
	t.Run("ErrorEnvelope", h.testErrorEnvelope)
	t.Run("SingleActiveItem", h.testSingleActiveItem)
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		status, _ := h.Do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, status, path)
	}
}

// testRoutes checks that every control route is registered. Routed requests
// answer with JSON or no content; unrouted ones get the mux's plain 404/405.
func (h *Harness) testRoutes(t *testing.T) {
	routes := []struct{ method, path, body string }{
		{http.MethodGet, "/v1/feed", ""},
		{http.MethodPost, "/v1/feed/scroll", `{"offset":0,"viewport":100,"scrollHeight":1000}`},
		{http.MethodPost, "/v1/feed/swipe", `{"direction":"down"}`},
		{http.MethodPost, "/v1/feed/touch", `{"phase":"end"}`},
		{http.MethodPost, "/v1/feed/filters", `{}`},
		{http.MethodPost, "/v1/playback/toggle", ""},
		{http.MethodPost, "/v1/playback/mute", ""},
		{http.MethodPost, "/v1/playback/ended", `{"index":99}`},
		{http.MethodPost, "/v1/playback/buffering", `{"index":99}`},
		{http.MethodPost, "/v1/media/m1/like", ""},
		{http.MethodPost, "/v1/media/m1/favorite", ""},
		{http.MethodGet, "/v1/media/m1/comments", ""},
		{http.MethodDelete, "/v1/media/m1/comments", ""},
		{http.MethodPost, "/v1/media/m1/comment", `{"text":""}`},
		{http.MethodPost, "/v1/media/m1/comment/c1/reply", `{"text":""}`},
		{http.MethodPost, "/v1/media/m1/report", `{"reason":""}`},
		{http.MethodPost, "/v1/comments/c1/like", ""},
		{http.MethodGet, "/v1/interactions", ""},
		{http.MethodPost, "/v1/search/input", `{"raw":""}`},
		{http.MethodPost, "/v1/search/select", `{"title":""}`},
		{http.MethodGet, "/v1/search", ""},
		{http.MethodGet, "/v1/notifications", ""},
		{http.MethodPost, "/v1/notifications/n1/read", ""},
		{http.MethodPost, "/v1/notifications/read-all", ""},
		{http.MethodPut, "/v1/notifications/preferences", `{}`},
		{http.MethodDelete, "/v1/notifications/missing", ""},
		{http.MethodPost, "/v1/visibility", `{"visible":true}`},
		{http.MethodGet, "/v1/notices", ""},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			status, body := h.Do(t, rt.method, rt.path, rt.body)
			require.NotEqual(t, http.StatusMethodNotAllowed, status)
			require.NotContains(t, string(body), "404 page not found")
			if status != http.StatusNoContent {
				require.True(t, json.Valid(body), "body is not JSON: %s", body)
			}
		})
	}
}

// testErrorEnvelope checks the error body shape.
func (h *Harness) testErrorEnvelope(t *testing.T) {
	status, body := h.Do(t, http.MethodPost, "/v1/feed/swipe", `not json`)
	require.Equal(t, http.StatusBadRequest, status)

	var out struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "BAD_REQUEST", out.Error["code"])
	require.NotEmpty(t, out.Error["message"])
	require.NotEmpty(t, out.Error["correlationId"])
}

// testPagination scrolls to the bottom and expects the next page to append.
func (h *Harness) testPagination(t *testing.T) {
	first := h.WaitFeed(t, 3)
	require.True(t, first.HasMore)

	status, _ := h.Do(t, http.MethodPost, "/v1/feed/scroll", `{"offset":200,"viewport":100,"scrollHeight":300}`)
	require.Equal(t, http.StatusOK, status)

	view := h.WaitFeed(t, 5)
	require.False(t, view.HasMore)
	require.Equal(t, "m5", view.Items[4].ID)
}

// testSingleActiveItem checks that at most one element plays.
func (h *Harness) testSingleActiveItem(t *testing.T) {
	for _, dir := range []string{"up", "up", "down"} {
		status, body := h.Do(t, http.MethodPost, "/v1/feed/swipe", `{"direction":"`+dir+`"}`)
		require.Equal(t, http.StatusOK, status)

		var out struct {
			Data struct {
				Elements []string `json:"elements"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		playing := 0
		for _, el := range out.Data.Elements {
			if el == "playing" || el == "loading" {
				playing++
			}
		}
		require.LessOrEqual(t, playing, 1)
	}
}
