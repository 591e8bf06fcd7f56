// internal/server/mux_test.go
// Package server provides unit tests for the HTTP handlers and routing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend/mocks"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/config"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/engine"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/feed"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
)

// fakeEngine overrides the engine methods a test needs. Calling any other
// method panics through the nil embedded interface.
type fakeEngine struct {
	Engine

	ready      error
	swiped     feed.Direction
	mediaEvent engine.MediaEvent
	mediaIndex int
	reply      [3]string
	report     [2]string
	visible    *bool
	likeErr    error
}

func (f *fakeEngine) Ready(context.Context) error { return f.ready }

func (f *fakeEngine) Report(mediaID, reason string) (model.InteractionDelta, error) {
	f.report = [2]string{mediaID, reason}
	return model.InteractionDelta{MediaID: mediaID, Kind: model.InteractionReport, Status: model.DeltaPending}, nil
}

func (f *fakeEngine) Feed() (engine.FeedView, error) {
	return engine.FeedView{
		State:     feed.State{Items: []model.MediaItem{{ID: "m1", Kind: model.Video{}, Title: "first"}}},
		Playback:  model.PlaybackState{ActiveIndex: 0, IsPlaying: true, Volume: 1},
		Elements:  []model.ElementState{model.ElementPlaying},
		Indicator: model.IndicatorHidden,
	}, nil
}

func (f *fakeEngine) Swipe(d feed.Direction) (engine.FeedView, error) {
	if d != feed.Up && d != feed.Down {
		return engine.FeedView{}, errordefs.New(errordefs.KindBadRequest, "direction must be up or down")
	}
	f.swiped = d
	return f.Feed()
}

func (f *fakeEngine) ReportMedia(ev engine.MediaEvent, index int) (model.PlaybackState, error) {
	f.mediaEvent, f.mediaIndex = ev, index
	return model.PlaybackState{ActiveIndex: index}, nil
}

func (f *fakeEngine) ToggleLike(mediaID string) (model.InteractionDelta, error) {
	if f.likeErr != nil {
		return model.InteractionDelta{}, f.likeErr
	}
	return model.InteractionDelta{ID: "d1", MediaID: mediaID, Kind: model.InteractionLike, Status: model.DeltaPending}, nil
}

func (f *fakeEngine) PostReply(mediaID, commentID, text string) (model.InteractionDelta, error) {
	f.reply = [3]string{mediaID, commentID, text}
	return model.InteractionDelta{ID: "d2", MediaID: mediaID, Kind: model.InteractionReply}, nil
}

func (f *fakeEngine) MarkAllRead() error {
	return errordefs.New(errordefs.KindUnavailable, "notification channel disconnected")
}

func (f *fakeEngine) Visibility(v bool) error {
	f.visible = &v
	return nil
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CorrelationID string `json:"correlationId"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestHealthzEndpoint(t *testing.T) {
	mux := NewMux(&fakeEngine{}, nil)

	rr := serve(t, mux, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyzEndpoint(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	fe.ready = errors.New("store down")
	rr = serve(t, mux, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "not ready", rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(&fakeEngine{}, nil)
	serve(t, mux, http.MethodGet, "/v1/feed", "")

	rr := serve(t, mux, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "feedsync_http_requests_total")
}

func TestFeedEndpoint(t *testing.T) {
	mux := NewMux(&fakeEngine{}, nil)

	rr := serve(t, mux, http.MethodGet, "/v1/feed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Correlation-Id"))

	var body struct {
		Data struct {
			Items []struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"items"`
			Playback struct {
				ActiveIndex *int `json:"activeIndex"`
				IsPlaying   bool `json:"isPlaying"`
			} `json:"playback"`
			Elements []string `json:"elements"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Data.Items, 1)
	require.Equal(t, "m1", body.Data.Items[0].ID)
	require.NotNil(t, body.Data.Playback.ActiveIndex)
	require.Equal(t, 0, *body.Data.Playback.ActiveIndex)
	require.True(t, body.Data.Playback.IsPlaying)
	require.Equal(t, []string{"playing"}, body.Data.Elements)
}

func TestSwipeEndpoint(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/feed/swipe", `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, feed.Up, fe.swiped)

	req := httptest.NewRequest(http.MethodPost, "/v1/feed/swipe", strings.NewReader(`{"direction":"left"}`))
	req.Header.Set("X-Correlation-Id", "corr-1")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, string(errordefs.KindBadRequest), body.Error.Code)
	require.Equal(t, "direction must be up or down", body.Error.Message)
	require.Equal(t, "corr-1", body.Error.CorrelationID)
}

func TestInvalidJSON(t *testing.T) {
	mux := NewMux(&fakeEngine{}, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/feed/swipe", `{"direction":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid JSON", decodeError(t, rr).Error.Message)
}

func TestMediaEventEndpoint(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/playback/ended", `{"index":2}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, engine.MediaEnded, fe.mediaEvent)
	require.Equal(t, 2, fe.mediaIndex)

	rr = serve(t, mux, http.MethodPost, "/v1/playback/buffering", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "index is required", decodeError(t, rr).Error.Message)
}

func TestLikeEndpointMapsErrors(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/media/m1/like", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"mediaId":"m1"`)

	fe.likeErr = errordefs.New(errordefs.KindUnauthorized, "Please log in to like media")
	rr = serve(t, mux, http.MethodPost, "/v1/media/m1/like", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeError(t, rr)
	require.Equal(t, string(errordefs.KindUnauthorized), body.Error.Code)
	require.Equal(t, "Please log in to like media", body.Error.Message)

	fe.likeErr = errordefs.New(errordefs.KindNotFound, "media not loaded")
	rr = serve(t, mux, http.MethodPost, "/v1/media/zz/like", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReplyEndpointReadsPath(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/media/m1/comment/c9/reply", `{"text":"same here"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, [3]string{"m1", "c9", "same here"}, fe.reply)
}

func TestReportEndpoint(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/media/m2/report", `{"reason":"spam"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, [2]string{"m2", "spam"}, fe.report)
	require.Contains(t, rr.Body.String(), `"kind":"report"`)
}

func TestNotificationEndpoints(t *testing.T) {
	fe := &fakeEngine{}
	mux := NewMux(fe, nil)

	rr := serve(t, mux, http.MethodPost, "/v1/notifications/read-all", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, string(errordefs.KindUnavailable), decodeError(t, rr).Error.Code)

	rr = serve(t, mux, http.MethodPost, "/v1/visibility", `{"visible":true}`)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, fe.visible)
	require.True(t, *fe.visible)
}

func TestMethodNotAllowed(t *testing.T) {
	mux := NewMux(&fakeEngine{}, nil)

	rr := serve(t, mux, http.MethodGet, "/v1/feed/swipe", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestControlAPIDrivesEngine(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mocks.NewMockBackend(ctrl)
	b.EXPECT().ListMedia(gomock.Any(), gomock.Any()).Return(model.MediaPage{
		Items: []model.MediaItem{
			{ID: "a", Kind: model.Video{}},
			{ID: "b", Kind: model.Audio{}},
		},
	}, nil)

	e, err := engine.New(engine.Options{
		Config: config.Config{
			MediaType:        "all",
			PageSize:         10,
			Workers:          2,
			ReconnectInitial: time.Second,
			ReconnectMax:     time.Minute,
		},
		Session: session.Anonymous(),
		Backend: b,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	require.NoError(t, e.Start())

	srv := httptest.NewServer(NewMux(e, nil))
	t.Cleanup(srv.Close)

	require.Eventually(t, func() bool {
		v, err := e.Feed()
		return err == nil && len(v.Items) == 2
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/v1/feed/swipe", "application/json", strings.NewReader(`{"direction":"up"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Post(srv.URL+"/v1/media/a/like", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	v, err := e.Feed()
	require.NoError(t, err)
	active, ok := v.Playback.Active()
	require.True(t, ok)
	require.Equal(t, 1, active)
}
