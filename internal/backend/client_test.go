// internal/backend/client_test.go
// Package backend provides tests for the REST client against an httptest backend.
package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
)

// newTestClient starts an httptest backend serving handler and returns a client for it.
func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, session.ParseCredential(token), WithTimeout(2*time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListMediaDecodesPage(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/media", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		require.Equal(t, "cat", r.URL.Query().Get("search"))
		require.Equal(t, "video", r.URL.Query().Get("media_type"))
		require.Equal(t, "pop", r.URL.Query().Get("genre"))
		require.NotEmpty(t, r.Header.Get(RequestIDHeader))
		require.Empty(t, r.Header.Get("Authorization"))

		writeJSON(w, http.StatusOK, map[string]any{
			"total": 25,
			"media": []map[string]any{
				{"media_id": 7, "media_type": "video", "title": "Cat", "likes": "3", "comments": 2, "file_path": "a b.mp4", "creator_name": "ann"},
				{"media_id": "8", "media_type": "audio", "signed_url": "https://cdn/x.mp3", "created_at": "2024-05-01T10:00:00Z"},
				{"media_id": 9, "media_type": "hologram"},
			},
		})
	})

	page, err := c.ListMedia(context.Background(), model.Filters{
		Page: 2, Limit: 10, Search: "cat", MediaType: model.MediaTypeVideo,
		Extra: map[string]string{"genre": "pop"},
	})
	require.NoError(t, err)
	require.Equal(t, 25, page.Total)
	require.Len(t, page.Items, 2, "unknown kinds are skipped")

	first := page.Items[0]
	require.Equal(t, "7", first.ID)
	require.Equal(t, model.Video{}, first.Kind)
	require.Equal(t, 3, first.Likes)
	require.Equal(t, 2, first.CommentCount)
	require.Equal(t, "a b.mp4", first.Source.FilePath)
	require.Equal(t, "ann", first.Creator.Name)

	second := page.Items[1]
	require.Equal(t, model.Audio{}, second.Kind)
	require.Equal(t, "https://cdn/x.mp3", second.Source.SignedURL)
	require.Equal(t, 2024, second.CreatedAt.Year())
}

func TestAuthenticatedCallWithoutCredentialSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	err := c.SetFavorite(context.Background(), "1")
	require.ErrorIs(t, err, errordefs.ErrUnauthorized)
	require.ErrorIs(t, err, session.ErrMissingCredential)
	require.Zero(t, hits.Load())
}

func TestToggleMethodsAndBearer(t *testing.T) {
	type seen struct{ method, path, auth string }
	got := make(chan seen, 4)
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		got <- seen{r.Method, r.URL.Path, r.Header.Get("Authorization")}
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	ctx := context.Background()
	require.NoError(t, c.SetLike(ctx, "5"))
	require.NoError(t, c.UnsetLike(ctx, "5"))
	require.NoError(t, c.SetFavorite(ctx, "5"))
	require.NoError(t, c.UnsetFavorite(ctx, "5"))

	require.Equal(t, seen{http.MethodPost, "/api/media/5/like", "Bearer tok"}, <-got)
	require.Equal(t, seen{http.MethodDelete, "/api/media/5/like", "Bearer tok"}, <-got)
	require.Equal(t, seen{http.MethodPost, "/api/media/5/favorite", "Bearer tok"}, <-got)
	require.Equal(t, seen{http.MethodDelete, "/api/media/5/favorite", "Bearer tok"}, <-got)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		kind    errordefs.Kind
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"error": "token expired"}, errordefs.KindUnauthorized, "token expired"},
		{"validation", http.StatusBadRequest, map[string]string{"error": "Comment text is required"}, errordefs.KindValidation, "Comment text is required"},
		{"server", http.StatusInternalServerError, nil, errordefs.KindServer, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			err := c.PostComment(context.Background(), "1", "hi")
			require.Error(t, err)
			require.Equal(t, tt.kind, errordefs.KindOf(err))
			require.Equal(t, tt.message, errordefs.MessageOf(err))

			var e *errordefs.Error
			require.ErrorAs(t, err, &e)
			require.NotEmpty(t, e.CorrelationID)
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, session.ParseCredential("tok"), WithTimeout(time.Second))

	_, err := c.Notifications(context.Background())
	require.ErrorIs(t, err, errordefs.ErrNetwork)
}

func TestCommentsAndReplies(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/media/3/comments":
			writeJSON(w, http.StatusOK, map[string]any{"comments": []map[string]any{{
				"comment_id": 1, "comment_text": "nice", "commenter_name": "bo", "likes": 2,
				"replies": []map[string]any{{"comment_id": 2, "comment_text": "thanks", "commenter_name": "ann"}},
			}}})
		case "/api/media/3/comment/1/reply":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "thanks", body["reply_text"])
			writeJSON(w, http.StatusCreated, map[string]any{})
		case "/api/media/comment/2/like":
			require.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, http.StatusOK, map[string]any{})
		case "/api/media/3/report":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "spam", body["reason"])
			writeJSON(w, http.StatusCreated, map[string]any{"message": "Reported"})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	comments, err := c.Comments(ctx, "3")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "nice", comments[0].Text)
	require.Equal(t, "bo", comments[0].Author)
	require.Len(t, comments[0].Replies, 1)
	require.Equal(t, "2", comments[0].Replies[0].ID)

	require.NoError(t, c.PostReply(ctx, "3", "1", "thanks"))
	require.NoError(t, c.LikeComment(ctx, "2"))
	require.NoError(t, c.ReportMedia(ctx, "3", "spam"))
}

func TestSuggestionsQuery(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/media/search/suggestions", r.URL.Path)
		require.Equal(t, "cat", r.URL.Query().Get("q"))
		require.Equal(t, "8", r.URL.Query().Get("limit"))
		require.Equal(t, "music", r.URL.Query().Get("media_type"))
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []map[string]any{{"title": "Cats", "type": "title"}}})
	})

	got, err := c.Suggestions(context.Background(), "cat", model.MediaTypeMusic)
	require.NoError(t, err)
	require.Equal(t, []model.Suggestion{{Title: "Cats", Type: "title"}}, got)
}

func TestViewerSetsAndNotifications(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/media/liked":
			writeJSON(w, http.StatusOK, map[string]any{"likedMediaIds": []any{1, "2"}})
		case "/api/media/favorites":
			writeJSON(w, http.StatusOK, map[string]any{"favoritedMediaIds": []any{3}})
		case "/api/media/notifications":
			writeJSON(w, http.StatusOK, map[string]any{"notifications": []map[string]any{
				{"notification_id": 10, "notification_type": "LIKE", "message": "liked", "is_read": true},
			}})
		case "/api/notifications/10":
			require.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	liked, err := c.LikedMediaIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, liked)

	fav, err := c.FavoritedMediaIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"3"}, fav)

	recs, err := c.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "10", recs[0].ID)
	require.True(t, recs[0].Read)
	require.Equal(t, model.SourceREST, recs[0].Source)

	require.NoError(t, c.DeleteNotification(ctx, "10"))
}
