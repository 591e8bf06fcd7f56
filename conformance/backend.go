package conformance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeBackend is an in-process REST backend speaking the wire format the
// agent's backend client expects. It keeps likes, favorites, comments and
// notifications in memory and records the bearer tokens it receives.
type FakeBackend struct {
	server *httptest.Server

	mu            sync.Mutex
	media         []fakeMedia
	liked         map[string]bool
	favorited     map[string]bool
	comments      map[string][]fakeComment
	notifications []fakeNotification
	reports       map[string][]string
	tokens        []string
	hits          map[string]int
	nextID        int
}

type fakeMedia struct {
	ID    string
	Type  string
	Title string
	Likes int
}

type fakeComment struct {
	ID      string        `json:"comment_id"`
	Text    string        `json:"comment_text"`
	Author  string        `json:"commenter_name"`
	Likes   int           `json:"likes"`
	Created string        `json:"created_at"`
	Replies []fakeComment `json:"replies,omitempty"`
}

type fakeNotification struct {
	ID      string `json:"notification_id"`
	Type    string `json:"notification_type"`
	Message string `json:"message"`
	Read    bool   `json:"is_read"`
	Created string `json:"created_at"`
}

// NewFakeBackend starts a backend serving n media items, alternating
// video and audio, and one unread notification.
func NewFakeBackend(n int) *FakeBackend {
	b := &FakeBackend{
		liked:     make(map[string]bool),
		favorited: make(map[string]bool),
		comments:  make(map[string][]fakeComment),
		reports:   make(map[string][]string),
		hits:      make(map[string]int),
	}
	for i := 1; i <= n; i++ {
		kind := "video"
		if i%2 == 0 {
			kind = "audio"
		}
		b.media = append(b.media, fakeMedia{ID: fmt.Sprintf("m%d", i), Type: kind, Title: fmt.Sprintf("Clip %d", i)})
	}
	b.notifications = []fakeNotification{{
		ID:      "n1",
		Type:    "LIKE",
		Message: "Someone liked your clip",
		Created: time.Now().UTC().Format(time.RFC3339),
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/media", b.listMedia)
	mux.HandleFunc("GET /api/media/liked", b.auth(b.likedIDs))
	mux.HandleFunc("GET /api/media/favorites", b.auth(b.favoritedIDs))
	mux.HandleFunc("GET /api/media/search/suggestions", b.suggestions)
	mux.HandleFunc("GET /api/media/notifications", b.auth(b.listNotifications))
	mux.HandleFunc("DELETE /api/notifications/{id}", b.auth(b.deleteNotification))
	mux.HandleFunc("POST /api/media/{id}/like", b.auth(b.setFlag(b.liked, true, true)))
	mux.HandleFunc("DELETE /api/media/{id}/like", b.auth(b.setFlag(b.liked, false, true)))
	mux.HandleFunc("POST /api/media/{id}/favorite", b.auth(b.setFlag(b.favorited, true, false)))
	mux.HandleFunc("DELETE /api/media/{id}/favorite", b.auth(b.setFlag(b.favorited, false, false)))
	mux.HandleFunc("GET /api/media/{id}/comments", b.listComments)
	mux.HandleFunc("POST /api/media/{id}/comment", b.auth(b.postComment))
	mux.HandleFunc("POST /api/media/{id}/comment/{commentId}/reply", b.auth(b.postReply))
	mux.HandleFunc("POST /api/media/comment/{id}/like", b.auth(b.likeComment))
	mux.HandleFunc("POST /api/media/{id}/report", b.auth(b.report))

	b.server = httptest.NewServer(b.count(mux))
	return b
}

// URL returns the backend origin.
func (b *FakeBackend) URL() string { return b.server.URL }

// Close stops the backend.
func (b *FakeBackend) Close() { b.server.Close() }

// Liked reports whether the backend recorded a like of the media item.
func (b *FakeBackend) Liked(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liked[id]
}

// Comments returns the top level comment texts of a media item.
func (b *FakeBackend) Comments(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.comments[id] {
		out = append(out, c.Text)
	}
	return out
}

// Reports returns the reasons a media item was reported for.
func (b *FakeBackend) Reports(id string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.reports[id]...)
}

// Tokens returns the bearer tokens received on authenticated calls.
func (b *FakeBackend) Tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tokens...)
}

// Hits returns how often a "METHOD /path" was requested.
func (b *FakeBackend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

func (b *FakeBackend) count(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		h.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) auth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Access token required"})
			return
		}
		b.mu.Lock()
		b.tokens = append(b.tokens, tok)
		b.mu.Unlock()
		h(w, r)
	}
}

func (b *FakeBackend) listMedia(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	search := strings.ToLower(r.URL.Query().Get("search"))
	mediaType := r.URL.Query().Get("media_type")

	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []fakeMedia
	for _, m := range b.media {
		if search != "" && !strings.Contains(strings.ToLower(m.Title), search) {
			continue
		}
		if mediaType == "video" && m.Type != "video" || mediaType == "music" && m.Type != "audio" {
			continue
		}
		matched = append(matched, m)
	}

	out := []map[string]any{}
	for i := (page - 1) * limit; i < len(matched) && i < page*limit; i++ {
		m := matched[i]
		out = append(out, map[string]any{
			"media_id":     m.ID,
			"media_type":   m.Type,
			"title":        m.Title,
			"file_path":    m.ID + ".bin",
			"creator_name": "creator",
			"likes":        m.Likes,
			"comments":     len(b.comments[m.ID]),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"media": out, "total": len(matched)})
}

func (b *FakeBackend) likedIDs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"likedMediaIds": b.keys(b.liked)})
}

func (b *FakeBackend) favoritedIDs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"favoritedMediaIds": b.keys(b.favorited)})
}

func (b *FakeBackend) keys(set map[string]bool) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for id, on := range set {
		if on {
			out = append(out, id)
		}
	}
	return out
}

func (b *FakeBackend) suggestions(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []map[string]string{}
	for _, m := range b.media {
		if strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, map[string]string{"id": m.ID, "title": m.Title, "type": m.Type})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (b *FakeBackend) listNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"notifications": b.notifications})
}

func (b *FakeBackend) deleteNotification(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	for i, n := range b.notifications {
		if n.ID == id {
			b.notifications = append(b.notifications[:i], b.notifications[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Notification not found"})
}

// setFlag toggles membership of the path's media id in set. counted flags
// also move the media's likes counter.
func (b *FakeBackend) setFlag(set map[string]bool, on, counted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		defer b.mu.Unlock()
		i := b.indexOf(id)
		if i < 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Media not found"})
			return
		}
		if set[id] == on {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Already in that state"})
			return
		}
		set[id] = on
		if counted {
			if on {
				b.media[i].Likes++
			} else if b.media[i].Likes > 0 {
				b.media[i].Likes--
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}
}

func (b *FakeBackend) indexOf(id string) int {
	for i, m := range b.media {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (b *FakeBackend) listComments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	comments := b.comments[r.PathValue("id")]
	if comments == nil {
		comments = []fakeComment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (b *FakeBackend) postComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"comment_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Comment text is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	b.comments[id] = append(b.comments[id], b.newComment(req.Text))
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Comment added"})
}

func (b *FakeBackend) postReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"reply_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Reply text is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	thread := b.comments[r.PathValue("id")]
	for i := range thread {
		if thread[i].ID == r.PathValue("commentId") {
			thread[i].Replies = append(thread[i].Replies, b.newComment(req.Text))
			writeJSON(w, http.StatusCreated, map[string]string{"message": "Reply added"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Comment not found"})
}

func (b *FakeBackend) likeComment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	for mediaID, thread := range b.comments {
		for i := range thread {
			if thread[i].ID == id {
				thread[i].Likes++
				b.comments[mediaID] = thread
				writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Comment not found"})
}

// newComment must be called with b.mu held.
func (b *FakeBackend) newComment(text string) fakeComment {
	b.nextID++
	return fakeComment{
		ID:      fmt.Sprintf("c%d", b.nextID),
		Text:    text,
		Author:  "viewer",
		Created: time.Now().UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *FakeBackend) report(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Reason is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := r.PathValue("id")
	b.reports[id] = append(b.reports[id], req.Reason)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Media reported"})
}
