// internal/server/mux.go
// Package server implements the local control API of the feed sync agent.
// A renderer drives the engine through these endpoints and polls the
// resulting state; every response is JSON.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/engine"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/feed"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/metrics"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/telemetry"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// ContextKeyCorrelationID stores the request's correlation id
	ContextKeyCorrelationID ContextKey = "correlationId"

	// maxBodyBytes bounds control request bodies
	maxBodyBytes = 64 << 10
)

// Engine is the part of the engine the control API drives.
type Engine interface {
	Ready(ctx context.Context) error

	Feed() (engine.FeedView, error)
	Scroll(offset, viewport, scrollHeight float64) (engine.FeedView, error)
	Swipe(d feed.Direction) (engine.FeedView, error)
	Touch(phase string, y float64) error
	SetFilters(u engine.FilterUpdate) error

	TogglePlay() (model.PlaybackState, error)
	ToggleMute() (model.PlaybackState, error)
	ReportMedia(ev engine.MediaEvent, index int) (model.PlaybackState, error)

	ToggleLike(mediaID string) (model.InteractionDelta, error)
	ToggleFavorite(mediaID string) (model.InteractionDelta, error)
	Deltas() ([]model.InteractionDelta, error)

	ExpandComments(mediaID string) (model.CommentThread, error)
	CollapseComments(mediaID string) error
	PostComment(mediaID, text string) (model.InteractionDelta, error)
	PostReply(mediaID, commentID, text string) (model.InteractionDelta, error)
	LikeComment(commentID string) (model.InteractionDelta, error)
	Report(mediaID, reason string) (model.InteractionDelta, error)

	SearchInput(raw string) (model.SearchState, error)
	SearchSelect(s model.Suggestion) (model.SearchState, error)
	Search() (model.SearchState, error)

	Notifications() (model.NotificationState, error)
	MarkRead(id string) error
	MarkAllRead() error
	UpdatePreferences(p model.Preferences) error
	DeleteNotification(id string) error
	Visibility(visible bool) error
	Notices() ([]model.Notice, error)
}

// Mux handles control API requests.
type Mux struct {
	mux     *http.ServeMux   // HTTP request multiplexer
	e       Engine           // Engine being driven
	log     *slog.Logger     // Request logger
	tracer  trace.Tracer     // Tracer for request spans
	metrics *metrics.Metrics // Metrics for monitoring
}

// NewMux creates the control API handler.
// Parameters:
//   - e: Engine the endpoints drive
//   - log: Logger for request logs, default logger when nil
func NewMux(e Engine, log *slog.Logger) *http.ServeMux {
	if log == nil {
		log = slog.Default()
	}
	m := &Mux{
		mux:     http.NewServeMux(),
		e:       e,
		log:     log,
		tracer:  telemetry.Tracer("feedsync/server"),
		metrics: metrics.NewMetrics(),
	}

	// Health endpoints
	m.mux.HandleFunc("GET /healthz", m.handleHealthz)
	m.mux.HandleFunc("GET /readyz", m.handleReadyz)
	m.mux.Handle("GET /metrics", promhttp.Handler())

	// Feed and playback
	m.handle("GET /v1/feed", m.handleFeed)
	m.handle("POST /v1/feed/scroll", m.handleScroll)
	m.handle("POST /v1/feed/swipe", m.handleSwipe)
	m.handle("POST /v1/feed/touch", m.handleTouch)
	m.handle("POST /v1/feed/filters", m.handleFilters)
	m.handle("POST /v1/playback/toggle", m.handleTogglePlay)
	m.handle("POST /v1/playback/mute", m.handleToggleMute)
	m.handle("POST /v1/playback/{event}", m.handleMediaEvent)

	// Interactions
	m.handle("POST /v1/media/{id}/like", m.handleLike)
	m.handle("POST /v1/media/{id}/favorite", m.handleFavorite)
	m.handle("GET /v1/media/{id}/comments", m.handleExpandComments)
	m.handle("DELETE /v1/media/{id}/comments", m.handleCollapseComments)
	m.handle("POST /v1/media/{id}/comment", m.handlePostComment)
	m.handle("POST /v1/media/{id}/comment/{commentId}/reply", m.handlePostReply)
	m.handle("POST /v1/media/{id}/report", m.handleReport)
	m.handle("POST /v1/comments/{id}/like", m.handleLikeComment)
	m.handle("GET /v1/interactions", m.handleDeltas)

	// Search
	m.handle("POST /v1/search/input", m.handleSearchInput)
	m.handle("POST /v1/search/select", m.handleSearchSelect)
	m.handle("GET /v1/search", m.handleSearch)

	// Notifications
	m.handle("GET /v1/notifications", m.handleNotifications)
	m.handle("POST /v1/notifications/read-all", m.handleMarkAllRead)
	m.handle("POST /v1/notifications/{id}/read", m.handleMarkRead)
	m.handle("DELETE /v1/notifications/{id}", m.handleDeleteNotification)
	m.handle("PUT /v1/notifications/preferences", m.handlePreferences)
	m.handle("POST /v1/visibility", m.handleVisibility)
	m.handle("GET /v1/notices", m.handleNotices)

	return m.mux
}

// handle registers a handler behind the common middleware.
func (m *Mux) handle(pattern string, h func(w http.ResponseWriter, r *http.Request) error) {
	m.mux.HandleFunc(pattern, m.withMiddleware(pattern, h))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware adds correlation ids, a span, metrics and request logging,
// and turns handler errors into error responses.
func (m *Mux) withMiddleware(pattern string, h func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-Id", correlationID)

		ctx, span := m.tracer.Start(r.Context(), pattern)
		defer span.End()
		span.SetAttributes(attribute.String("correlation_id", correlationID))
		ctx = context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
		r = r.WithContext(ctx)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		err := h(rec, r)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errordefs.MessageOf(err))
			m.writeError(rec, err, correlationID)
		}

		status := strconv.Itoa(rec.status)
		duration := time.Since(start)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, pattern, status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern, status).Observe(duration.Seconds())
		m.logRequest(r, rec.status, duration, correlationID, err)
	}
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errordefs.Wrap(errordefs.KindBadRequest, "invalid JSON", err)
	}
	return nil
}

// writeSuccess writes a successful response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// accepted answers an operation that has no immediate result.
func accepted(w http.ResponseWriter) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// writeError writes an error response using the error kinds
func (m *Mux) writeError(w http.ResponseWriter, err error, correlationID string) {
	kind := errordefs.KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errordefs.HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":          kind,
			"message":       errordefs.MessageOf(err),
			"correlationId": correlationID,
		},
	})
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("correlation_id", correlationID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		m.log.LogAttrs(r.Context(), slog.LevelWarn, "request completed with error", attrs...)
		return
	}
	m.log.LogAttrs(r.Context(), slog.LevelDebug, "request completed", attrs...)
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports whether the engine loop and the snapshot store answer
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := m.e.Ready(ctx); err != nil {
		m.log.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
