// internal/backend/client.go
// Package backend provides a client for the media REST backend.
// Every failure it returns is classified into an error kind from
// internal/errors; callers never inspect HTTP details.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/metrics"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/telemetry"
)

// Backend is the REST contract the engine consumes.
//
//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=mocks/mock.go -package=mocks
type Backend interface {
	ListMedia(ctx context.Context, f model.Filters) (model.MediaPage, error)
	Comments(ctx context.Context, mediaID string) ([]model.Comment, error)
	SetLike(ctx context.Context, mediaID string) error
	UnsetLike(ctx context.Context, mediaID string) error
	SetFavorite(ctx context.Context, mediaID string) error
	UnsetFavorite(ctx context.Context, mediaID string) error
	PostComment(ctx context.Context, mediaID, text string) error
	PostReply(ctx context.Context, mediaID, commentID, text string) error
	LikeComment(ctx context.Context, commentID string) error
	ReportMedia(ctx context.Context, mediaID, reason string) error
	Suggestions(ctx context.Context, query string, mediaType model.MediaType) ([]model.Suggestion, error)
	Notifications(ctx context.Context) ([]model.NotificationRecord, error)
	DeleteNotification(ctx context.Context, id string) error
	LikedMediaIDs(ctx context.Context) ([]string, error)
	FavoritedMediaIDs(ctx context.Context) ([]string, error)
}

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// DefaultSuggestionLimit is the number of suggestions requested per lookup.
const DefaultSuggestionLimit = 8

// Client talks to the media backend over HTTP.
type Client struct {
	base    string             // Base URL including the /api prefix
	hc      *http.Client       // HTTP client with custom configuration
	cred    session.Credential // Bearer credential, may be empty
	limiter *rate.Limiter      // Client-side request pacing
	log     *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	limit   int // Suggestion limit
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithRateLimit paces requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithSuggestionLimit sets the maximum number of suggestions requested.
func WithSuggestionLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithClock sets the time source used for local credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a backend client.
// Parameters:
//   - baseURL: Backend origin; the /api prefix is appended
//   - cred: Session credential sent as a bearer token
//   - opts: Optional overrides
//
// Returns:
//   - *Client: Initialized backend client
func New(baseURL string, cred session.Credential, opts ...Option) *Client {
	// Configure HTTP transport with connection timeouts
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		base:    strings.TrimRight(baseURL, "/") + "/api",
		hc:      &http.Client{Transport: transport, Timeout: 10 * time.Second},
		cred:    cred,
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     slog.Default(),
		metrics: metrics.NewMetrics(),
		tracer:  telemetry.Tracer("feedsync/backend"),
		now:     time.Now,
		limit:   DefaultSuggestionLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one backend request.
type call struct {
	endpoint string // Metric and span name
	method   string
	path     string
	query    url.Values
	body     any
	auth     bool // Requires a valid credential
	out      any  // Decoded on success when non-nil
}

// do executes a call and classifies its outcome.
func (c *Client) do(ctx context.Context, cl call) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errordefs.KindOf(err))
		}
		c.metrics.BackendRequestTotal.WithLabelValues(cl.endpoint, outcome).Inc()
		c.metrics.BackendRequestDuration.WithLabelValues(cl.endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	// Missing or expired credentials never reach the network
	if cl.auth && !c.cred.Valid(c.now()) {
		return errordefs.Wrap(errordefs.KindUnauthorized, "authentication required", session.ErrMissingCredential)
	}

	ctx, span := c.tracer.Start(ctx, "backend."+cl.endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("http.route", cl.path),
		attribute.String("request.id", requestID),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, errordefs.MessageOf(err))
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return errordefs.Wrap(errordefs.KindNetwork, "request cancelled", err)
	}

	u := c.base + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return errordefs.Wrap(errordefs.KindInternal, "encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return errordefs.Wrap(errordefs.KindInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.cred.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("backend request failed", "endpoint", cl.endpoint, "request_id", requestID, "error", err)
		return errordefs.Wrap(errordefs.KindNetwork, "network error, please try again", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	// Handle different response status codes
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er)
		msg := er.Error
		if msg == "" {
			msg = er.Message
		}
		c.log.Debug("backend rejected request",
			"endpoint", cl.endpoint,
			"status", resp.StatusCode,
			"request_id", requestID,
			"message", msg)
		return errordefs.FromStatus(resp.StatusCode, msg, requestID)
	}

	if cl.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil && !errors.Is(err, io.EOF) {
		return errordefs.Wrap(errordefs.KindServer, "malformed response", err)
	}
	return nil
}

// ListMedia fetches one feed page.
func (c *Client) ListMedia(ctx context.Context, f model.Filters) (model.MediaPage, error) {
	q := url.Values{}
	for k, v := range f.Extra {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("limit", strconv.Itoa(f.Limit))
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.MediaType != "" {
		q.Set("media_type", string(f.MediaType))
	}

	var resp mediaListResponse
	if err := c.do(ctx, call{endpoint: "list_media", method: http.MethodGet, path: "/media", query: q, out: &resp}); err != nil {
		return model.MediaPage{}, err
	}

	page := model.MediaPage{Items: make([]model.MediaItem, 0, len(resp.Media))}
	if resp.Total != nil {
		page.Total = int(*resp.Total)
	}
	for _, d := range resp.Media {
		item, err := d.toModel()
		if err != nil {
			c.log.Warn("skipping media item", "media_id", string(d.MediaID), "error", err)
			continue
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// Comments fetches the comment tree of a media item.
func (c *Client) Comments(ctx context.Context, mediaID string) ([]model.Comment, error) {
	var resp commentsResponse
	if err := c.do(ctx, call{
		endpoint: "comments",
		method:   http.MethodGet,
		path:     "/media/" + url.PathEscape(mediaID) + "/comments",
		out:      &resp,
	}); err != nil {
		return nil, err
	}
	out := make([]model.Comment, 0, len(resp.Comments))
	for _, d := range resp.Comments {
		out = append(out, d.toModel())
	}
	return out, nil
}

// SetLike likes a media item.
func (c *Client) SetLike(ctx context.Context, mediaID string) error {
	return c.toggle(ctx, "like", http.MethodPost, mediaID, "like")
}

// UnsetLike removes a like.
func (c *Client) UnsetLike(ctx context.Context, mediaID string) error {
	return c.toggle(ctx, "unlike", http.MethodDelete, mediaID, "like")
}

// SetFavorite favorites a media item.
func (c *Client) SetFavorite(ctx context.Context, mediaID string) error {
	return c.toggle(ctx, "favorite", http.MethodPost, mediaID, "favorite")
}

// UnsetFavorite removes a favorite.
func (c *Client) UnsetFavorite(ctx context.Context, mediaID string) error {
	return c.toggle(ctx, "unfavorite", http.MethodDelete, mediaID, "favorite")
}

func (c *Client) toggle(ctx context.Context, endpoint, method, mediaID, resource string) error {
	return c.do(ctx, call{
		endpoint: endpoint,
		method:   method,
		path:     "/media/" + url.PathEscape(mediaID) + "/" + resource,
		auth:     true,
	})
}

// PostComment adds a top-level comment.
func (c *Client) PostComment(ctx context.Context, mediaID, text string) error {
	return c.do(ctx, call{
		endpoint: "comment",
		method:   http.MethodPost,
		path:     "/media/" + url.PathEscape(mediaID) + "/comment",
		body:     map[string]string{"comment_text": text},
		auth:     true,
	})
}

// PostReply replies to a comment.
func (c *Client) PostReply(ctx context.Context, mediaID, commentID, text string) error {
	return c.do(ctx, call{
		endpoint: "reply",
		method:   http.MethodPost,
		path:     "/media/" + url.PathEscape(mediaID) + "/comment/" + url.PathEscape(commentID) + "/reply",
		body:     map[string]string{"reply_text": text},
		auth:     true,
	})
}

// LikeComment likes a comment or reply.
func (c *Client) LikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, call{
		endpoint: "comment_like",
		method:   http.MethodPost,
		path:     "/media/comment/" + url.PathEscape(commentID) + "/like",
		auth:     true,
	})
}

// ReportMedia flags a media item for moderation.
func (c *Client) ReportMedia(ctx context.Context, mediaID, reason string) error {
	return c.do(ctx, call{
		endpoint: "report",
		method:   http.MethodPost,
		path:     "/media/" + url.PathEscape(mediaID) + "/report",
		body:     map[string]string{"reason": reason},
		auth:     true,
	})
}

// Suggestions looks up search suggestions for a query.
func (c *Client) Suggestions(ctx context.Context, query string, mediaType model.MediaType) ([]model.Suggestion, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))
	if mediaType != "" {
		q.Set("media_type", string(mediaType))
	}

	var resp suggestionsResponse
	if err := c.do(ctx, call{
		endpoint: "suggestions",
		method:   http.MethodGet,
		path:     "/media/search/suggestions",
		query:    q,
		out:      &resp,
	}); err != nil {
		return nil, err
	}
	out := make([]model.Suggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		out = append(out, model.Suggestion{ID: string(s.ID), Title: s.Title, Type: s.Type})
	}
	return out, nil
}

// Notifications fetches the viewer's notification list.
func (c *Client) Notifications(ctx context.Context) ([]model.NotificationRecord, error) {
	var resp notificationsResponse
	if err := c.do(ctx, call{
		endpoint: "notifications",
		method:   http.MethodGet,
		path:     "/media/notifications",
		auth:     true,
		out:      &resp,
	}); err != nil {
		return nil, err
	}
	out := make([]model.NotificationRecord, 0, len(resp.Notifications))
	for _, d := range resp.Notifications {
		out = append(out, d.toRecord(model.SourceREST))
	}
	return out, nil
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, call{
		endpoint: "delete_notification",
		method:   http.MethodDelete,
		path:     "/notifications/" + url.PathEscape(id),
		auth:     true,
	})
}

// LikedMediaIDs lists the media the viewer has liked.
func (c *Client) LikedMediaIDs(ctx context.Context) ([]string, error) {
	var resp likedResponse
	if err := c.do(ctx, call{endpoint: "liked", method: http.MethodGet, path: "/media/liked", auth: true, out: &resp}); err != nil {
		return nil, err
	}
	return ids(resp.LikedMediaIDs), nil
}

// FavoritedMediaIDs lists the media the viewer has favorited.
func (c *Client) FavoritedMediaIDs(ctx context.Context) ([]string, error) {
	var resp favoritedResponse
	if err := c.do(ctx, call{endpoint: "favorited", method: http.MethodGet, path: "/media/favorites", auth: true, out: &resp}); err != nil {
		return nil, err
	}
	return ids(resp.FavoritedMediaIDs), nil
}

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("backend(%s)", c.base)
}
