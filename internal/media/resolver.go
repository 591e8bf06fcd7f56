package media

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// Resolver picks the URL a renderer should load for a media item.
type Resolver struct {
	presigner  Presigner // Optional, nil when object storage is not configured
	publicBase string    // Base URL of public buckets, may be empty
	ttl        time.Duration
	log        *slog.Logger
}

// NewResolver creates a resolver. presigner may be nil.
func NewResolver(presigner Presigner, publicBase string, ttl time.Duration, log *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		presigner:  presigner,
		publicBase: strings.TrimRight(publicBase, "/"),
		ttl:        ttl,
		log:        log,
	}
}

// Resolve returns the playable URL of an item, or "" when it has no source.
// The backend's signed URL is used as-is; otherwise the file path is
// presigned in the kind's bucket, falling back to the public bucket URL.
func (r *Resolver) Resolve(ctx context.Context, item model.MediaItem) string {
	if item.Source.SignedURL != "" {
		return item.Source.SignedURL
	}
	if item.Source.FilePath == "" || item.Kind == nil {
		return ""
	}

	bucket := item.Kind.Bucket()
	if r.presigner != nil {
		u, err := r.presigner.PresignGet(ctx, bucket, item.Source.FilePath, r.ttl)
		if err == nil {
			return u
		}
		r.log.Warn("presign failed, using public url", "media_id", item.ID, "error", err)
	}
	if r.publicBase == "" {
		return ""
	}
	return r.publicBase + "/" + bucket + "/" + url.PathEscape(item.Source.FilePath)
}

// Apply resolves the source URL of every item in place.
func (r *Resolver) Apply(ctx context.Context, items []model.MediaItem) {
	for i := range items {
		items[i].Source.URL = r.Resolve(ctx, items[i])
	}
}
