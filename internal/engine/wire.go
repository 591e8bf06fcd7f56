package engine

import (
	"context"
	"log/slog"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/config"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/media"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/notify"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/storage"
)

// FromConfig builds an Engine with the production collaborators the
// configuration asks for: the REST client, S3 presigning when object storage
// is configured, the NATS push channel when a server URL is set, and
// PostgreSQL snapshots when a DSN is set (in-memory otherwise).
func FromConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	sess := session.New(cfg.Token, cfg.UserID)

	opts := Options{
		Config:  cfg,
		Session: sess,
		Logger:  log,
		Backend: backend.New(cfg.BackendURL, sess.Credential,
			backend.WithTimeout(cfg.RequestTimeout),
			backend.WithRateLimit(cfg.RequestRate, max(1, int(cfg.RequestRate))),
			backend.WithSuggestionLimit(cfg.SuggestionLimit),
			backend.WithLogger(log.With("component", "backend")),
		),
	}

	if cfg.S3Enabled() {
		p, err := media.NewS3Presigner(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return nil, err
		}
		opts.Presigner = p
	}

	if cfg.NATSURL != "" {
		opts.Transport = notify.NewNATSTransport(cfg.NATSURL, cfg.PushSubject, log.With("component", "push"))
	} else {
		log.Info("push channel disabled, notifications use REST only")
	}

	if cfg.DatabaseDSN != "" {
		store, err := storage.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		opts.Store = store
	} else {
		opts.Store = storage.NewMemory()
	}

	e, err := New(opts)
	if err != nil {
		opts.Store.Close()
		return nil, err
	}
	log.Info("engine configured",
		"user", sess.User,
		"authenticated", sess.Credential.Token() != "",
		"s3", cfg.S3Enabled(),
		"push", cfg.NATSURL != "",
		"postgres", cfg.DatabaseDSN != "",
	)
	return e, nil
}
