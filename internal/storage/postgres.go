// internal/storage/postgres.go
// PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// postgres keeps one snapshot row per user.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
// Parameters:
//   - ctx: Bounds connection setup and schema initialization
//   - dsn: Database connection string in PostgreSQL format
//
// Returns:
//   - Store: Implementation of the storage interface
//   - error: Any error that occurred during initialization
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// One writer per user session; a small pool is enough
	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema creates the snapshot table if it does not exist yet.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Latest notification list per user
		CREATE TABLE IF NOT EXISTS notification_snapshots (
		    user_id TEXT PRIMARY KEY,
		    records JSONB NOT NULL,                  -- Merged notification records
		    unread INTEGER NOT NULL DEFAULT 0,       -- Unread count at save time
		    preferences JSONB,                       -- Opaque notification preferences
		    saved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

// Ping checks connectivity to the database
func (p *postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// LoadSnapshot retrieves the snapshot of a user
func (p *postgres) LoadSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	query := `SELECT records, unread, preferences, saved_at FROM notification_snapshots WHERE user_id = $1`

	var (
		snap      Snapshot
		records   []byte
		prefsJSON []byte
	)
	err := p.db.QueryRow(ctx, query, userID).Scan(&records, &snap.Unread, &prefsJSON, &snap.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err := json.Unmarshal(records, &snap.Records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot records: %w", err)
	}
	if len(prefsJSON) > 0 {
		var prefs model.Preferences
		if err := json.Unmarshal(prefsJSON, &prefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot preferences: %w", err)
		}
		snap.Preferences = prefs
	}
	return &snap, nil
}

// SaveSnapshot inserts or replaces the snapshot of a user
func (p *postgres) SaveSnapshot(ctx context.Context, userID string, snap Snapshot) error {
	if snap.Records == nil {
		snap.Records = []model.NotificationRecord{}
	}
	records, err := json.Marshal(snap.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot records: %w", err)
	}
	var prefsJSON []byte
	if snap.Preferences != nil {
		if prefsJSON, err = json.Marshal(snap.Preferences); err != nil {
			return fmt.Errorf("failed to marshal snapshot preferences: %w", err)
		}
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	query := `INSERT INTO notification_snapshots (user_id, records, unread, preferences, saved_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id) DO UPDATE
	          SET records = $2, unread = $3, preferences = $4, saved_at = $5`

	if _, err := p.db.Exec(ctx, query, userID, records, snap.Unread, prefsJSON, snap.SavedAt); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes the snapshot of a user
func (p *postgres) DeleteSnapshot(ctx context.Context, userID string) error {
	result, err := p.db.Exec(ctx, `DELETE FROM notification_snapshots WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
