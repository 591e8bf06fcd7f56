// internal/notify/manager.go
// Package notify keeps the viewer's notification list current.
//
// The Manager merges three sources into one list keyed by notification id:
// the persisted snapshot, REST fetches and push channel events. A record
// seen more than once keeps the most read state observed. The push channel
// is reconnected with exponential backoff, and immediately when the view
// becomes visible again. All methods are loop-confined.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/metrics"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/storage"
)

// Defaults for the reconnect policy and snapshot writes.
const (
	DefaultReconnectInitial = time.Second
	DefaultReconnectMax     = 30 * time.Second
	SaveDelay               = 250 * time.Millisecond
	connectTimeout          = 10 * time.Second
	storeTimeout            = 5 * time.Second
)

// ErrDisconnected is returned by commands while the push channel is down.
var ErrDisconnected = errordefs.New(errordefs.KindUnavailable, "notification channel disconnected")

// Config holds the Manager's collaborators.
type Config struct {
	Loop      *loop.Loop
	Backend   backend.Backend
	Transport Transport     // Optional; without it only REST is used
	Store     storage.Store // Optional
	Validator *Validator    // Optional; a default one is compiled when nil
	Session   session.Session
	Notices   model.NoticeSink // Optional
	Logger    *slog.Logger

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// Manager is the notification channel manager.
type Manager struct {
	loop      *loop.Loop
	backend   backend.Backend
	transport Transport
	store     storage.Store
	validator *Validator
	sess      session.Session
	notices   model.NoticeSink
	log       *slog.Logger
	metrics   *metrics.Metrics

	records     []model.NotificationRecord // Newest first
	unread      int
	serverCount bool // unread was set by an unread_count event
	prefs       model.Preferences
	loading     bool

	conn       Conn
	connecting bool
	connected  bool
	dropped    bool   // The pending attempt's link died before it was adopted
	everUp     bool   // A connection succeeded at least once
	epoch      uint64 // Bumped per connection attempt; events of older attempts are dropped
	bo         *backoff.ExponentialBackOff
	retry      *loop.Timer
	saver      *loop.Debouncer
	started    bool
	closed     bool
}

// New creates a Manager. Start opens the channel.
func New(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notices == nil {
		cfg.Notices = func(model.Notice) {}
	}
	if cfg.Validator == nil {
		v, err := NewValidator()
		if err != nil {
			return nil, err
		}
		cfg.Validator = v
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = DefaultReconnectInitial
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = max(DefaultReconnectMax, cfg.ReconnectInitial)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectInitial
	bo.MaxInterval = cfg.ReconnectMax
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0.5
	bo.Multiplier = 2
	bo.Clock = cfg.Loop.Clock()
	bo.Reset()

	return &Manager{
		loop:      cfg.Loop,
		backend:   cfg.Backend,
		transport: cfg.Transport,
		store:     cfg.Store,
		validator: cfg.Validator,
		sess:      cfg.Session,
		notices:   cfg.Notices,
		log:       cfg.Logger,
		metrics:   metrics.NewMetrics(),
		records:   []model.NotificationRecord{},
		bo:        bo,
		saver:     loop.NewDebouncer(cfg.Loop, SaveDelay),
	}, nil
}

// State returns the observable notification state.
func (m *Manager) State() model.NotificationState {
	return model.NotificationState{
		Records:     append([]model.NotificationRecord{}, m.records...),
		Unread:      m.unread,
		Connected:   m.connected,
		Loading:     m.loading,
		Preferences: m.prefs,
	}
}

// Start seeds the list from the stored snapshot, issues the REST fetch and
// opens the push channel. Without an authenticated session it does nothing.
func (m *Manager) Start() {
	if m.started || m.closed {
		return
	}
	if !m.sess.Authenticated(m.now()) {
		m.log.Info("notifications disabled without credential")
		return
	}
	m.started = true
	m.loadSnapshot()
	m.fetchREST()
	m.connect()
}

// Visibility reports whether the owning view is visible. Regaining
// visibility while disconnected reconnects at once.
func (m *Manager) Visibility(visible bool) {
	if !visible || !m.started || m.closed || m.conn != nil || m.connecting {
		return
	}
	m.log.Info("view visible again, reconnecting push channel")
	m.retry.Stop()
	m.retry = nil
	m.bo.Reset()
	m.connect()
}

// MarkRead asks the server to mark one notification read. The local record
// changes when the server confirms with an event.
func (m *Manager) MarkRead(id string) error {
	return m.send(CommandMarkRead, map[string]string{"notificationId": id})
}

// MarkAllRead asks the server to mark every notification read.
func (m *Manager) MarkAllRead() error {
	return m.send(CommandMarkAllRead, nil)
}

// UpdatePreferences sends new notification preferences.
func (m *Manager) UpdatePreferences(p model.Preferences) error {
	return m.send(CommandUpdatePreferences, p)
}

// Delete removes a notification through REST and drops it locally on success.
func (m *Manager) Delete(id string) {
	loop.Async(m.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.backend.DeleteNotification(ctx, id)
	}, func(_ struct{}, err error) {
		if err != nil {
			m.log.Warn("failed to delete notification", "id", id, "error", err)
			m.notices(model.Notice{Level: model.NoticeError, Text: "Error: " + errordefs.MessageOf(err), At: m.now()})
			return
		}
		m.remove(id)
	})
}

// Close tears the channel down and writes the final snapshot. Events that
// arrive afterwards are ignored.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.epoch++
	m.retry.Stop()
	m.retry = nil
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.setConnected(false)

	if m.saver.Pending() {
		m.saver.Cancel()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		m.saveNow(ctx)
	}
}

func (m *Manager) send(kind string, payload any) error {
	if m.conn == nil {
		return ErrDisconnected
	}
	env, err := NewCommand(kind, payload, m.now())
	if err != nil {
		return errordefs.Wrap(errordefs.KindInternal, "encode command", err)
	}
	if err := m.conn.Send(env); err != nil {
		return errordefs.Wrap(errordefs.KindNetwork, "send "+kind, err)
	}
	return nil
}

func (m *Manager) connect() {
	if m.transport == nil || m.closed || m.conn != nil || m.connecting {
		return
	}
	m.connecting = true
	m.dropped = false
	m.epoch++
	epoch := m.epoch

	h := Handler{
		Event: func(env Envelope) {
			m.loop.Post(func() { m.onEvent(epoch, env) })
		},
		Disconnected: func(err error) {
			m.loop.Post(func() { m.onDisconnect(epoch, err) })
		},
	}
	cred, user := m.sess.Credential, m.sess.User

	loop.Async(m.loop, func(ctx context.Context) (Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		c, err := m.transport.Connect(ctx, cred, user, h)
		if err == nil && ctx.Err() != nil {
			c.Close()
			return nil, ctx.Err()
		}
		return c, err
	}, func(c Conn, err error) {
		m.connecting = false
		if m.closed || epoch != m.epoch {
			if c != nil {
				c.Close()
			}
			return
		}
		if err != nil {
			m.log.Warn("push channel connect failed", "error", err)
			m.scheduleReconnect()
			return
		}
		if m.dropped {
			m.dropped = false
			c.Close()
			m.log.Warn("push channel dropped while connecting")
			m.scheduleReconnect()
			return
		}

		m.conn = c
		m.setConnected(true)
		m.bo.Reset()
		m.log.Info("push channel connected", "user", user)

		m.loading = true
		for _, kind := range []string{CommandGetNotifications, CommandGetPreferences} {
			if err := m.send(kind, nil); err != nil {
				m.log.Warn("failed to request initial data", "command", kind, "error", err)
			}
		}
		if m.everUp {
			// events sent while we were away are only available through REST
			m.fetchREST()
		}
		m.everUp = true
	})
}

func (m *Manager) onDisconnect(epoch uint64, err error) {
	if epoch != m.epoch || m.closed {
		return
	}
	if m.connecting {
		// the attempt's continuation has not run yet and must not adopt the link
		m.dropped = true
		return
	}
	m.log.Warn("push channel disconnected", "error", err)
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.setConnected(false)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	if m.closed || m.retry.Pending() {
		return
	}
	d := m.bo.NextBackOff()
	if d == backoff.Stop {
		d = m.bo.MaxInterval
	}
	m.metrics.PushReconnectTotal.Inc()
	m.log.Debug("push channel reconnect scheduled", "in", d)
	m.retry = m.loop.AfterFunc(d, func() {
		m.retry = nil
		m.connect()
	})
}

func (m *Manager) setConnected(up bool) {
	m.connected = up
	if up {
		m.metrics.PushConnected.Set(1)
	} else {
		m.metrics.PushConnected.Set(0)
	}
}

func (m *Manager) onEvent(epoch uint64, env Envelope) {
	if epoch != m.epoch || m.closed {
		return
	}
	if err := m.validator.Validate(env.Type, env.Payload); err != nil {
		m.log.Warn("dropping invalid push event", "type", env.Type, "correlation_id", env.CorrelationID, "error", err)
		m.metrics.PushEventTotal.WithLabelValues(env.Type, "invalid").Inc()
		return
	}
	if err := m.apply(env); err != nil {
		m.log.Warn("dropping undecodable push event", "type", env.Type, "correlation_id", env.CorrelationID, "error", err)
		m.metrics.PushEventTotal.WithLabelValues(env.Type, "invalid").Inc()
		return
	}
	m.metrics.PushEventTotal.WithLabelValues(env.Type, "ok").Inc()
}

var errUnknownEvent = errors.New("unknown event type")

func (m *Manager) apply(env Envelope) error {
	switch env.Type {
	case EventNewNotification:
		rec, err := backend.DecodeNotification(env.Payload, model.SourcePush)
		if err != nil {
			return err
		}
		m.merge([]model.NotificationRecord{rec}, true)

	case EventUnreadCount:
		var p struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		m.unread = p.Count
		m.serverCount = true

	case EventNotificationsList:
		var p struct {
			Notifications json.RawMessage `json:"notifications"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		recs, err := backend.DecodeNotifications(p.Notifications, model.SourcePush)
		if err != nil {
			return err
		}
		m.merge(recs, false)
		m.loading = false

	case EventMarkedRead:
		var p struct {
			NotificationID json.RawMessage `json:"notificationId"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		m.markRead(idString(p.NotificationID))

	case EventAllMarkedRead:
		for i := range m.records {
			m.records[i].Read = true
		}
		m.unread = 0

	case EventPreferences, EventPreferencesUpdated:
		var p model.Preferences
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		m.prefs = p

	case EventError:
		m.log.Warn("push channel reported an error", "payload", string(env.Payload))
		return nil

	default:
		return errUnknownEvent
	}
	m.scheduleSave()
	return nil
}

// merge folds records into the list by id. A known record keeps the most
// read state observed and lowers the unread count when it flips to read.
// New unread records raise the count when pushed one by one, or when no
// unread_count event has set it yet; bulk lists never recount what the
// server already counted.
func (m *Manager) merge(recs []model.NotificationRecord, pushed bool) {
	index := make(map[string]int, len(m.records))
	for i, r := range m.records {
		index[r.ID] = i
	}

	added := false
	for _, r := range recs {
		if r.ID == "" {
			continue
		}
		i, ok := index[r.ID]
		if !ok {
			index[r.ID] = len(m.records)
			m.records = append(m.records, r)
			if !r.Read && (pushed || !m.serverCount) {
				m.unread++
			}
			added = true
			continue
		}

		m.metrics.NotificationDedup.Inc()
		old := m.records[i]
		r.Read = old.Read || r.Read
		if r.Read && !old.Read && m.unread > 0 {
			m.unread--
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = old.CreatedAt
		}
		m.records[i] = r
	}

	if added {
		sort.SliceStable(m.records, func(i, j int) bool {
			return m.records[i].CreatedAt.After(m.records[j].CreatedAt)
		})
	}
}

func (m *Manager) markRead(id string) {
	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		if !m.records[i].Read {
			m.records[i].Read = true
			if m.unread > 0 {
				m.unread--
			}
		}
		return
	}
}

func (m *Manager) remove(id string) {
	for i, r := range m.records {
		if r.ID != id {
			continue
		}
		m.records = append(m.records[:i], m.records[i+1:]...)
		if !r.Read && m.unread > 0 {
			m.unread--
		}
		m.scheduleSave()
		return
	}
}

func (m *Manager) fetchREST() {
	m.loading = true
	loop.Async(m.loop, func(ctx context.Context) ([]model.NotificationRecord, error) {
		return m.backend.Notifications(ctx)
	}, func(recs []model.NotificationRecord, err error) {
		if m.closed {
			return
		}
		m.loading = false
		if err != nil {
			m.log.Warn("failed to fetch notifications via REST", "error", err)
			return
		}
		m.merge(recs, false)
		m.scheduleSave()
	})
}

func (m *Manager) loadSnapshot() {
	if m.store == nil {
		return
	}
	user := m.sess.User
	loop.Async(m.loop, func(ctx context.Context) (*storage.Snapshot, error) {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		return m.store.LoadSnapshot(ctx, user)
	}, func(snap *storage.Snapshot, err error) {
		if m.closed {
			return
		}
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				m.log.Warn("failed to load notification snapshot", "error", err)
			}
			return
		}
		recs := make([]model.NotificationRecord, len(snap.Records))
		for i, r := range snap.Records {
			r.Source = model.SourceSnapshot
			recs[i] = r
		}
		m.merge(recs, false)
		if m.prefs == nil {
			m.prefs = snap.Preferences
		}
	})
}

func (m *Manager) scheduleSave() {
	if m.store == nil || m.closed {
		return
	}
	m.saver.Trigger(func() {
		snap := m.snapshot()
		user := m.sess.User
		loop.Async(m.loop, func(ctx context.Context) (struct{}, error) {
			ctx, cancel := context.WithTimeout(ctx, storeTimeout)
			defer cancel()
			return struct{}{}, m.save(ctx, user, snap)
		}, func(_ struct{}, err error) {
			if err != nil {
				m.log.Warn("failed to save notification snapshot", "error", err)
			}
		})
	})
}

func (m *Manager) saveNow(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.save(ctx, m.sess.User, m.snapshot()); err != nil {
		m.log.Warn("failed to save notification snapshot", "error", err)
	}
}

func (m *Manager) save(ctx context.Context, user string, snap storage.Snapshot) error {
	start := time.Now()
	err := m.store.SaveSnapshot(ctx, user, snap)
	outcome := metrics.Outcome(err)
	m.metrics.StorageOperationTotal.WithLabelValues("save_snapshot", outcome).Inc()
	m.metrics.StorageOperationDuration.WithLabelValues("save_snapshot", outcome).Observe(time.Since(start).Seconds())
	return err
}

func (m *Manager) snapshot() storage.Snapshot {
	return storage.Snapshot{
		Records:     append([]model.NotificationRecord{}, m.records...),
		Unread:      m.unread,
		Preferences: m.prefs,
		SavedAt:     m.now().UTC(),
	}
}

func (m *Manager) now() time.Time { return m.loop.Clock().Now() }
