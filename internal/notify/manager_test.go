package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/backend/mocks"
	errordefs "github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/errors"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/loop"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/storage"
)

type fakeConn struct {
	mu     sync.Mutex
	h      Handler
	sent   []Envelope
	closed bool
}

func (c *fakeConn) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, e := range c.sent {
		out[i] = e.Type
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) emit(t *testing.T, kind string, payload any) {
	t.Helper()
	env := Envelope{Type: kind, Version: EnvelopeVersion, CorrelationID: "test"}
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Payload = b
	}
	c.h.Event(env)
}

type fakeTransport struct {
	mu     sync.Mutex
	fail   int
	drop   int // Connections whose link dies before Connect returns
	tokens []string
	conns  []*fakeConn
}

func (f *fakeTransport) Connect(ctx context.Context, cred session.Credential, user string, h Handler) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, cred.Token())
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{h: h}
	f.conns = append(f.conns, c)
	if f.drop > 0 {
		f.drop--
		h.Disconnected(errors.New("EOF"))
	}
	return c, nil
}

func (f *fakeTransport) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func (f *fakeTransport) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

type harness struct {
	t         *testing.T
	loop      *loop.Loop
	backend   *mocks.MockBackend
	transport *fakeTransport
	store     storage.Store
	manager   *Manager
}

func newHarness(t *testing.T, clock clockwork.Clock, sess session.Session, store storage.Store) *harness {
	t.Helper()
	l, err := loop.New(loop.Options{Workers: 4, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(l.Close)

	h := &harness{
		t:         t,
		loop:      l,
		backend:   mocks.NewMockBackend(gomock.NewController(t)),
		transport: &fakeTransport{},
		store:     store,
	}
	h.manager, err = New(Config{
		Loop:      l,
		Backend:   h.backend,
		Transport: h.transport,
		Store:     store,
		Session:   sess,
	})
	require.NoError(t, err)
	return h
}

func signedIn() session.Session { return session.New("opaque-token", "viewer") }

func (h *harness) do(fn func()) {
	h.t.Helper()
	require.True(h.t, h.loop.Do(fn))
}

func (h *harness) state() (st model.NotificationState) {
	h.do(func() { st = h.manager.State() })
	return st
}

func (h *harness) waitConnected() *fakeConn {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.state().Connected }, 2*time.Second, 5*time.Millisecond)
	return h.transport.last()
}

func (h *harness) waitDisconnected() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		var pending bool
		h.do(func() { pending = h.manager.retry.Pending() })
		return pending && !h.state().Connected
	}, 2*time.Second, 5*time.Millisecond)
}

func rec(id string, read bool, at time.Time) map[string]any {
	return map[string]any{
		"notification_id":   id,
		"notification_type": "LIKE",
		"message":           "someone liked your video",
		"is_read":           read,
		"created_at":        at.Format(time.RFC3339),
	}
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStartFetchesAndConnects(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return([]model.NotificationRecord{
		{ID: "n1", Type: "LIKE", CreatedAt: t0},
	}, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()

	require.Equal(t, []string{CommandGetNotifications, CommandGetPreferences}, conn.sentTypes())
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, h.state().Unread)
	require.Equal(t, []string{"opaque-token"}, h.transport.tokens)
}

func TestAnonymousSessionStaysIdle(t *testing.T) {
	h := newHarness(t, nil, session.Anonymous(), nil)

	h.do(h.manager.Start)
	require.Never(t, func() bool { return h.transport.attempts() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	var err error
	h.do(func() { err = h.manager.MarkAllRead() })
	require.ErrorIs(t, err, ErrDisconnected)
	require.Equal(t, errordefs.KindUnavailable, errordefs.KindOf(err))
}

func TestDuplicateKeepsMostReadState(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return([]model.NotificationRecord{
		{ID: "n1", Read: true, CreatedAt: t0},
	}, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.emit(t, EventNewNotification, rec("n1", false, t0))
	conn.emit(t, EventNewNotification, rec("n2", false, t0.Add(time.Minute)))

	require.Eventually(t, func() bool { return len(h.state().Records) == 2 }, 2*time.Second, 5*time.Millisecond)
	st := h.state()
	require.Equal(t, "n2", st.Records[0].ID, "newest first")
	require.True(t, st.Records[1].Read, "a read record never reverts to unread")
	require.Equal(t, model.SourcePush, st.Records[1].Source)
	require.Equal(t, 1, st.Unread)
}

func TestPushEventsUpdateList(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()

	conn.emit(t, EventNotificationsList, map[string]any{"notifications": []any{
		rec("1", false, t0),
		rec("2", false, t0.Add(time.Minute)),
		rec("3", true, t0.Add(2*time.Minute)),
	}})
	require.Eventually(t, func() bool { return len(h.state().Records) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 2, h.state().Unread)
	require.Eventually(t, func() bool { return !h.state().Loading }, 2*time.Second, 5*time.Millisecond)

	// ids may arrive as numbers
	conn.emit(t, EventMarkedRead, map[string]any{"notificationId": 2})
	require.Eventually(t, func() bool { return h.state().Unread == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.emit(t, EventUnreadCount, map[string]any{"count": 7})
	require.Eventually(t, func() bool { return h.state().Unread == 7 }, 2*time.Second, 5*time.Millisecond)

	conn.emit(t, EventAllMarkedRead, nil)
	require.Eventually(t, func() bool { return h.state().Unread == 0 }, 2*time.Second, 5*time.Millisecond)
	for _, r := range h.state().Records {
		require.True(t, r.Read)
	}

	conn.emit(t, EventPreferences, map[string]any{"email_notifications": true})
	require.Eventually(t, func() bool { return h.state().Preferences["email_notifications"] == true }, 2*time.Second, 5*time.Millisecond)
}

func TestServerUnreadCountIsNotRecounted(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	release := make(chan struct{})
	h.backend.EXPECT().Notifications(gomock.Any()).DoAndReturn(func(context.Context) ([]model.NotificationRecord, error) {
		<-release
		return []model.NotificationRecord{{ID: "n1", CreatedAt: t0}}, nil
	})

	h.do(h.manager.Start)
	conn := h.waitConnected()

	conn.emit(t, EventUnreadCount, map[string]any{"count": 1})
	require.Eventually(t, func() bool { return h.state().Unread == 1 }, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, h.state().Unread)

	// the same record pushed again is a duplicate, a new one is counted
	conn.emit(t, EventNewNotification, rec("n1", false, t0))
	conn.emit(t, EventNewNotification, rec("n2", false, t0.Add(time.Minute)))
	require.Eventually(t, func() bool { return len(h.state().Records) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 2, h.state().Unread)

	conn.emit(t, EventNotificationsList, map[string]any{"notifications": []any{
		rec("n1", true, t0),
		rec("n3", false, t0.Add(2*time.Minute)),
	}})
	require.Eventually(t, func() bool { return len(h.state().Records) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, h.state().Unread, "n1 flipped to read; n3 is already in the server's count")
}

func TestInvalidEventsAreDropped(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()

	conn.emit(t, EventNewNotification, map[string]any{"message": "no id"})
	conn.emit(t, EventUnreadCount, map[string]any{"count": -1})
	conn.emit(t, "something_else", map[string]any{})
	conn.emit(t, EventNewNotification, rec("ok", false, t0))

	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	st := h.state()
	require.Equal(t, "ok", st.Records[0].ID)
	require.Equal(t, 1, st.Unread)
}

func TestReconnectBacksOffAndCatchesUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newHarness(t, clock, signedIn(), nil)
	h.transport.fail = 1
	// start fetch plus one catch-up after the reconnect; the first successful
	// connection is not a reconnect
	var fetches atomic.Int32
	h.backend.EXPECT().Notifications(gomock.Any()).DoAndReturn(func(context.Context) ([]model.NotificationRecord, error) {
		fetches.Add(1)
		return nil, nil
	}).Times(2)

	h.do(h.manager.Start)
	h.waitDisconnected()
	require.Equal(t, 1, h.transport.attempts())

	clock.Advance(DefaultReconnectInitial * 3 / 2)
	first := h.waitConnected()

	first.h.Disconnected(errors.New("EOF"))
	h.waitDisconnected()

	clock.Advance(DefaultReconnectInitial * 3 / 2)
	second := h.waitConnected()
	require.NotSame(t, first, second)
	require.Equal(t, 3, h.transport.attempts())

	// events from the dead connection are ignored
	first.emit(t, EventNewNotification, rec("ghost", false, t0))
	second.emit(t, EventNewNotification, rec("live", false, t0))
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "live", h.state().Records[0].ID)
	require.Eventually(t, func() bool { return fetches.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestVisibilityReconnectsImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newHarness(t, clock, signedIn(), nil)
	var fetches atomic.Int32
	h.backend.EXPECT().Notifications(gomock.Any()).DoAndReturn(func(context.Context) ([]model.NotificationRecord, error) {
		fetches.Add(1)
		return nil, nil
	}).Times(2)

	h.do(h.manager.Start)
	conn := h.waitConnected()
	conn.h.Disconnected(errors.New("network changed"))
	h.waitDisconnected()

	h.do(func() { h.manager.Visibility(false) })
	require.Equal(t, 1, h.transport.attempts())

	h.do(func() { h.manager.Visibility(true) })
	h.waitConnected()
	require.Equal(t, 2, h.transport.attempts())

	var pending bool
	h.do(func() { pending = h.manager.retry.Pending() })
	require.False(t, pending)
	require.Eventually(t, func() bool { return fetches.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestLinkLostWhileConnectingIsNotAdopted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newHarness(t, clock, signedIn(), nil)
	h.transport.drop = 1
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	h.waitDisconnected()
	require.Equal(t, 1, h.transport.attempts())
	dead := h.transport.last()
	require.True(t, dead.isClosed())

	h.do(func() { h.manager.Visibility(true) })
	live := h.waitConnected()
	require.NotSame(t, dead, live)
	require.Equal(t, 2, h.transport.attempts())
	require.False(t, live.isClosed())
	require.Equal(t, []string{CommandGetNotifications, CommandGetPreferences}, live.sentTypes())
	require.Empty(t, dead.sentTypes())
}

func TestCommandsAreSentAsEnvelopes(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()

	h.do(func() {
		require.NoError(t, h.manager.MarkRead("n9"))
		require.NoError(t, h.manager.MarkAllRead())
		require.NoError(t, h.manager.UpdatePreferences(model.Preferences{"like_notifications": false}))
	})

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.sent, 5)
	markRead := conn.sent[2]
	require.Equal(t, CommandMarkRead, markRead.Type)
	require.Equal(t, EnvelopeVersion, markRead.Version)
	require.NotEmpty(t, markRead.CorrelationID)
	require.JSONEq(t, `{"notificationId":"n9"}`, string(markRead.Payload))
	require.Equal(t, CommandMarkAllRead, conn.sent[3].Type)
	require.Empty(t, conn.sent[3].Payload)
	require.JSONEq(t, `{"like_notifications":false}`, string(conn.sent[4].Payload))
}

func TestDeleteRemovesRecord(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return([]model.NotificationRecord{
		{ID: "a", CreatedAt: t0}, {ID: "b", CreatedAt: t0.Add(time.Second)},
	}, nil)
	h.backend.EXPECT().DeleteNotification(gomock.Any(), "a").Return(nil)

	h.do(h.manager.Start)
	require.Eventually(t, func() bool { return len(h.state().Records) == 2 }, 2*time.Second, 5*time.Millisecond)

	h.do(func() { h.manager.Delete("a") })
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, "b", h.state().Records[0].ID)
	require.Equal(t, 1, h.state().Unread)
}

func TestCloseTearsDown(t *testing.T) {
	h := newHarness(t, nil, signedIn(), nil)
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()

	h.do(h.manager.Close)
	require.True(t, conn.isClosed())
	require.False(t, h.state().Connected)

	conn.emit(t, EventNewNotification, rec("late", false, t0))
	conn.h.Disconnected(nil)
	require.Never(t, func() bool {
		var pending bool
		h.do(func() { pending = h.manager.retry.Pending() })
		return len(h.state().Records) > 0 || pending
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestSnapshotSeedsAndPersists(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.SaveSnapshot(context.Background(), "viewer", storage.Snapshot{
		Records: []model.NotificationRecord{{ID: "old", Read: true, CreatedAt: t0}},
	}))

	h := newHarness(t, nil, signedIn(), store)
	h.backend.EXPECT().Notifications(gomock.Any()).Return(nil, nil)

	h.do(h.manager.Start)
	conn := h.waitConnected()
	require.Eventually(t, func() bool { return len(h.state().Records) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, model.SourceSnapshot, h.state().Records[0].Source)

	conn.emit(t, EventNewNotification, rec("new", false, t0.Add(time.Hour)))
	require.Eventually(t, func() bool {
		snap, err := store.LoadSnapshot(context.Background(), "viewer")
		return err == nil && len(snap.Records) == 2 && snap.Unread == 1
	}, 2*time.Second, 10*time.Millisecond)
}
