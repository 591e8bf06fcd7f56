// internal/notify/transport.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/session"
)

// Handler receives what a connection delivers. Callbacks run on transport
// goroutines and must not block.
type Handler struct {
	Event        func(Envelope)
	Disconnected func(error)
}

// Transport opens push channel connections.
type Transport interface {
	// Connect opens an authenticated connection for user.
	// Disconnected is called at most once per connection.
	Connect(ctx context.Context, cred session.Credential, user string, h Handler) (Conn, error)
}

// Conn is an open push channel connection.
type Conn interface {
	// Send publishes a command to the server.
	Send(env Envelope) error
	// Close tears the connection down.
	Close()
}

// NATSTransport carries the push channel over NATS core subjects.
// Events are read from <prefix>.<user>.events and commands are published to
// <prefix>.<user>.commands. The client's own reconnect logic is disabled;
// reconnects are owned by the Manager.
type NATSTransport struct {
	url    string
	prefix string
	log    *slog.Logger
}

// NewNATSTransport creates a transport for the NATS server at url.
func NewNATSTransport(url, prefix string, log *slog.Logger) *NATSTransport {
	if log == nil {
		log = slog.Default()
	}
	return &NATSTransport{url: url, prefix: prefix, log: log}
}

// Subjects returns the event and command subjects of a user.
func (t *NATSTransport) Subjects(user string) (events, commands string) {
	u := subjectToken(user)
	return fmt.Sprintf("%s.%s.events", t.prefix, u), fmt.Sprintf("%s.%s.commands", t.prefix, u)
}

// Connect dials NATS with the credential as token and subscribes to the
// user's event subject.
func (t *NATSTransport) Connect(ctx context.Context, cred session.Credential, user string, h Handler) (Conn, error) {
	c := &natsConn{log: t.log}
	c.events, c.commands = t.Subjects(user)

	disconnected := func(err error) {
		c.once.Do(func() {
			if h.Disconnected != nil {
				h.Disconnected(err)
			}
		})
	}

	opts := []nats.Option{
		nats.Name("feedsyncd"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) { disconnected(err) }),
		nats.ClosedHandler(func(_ *nats.Conn) { disconnected(nil) }),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			t.log.Warn("push channel async error", "error", err)
		}),
	}
	if tok := cred.Token(); tok != "" {
		opts = append(opts, nats.Token(tok))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(t.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect push channel: %w", err)
	}
	c.nc = nc

	_, err = nc.Subscribe(c.events, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			t.log.Warn("dropping malformed push message", "subject", msg.Subject, "error", err)
			return
		}
		if h.Event != nil {
			h.Event(env)
		}
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", c.events, err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("flush push subscription: %w", err)
	}
	return c, nil
}

// natsConn is one NATS connection for one user.
type natsConn struct {
	nc       *nats.Conn
	events   string
	commands string
	once     sync.Once
	log      *slog.Logger
}

func (c *natsConn) Send(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.nc.Publish(c.commands, b)
}

func (c *natsConn) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// subjectToken makes a user id safe to use as a single subject token.
func subjectToken(user string) string {
	if user == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, user)
}
