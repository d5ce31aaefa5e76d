// Package notify announces finished builds on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/history"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/walker"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "sitebuilder.builds"

// Event is the payload published after every build.
type Event struct {
	BuildID      string         `json:"build_id"`
	Status       history.Status `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	DurationMS   int64          `json:"duration_ms"`
	Sources      []string       `json:"sources"`
	ManifestHash string         `json:"manifest_hash,omitempty"`
	Stats        walker.Stats   `json:"stats"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// EventFromRecord builds the event for a ledger record.
func EventFromRecord(r *history.BuildRecord) Event {
	return Event{
		BuildID:      r.ID,
		Status:       r.Status,
		StartedAt:    r.StartedAt,
		DurationMS:   r.Duration,
		Sources:      r.Sources,
		ManifestHash: r.ManifestHash,
		Stats:        r.Stats,
		Error:        r.Error,
	}
}

// Notifier delivers build events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close()
}

// Publisher is the subset of *nats.Conn used to send events.
type Publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes events on a core NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     Publisher
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("sitebuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, errors.NotifyError("connect to NATS").
			WithContext("url", url).WithCause(err).Build()
	}

	n := NewNATSNotifier(conn, subject, logger)
	n.conn = conn
	n.logger.Info("NATS notifier connected", logfields.URL(url), slog.String("subject", n.subject))
	return n, nil
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, subject string, logger *slog.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{pub: pub, subject: subject, logger: logger, now: time.Now}
}

// Notify publishes ev and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Notify(ctx context.Context, ev Event) error {
	ev.Timestamp = n.now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		return errors.NotifyError("encode build event").WithCause(err).Build()
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errors.NotifyError("publish build event").
			WithContext("subject", n.subject).WithCause(err).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return errors.NotifyError("flush build event").
			WithContext("subject", n.subject).WithCause(fmt.Errorf("nats flush: %w", err)).Build()
	}

	n.logger.Debug("Published build event",
		logfields.BuildID(ev.BuildID),
		logfields.Status(string(ev.Status)),
		slog.String("subject", n.subject))
	return nil
}

// Close drains and closes the underlying connection, if any.
func (n *NATSNotifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }
func (Noop) Close()                              {}
