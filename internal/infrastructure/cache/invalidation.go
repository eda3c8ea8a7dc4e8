package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// InvalidationChannel is the PostgreSQL NOTIFY channel carrying cache keys
const InvalidationChannel = "reviewlab_records_changed"

// maxPayload stays below PostgreSQL's 8000 byte NOTIFY limit
const maxPayload = 7900

// Evicter drops entries from the local record cache
type Evicter interface {
	Evict(ctx context.Context, keys ...string) error
	EvictAll(ctx context.Context) error
}

// Invalidator keeps record caches consistent across server instances that
// share one PostgreSQL database. Publish broadcasts changed keys with
// NOTIFY; every instance, the publisher included, evicts them on receipt.
type Invalidator struct {
	mu       sync.Mutex
	db       *sql.DB
	connStr  string
	target   Evicter
	log      *logrus.Logger
	listener *pq.Listener
	stopCh   chan struct{}
	stopped  bool
}

// NewInvalidator creates a new Invalidator.
// connStr is the PostgreSQL connection string for LISTEN/NOTIFY.
func NewInvalidator(db *sql.DB, connStr string, target Evicter, log *logrus.Logger) *Invalidator {
	return &Invalidator{
		db:      db,
		connStr: connStr,
		target:  target,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start begins listening for invalidation notifications.
func (i *Invalidator) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			// The listener reconnects on its own and the reconnect flushes the cache
			i.log.WithError(err).Warn("Cache invalidation listener error")
		}
	}

	listener := pq.NewListener(i.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := listener.Listen(InvalidationChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", InvalidationChannel, err)
	}

	i.mu.Lock()
	i.listener = listener
	i.mu.Unlock()

	go i.handleNotifications(listener, listener.Notify)
	return nil
}

// Stop stops listening and releases the listener connection.
func (i *Invalidator) Stop() error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	close(i.stopCh)
	listener := i.listener
	i.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}

// Publish broadcasts keys to every listening instance. Keys are batched so
// each notification stays under the payload limit.
func (i *Invalidator) Publish(ctx context.Context, keys ...string) error {
	for _, payload := range batchKeys(keys, maxPayload) {
		if _, err := i.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, InvalidationChannel, payload); err != nil {
			return fmt.Errorf("failed to publish cache invalidation: %w", err)
		}
	}
	return nil
}

// handleNotifications evicts the keys named by incoming notifications.
// listener is only used for keepalive pings and may be nil.
func (i *Invalidator) handleNotifications(listener *pq.Listener, notify <-chan *pq.Notification) {
	for {
		select {
		case <-i.stopCh:
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection re-established: anything published meanwhile was missed
				i.log.Info("Cache invalidation listener reconnected, flushing local cache")
				if err := i.target.EvictAll(context.Background()); err != nil {
					i.log.WithError(err).Warn("Failed to flush cache after reconnect")
				}
				continue
			}
			i.apply(n.Extra)
		case <-time.After(90 * time.Second):
			// Periodic ping to keep connection alive
			if listener == nil {
				continue
			}
			if err := listener.Ping(); err != nil {
				i.log.WithError(err).Warn("Cache invalidation listener ping failed")
			}
		}
	}
}

// apply evicts the comma separated keys in payload from the local cache.
func (i *Invalidator) apply(payload string) {
	keys := strings.Split(payload, ",")
	if err := i.target.Evict(context.Background(), keys...); err != nil {
		i.log.WithError(err).WithField("keys", keys).Warn("Failed to apply cache invalidation")
	}
}

// batchKeys joins keys with commas into payloads of at most limit bytes.
func batchKeys(keys []string, limit int) []string {
	var out []string
	var b strings.Builder
	for _, k := range keys {
		if k == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+1+len(k) > limit {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
