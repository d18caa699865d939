/*
Package sqlite provides the SQLite-backed notification outbox.

PURPOSE:
  Booking writes a delivery request here and returns. A separate mailer
  drains the table, sends, and marks each row delivered. The outbox never
  holds reservations: those stay in the flat files.

KEY TABLE:
  notifications:
    id            TEXT PRIMARY KEY   notification id (UUID)
    kind          TEXT               reservation.created | reservation.reminder | reservation.digest
    payload_json  TEXT               the full booking.Notification
    created_at    TEXT               RFC 3339 with fixed nanoseconds, UTC
    delivered_at  TEXT NULL          set once by MarkDelivered

INDEXES:
  - idx_notifications_pending: Pending() scans undelivered rows oldest first

WAL MODE:
  Opened with WAL so the mailer can read while the server enqueues.

USAGE:
  outbox, err := sqlite.New("./data/outbox.db")
  if err != nil {
      log.Fatal(err)
  }
  defer outbox.Close()

SEE ALSO:
  - notify/outbox.go: the Notifier that writes here
  - cmd/outbox: lists and acknowledges pending rows
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/booking-engine/booking"
)

// timeLayout sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Outbox is a durable queue of notification requests.
type Outbox struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Message is one queued notification.
type Message struct {
	Notification booking.Notification
	CreatedAt    time.Time
	DeliveredAt  *time.Time
}

// New opens (and migrates) the outbox at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Outbox, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	o := &Outbox{db: db, now: time.Now}
	if err := o.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return o, nil
}

// Close closes the database connection.
func (o *Outbox) Close() error {
	return o.db.Close()
}

func (o *Outbox) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		delivered_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_pending
		ON notifications(delivered_at, created_at);
	`
	_, err := o.db.Exec(schema)
	return err
}

// =============================================================================
// QUEUE OPERATIONS
// =============================================================================

// Enqueue stores n. The id must be set and unique.
func (o *Outbox) Enqueue(ctx context.Context, n booking.Notification) error {
	if n.ID == "" {
		return errors.New("notification id is required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	_, err = o.db.ExecContext(ctx,
		`INSERT INTO notifications (id, kind, payload_json, created_at) VALUES (?, ?, ?, ?)`,
		n.ID,
		string(n.Kind),
		string(payload),
		o.now().UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("notification %s already queued", n.ID)
		}
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Pending returns up to limit undelivered messages, oldest first.
// limit <= 0 means no limit.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]Message, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	query := `
		SELECT payload_json, created_at, delivered_at
		FROM notifications
		WHERE delivered_at IS NULL
		ORDER BY created_at ASC, id ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			payload, createdAt string
			deliveredAt        sql.NullString
		)
		if err := rows.Scan(&payload, &createdAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		var m Message
		if err := json.Unmarshal([]byte(payload), &m.Notification); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}
		m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		if deliveredAt.Valid {
			t, _ := time.Parse(timeLayout, deliveredAt.String)
			m.DeliveredAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkDelivered stamps a message as sent. Marking twice is a no-op;
// an unknown id is ErrNotFound.
func (o *Outbox) MarkDelivered(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	res, err := o.db.ExecContext(ctx,
		`UPDATE notifications SET delivered_at = COALESCE(delivered_at, ?) WHERE id = ?`,
		o.now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &booking.NotFoundError{Kind: "notification", Key: id}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
