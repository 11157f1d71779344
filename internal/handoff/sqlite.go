package handoff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rickgao/pushchannel/internal/model"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS handoff_queue (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id  TEXT    NOT NULL,
		message_id  TEXT    NOT NULL,
		kind        TEXT    NOT NULL,
		payload     TEXT    NOT NULL,
		enqueued_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_handoff_queue_channel ON handoff_queue (channel_id, id)`,
}

// Entry is a stored queue row.
type Entry struct {
	ID         int64
	MessageID  string
	Message    model.Message
	EnqueuedAt time.Time
}

// SQLite is a queue persisted in a local SQLite file, scoped to one channel id.
type SQLite struct {
	db        *sql.DB
	path      string
	channelID string
	timeout   time.Duration
	logger    *slog.Logger
}

// OpenSQLite opens or creates the queue database at path.
func OpenSQLite(path, channelID string, timeout time.Duration, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; busy retries cover other processes sharing the file.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	for _, stmt := range sqliteSchema {
		if _, execErr := db.Exec(stmt); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init queue schema: %w", execErr)
		}
	}

	return &SQLite{
		db:        db,
		path:      path,
		channelID: channelID,
		timeout:   timeout,
		logger:    logger.With("queue", BackendSQLite, "path", path),
	}, nil
}

// Enqueue appends msg. Storage failures are logged and the message is lost.
func (q *SQLite) Enqueue(msg model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	err := retryOnBusy(ctx, func() error {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO handoff_queue (channel_id, message_id, kind, payload, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
			q.channelID, uuid.NewString(), msg.Kind.String(), msg.Payload, time.Now().UnixMicro(),
		)
		return err
	})
	if err != nil {
		q.logger.Error("failed to enqueue message", "error", err, "kind", msg.Kind.String())
	}
}

// Dequeue removes and returns the oldest message for the channel.
func (q *SQLite) Dequeue() (model.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var kind, payload string
	err := retryOnBusy(ctx, func() error {
		return q.db.QueryRowContext(ctx,
			`DELETE FROM handoff_queue
			 WHERE id = (SELECT id FROM handoff_queue WHERE channel_id = ? ORDER BY id LIMIT 1)
			 RETURNING kind, payload`,
			q.channelID,
		).Scan(&kind, &payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, false
	}
	if err != nil {
		q.logger.Error("failed to dequeue message", "error", err)
		return model.Message{}, false
	}

	parsed, err := model.ParseKind(kind)
	if err != nil {
		q.logger.Warn("dropping stored message with unknown kind", "kind", kind)
		return model.Message{}, false
	}
	return model.Message{Kind: parsed, Payload: payload}, true
}

// Len returns the number of pending messages for the channel.
func (q *SQLite) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM handoff_queue WHERE channel_id = ?`, q.channelID,
	).Scan(&n); err != nil {
		q.logger.Warn("failed to count queue", "error", err)
		return 0
	}
	return n
}

// List returns up to limit pending entries, oldest first. limit <= 0 means all.
func (q *SQLite) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, message_id, kind, payload, enqueued_at FROM handoff_queue WHERE channel_id = ? ORDER BY id`
	args := []any{q.channelID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			enqueuedAt int64
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &kind, &e.Message.Payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		if e.Message.Kind, err = model.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("queue row %d: %w", e.ID, err)
		}
		e.EnqueuedAt = time.UnixMicro(enqueuedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the database file path.
func (q *SQLite) Path() string {
	return q.path
}

// Close closes the underlying database.
func (q *SQLite) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
