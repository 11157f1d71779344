package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/pushchannel/internal/model"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS handoff_queue (
		id          BIGSERIAL   PRIMARY KEY,
		channel_id  TEXT        NOT NULL,
		message_id  UUID        NOT NULL,
		kind        TEXT        NOT NULL,
		payload     TEXT        NOT NULL,
		enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS handoff_queue_channel_idx ON handoff_queue (channel_id, id)`,
}

// Postgres is a queue stored in a shared PostgreSQL table, scoped to one
// channel id. Concurrent consumers never receive the same row.
type Postgres struct {
	pool      *pgxpool.Pool
	channelID string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewPostgres creates the queue table if needed and returns a queue bound to channelID.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, channelID string, timeout time.Duration, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init queue schema: %w", err)
		}
	}

	return &Postgres{
		pool:      pool,
		channelID: channelID,
		timeout:   timeout,
		logger:    logger.With("queue", BackendPostgres),
	}, nil
}

// Enqueue appends msg. Storage failures are logged and the message is lost.
func (q *Postgres) Enqueue(msg model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	_, err := q.pool.Exec(ctx,
		`INSERT INTO handoff_queue (channel_id, message_id, kind, payload) VALUES ($1, $2, $3, $4)`,
		q.channelID, uuid.NewString(), msg.Kind.String(), msg.Payload,
	)
	if err != nil {
		q.logger.Error("failed to enqueue message", "error", err, "kind", msg.Kind.String())
	}
}

// Dequeue removes and returns the oldest message for the channel.
func (q *Postgres) Dequeue() (model.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var kind, payload string
	err := q.pool.QueryRow(ctx, `
		DELETE FROM handoff_queue
		WHERE id = (
			SELECT id FROM handoff_queue
			WHERE channel_id = $1
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING kind, payload
	`, q.channelID).Scan(&kind, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (q *Postgres) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	var n int
	if err := q.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM handoff_queue WHERE channel_id = $1`, q.channelID,
	).Scan(&n); err != nil {
		q.logger.Warn("failed to count queue", "error", err)
		return 0
	}
	return n
}

// List returns up to limit pending entries, oldest first. limit <= 0 means all.
func (q *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 0 {
		limit = 0
	}

	rows, err := q.pool.Query(ctx, `
		SELECT id, message_id::text, kind, payload, enqueued_at
		FROM handoff_queue
		WHERE channel_id = $1
		ORDER BY id
		LIMIT NULLIF($2, 0)
	`, q.channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &kind, &e.Message.Payload, &e.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		if e.Message.Kind, err = model.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("queue row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
