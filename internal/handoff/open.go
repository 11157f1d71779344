package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rickgao/pushchannel/internal/config"
	"github.com/rickgao/pushchannel/internal/database"
)

// Open builds the queue selected by cfg.Backend. The returned close function
// releases any storage the queue holds and is safe to call once.
func Open(ctx context.Context, cfg config.QueueConfig, channelID string, logger *slog.Logger) (Queue, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(cfg.InitialCapacity), func() {}, nil

	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create queue dir: %w", err)
			}
		}
		q, err := OpenSQLite(cfg.SQLitePath, channelID, cfg.OpTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Warn("failed to close sqlite queue", "error", err)
			}
		}, nil

	case BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect queue database: %w", err)
		}
		q, err := NewPostgres(ctx, pool, channelID, cfg.OpTimeout, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return q, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
