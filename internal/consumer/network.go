package consumer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/pushchannel/internal/connection"
	"github.com/rickgao/pushchannel/internal/wake"
)

// NetworkChange resets and reconnects the published connection when the
// network changes. Signals for a channel that arrive while a reconnect is
// running share its result.
type NetworkChange struct {
	handles    connection.HandleRegistry
	logger     *slog.Logger
	group      singleflight.Group
	afterReset func(connection.Manager)

	reconnects atomic.Int64
	failures   atomic.Int64
	skipped    atomic.Int64
}

// Option configures a NetworkChange.
type Option func(*NetworkChange)

// WithAfterReset runs fn between Reset and SetupTransport, typically to
// register handlers again since Reset clears them.
func WithAfterReset(fn func(connection.Manager)) Option {
	return func(c *NetworkChange) {
		c.afterReset = fn
	}
}

// NewNetworkChange creates the consumer.
func NewNetworkChange(handles connection.HandleRegistry, logger *slog.Logger, opts ...Option) *NetworkChange {
	if logger == nil {
		logger = slog.Default()
	}
	c := &NetworkChange{
		handles: handles,
		logger:  logger.With("component", "network-change"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one NetworkChanged signal. It has the wake.HandlerFunc
// signature.
func (c *NetworkChange) Handle(ctx context.Context, sig wake.Signal) {
	c.Reconnect(ctx, sig.ChannelID)
}

// Reconnect resets the connection published under channelID and sets it up
// again with its last uri. It reports whether a connection was re-established;
// a channel with no published handle is a no-op.
func (c *NetworkChange) Reconnect(ctx context.Context, channelID string) bool {
	v, _, _ := c.group.Do(channelID, func() (any, error) {
		h, ok := c.handles.Lookup(channelID)
		if !ok {
			c.skipped.Add(1)
			c.logger.Debug("no connection published, ignoring network change", "channel_id", channelID)
			return false, nil
		}

		mgr := h.Manager
		uri := mgr.LastURI()

		c.logger.Info("network changed, reconnecting",
			"channel_id", channelID,
			"session_id", h.SessionID,
		)

		mgr.Reset()
		if c.afterReset != nil {
			c.afterReset(mgr)
		}
		if !mgr.SetupTransport(ctx, uri) {
			c.failures.Add(1)
			c.logger.Warn("reconnect after network change failed",
				"channel_id", channelID,
				"reason", mgr.LastFailure().String(),
			)
			return false, nil
		}

		c.reconnects.Add(1)
		return true, nil
	})
	ok, _ := v.(bool)
	return ok
}

// NetworkChangeStats counts consumer outcomes.
type NetworkChangeStats struct {
	Reconnects int64
	Failures   int64
	Skipped    int64
}

// Stats returns current counters.
func (c *NetworkChange) Stats() NetworkChangeStats {
	return NetworkChangeStats{
		Reconnects: c.reconnects.Load(),
		Failures:   c.failures.Load(),
		Skipped:    c.skipped.Load(),
	}
}
