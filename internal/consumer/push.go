package consumer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/pushchannel/internal/connection"
	"github.com/rickgao/pushchannel/internal/model"
	"github.com/rickgao/pushchannel/internal/render"
	"github.com/rickgao/pushchannel/internal/wake"
)

// PushWake consumes one queued message per push wake.
type PushWake struct {
	handles  connection.HandleRegistry
	renderer render.Renderer
	logger   *slog.Logger

	dispatched atomic.Int64
	rendered   atomic.Int64
	empty      atomic.Int64
	skipped    atomic.Int64
}

// NewPushWake creates the consumer. A nil renderer disables rendering.
func NewPushWake(handles connection.HandleRegistry, renderer render.Renderer, logger *slog.Logger) *PushWake {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushWake{
		handles:  handles,
		renderer: renderer,
		logger:   logger.With("component", "push-wake"),
	}
}

// Handle processes one PushNotification signal. It has the wake.HandlerFunc
// signature.
func (c *PushWake) Handle(_ context.Context, sig wake.Signal) {
	c.Consume(sig.ChannelID)
}

// Consume pops at most one message for channelID and dispatches it. It
// reports whether a message was consumed.
func (c *PushWake) Consume(channelID string) bool {
	h, ok := c.handles.Lookup(channelID)
	if !ok {
		c.skipped.Add(1)
		c.logger.Debug("no connection published, ignoring push wake", "channel_id", channelID)
		return false
	}

	msg, found := h.Manager.Queue().Dequeue()
	if !found {
		c.empty.Add(1)
		return false
	}

	h.Manager.Dispatch(msg)
	c.dispatched.Add(1)

	if msg.Kind != model.KindText || c.renderer == nil {
		return true
	}
	if n, ok := model.ParseNotification(msg.Payload); ok {
		c.renderer.Render(n)
		c.rendered.Add(1)
	}
	return true
}

// PushWakeStats counts consumer outcomes.
type PushWakeStats struct {
	Dispatched int64
	Rendered   int64
	Empty      int64
	Skipped    int64
}

// Stats returns current counters.
func (c *PushWake) Stats() PushWakeStats {
	return PushWakeStats{
		Dispatched: c.dispatched.Load(),
		Rendered:   c.rendered.Load(),
		Empty:      c.empty.Load(),
		Skipped:    c.skipped.Load(),
	}
}
