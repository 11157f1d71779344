// Package render presents notifications carried in Text messages.
package render

import (
	"log/slog"

	"github.com/rickgao/pushchannel/internal/model"
)

// Renderer shows a notification. Render is fire-and-forget.
type Renderer interface {
	Render(n model.Notification)
}

// Func adapts a function to a Renderer.
type Func func(n model.Notification)

// Render calls f(n).
func (f Func) Render(n model.Notification) {
	f(n)
}

// LogRenderer writes notifications to a structured logger.
type LogRenderer struct {
	logger *slog.Logger
}

// NewLogRenderer creates a renderer that logs at Info.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRenderer{logger: logger.With("component", "renderer")}
}

// Render logs n.
func (r *LogRenderer) Render(n model.Notification) {
	attrs := []any{
		"title", n.Title,
		"content", n.Content,
	}
	if n.Tag != "" {
		attrs = append(attrs, "tag", n.Tag)
	}
	if n.Group != "" {
		attrs = append(attrs, "group", n.Group)
	}
	if n.Image != "" {
		attrs = append(attrs, "image", n.Image)
	}
	if n.Logo != "" {
		attrs = append(attrs, "logo", n.Logo)
	}
	if n.Launch.Key != "" {
		attrs = append(attrs, "launch_key", n.Launch.Key, "launch_value", n.Launch.Value)
	}
	r.logger.Info("notification", attrs...)
}
