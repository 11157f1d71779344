package render

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pushchannel/internal/model"
)

func TestFunc(t *testing.T) {
	var got model.Notification
	var r Renderer = Func(func(n model.Notification) { got = n })

	r.Render(model.Notification{Title: "hi"})
	assert.Equal(t, "hi", got.Title)
}

func TestLogRenderer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NewLogRenderer(logger).Render(model.Notification{
		Title:   "Build finished",
		Content: "main is green",
		Tag:     "ci",
		Launch:  model.LaunchArg{Key: "build", Value: "42"},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["msg"])
	assert.Equal(t, "renderer", entry["component"])
	assert.Equal(t, "Build finished", entry["title"])
	assert.Equal(t, "main is green", entry["content"])
	assert.Equal(t, "ci", entry["tag"])
	assert.Equal(t, "42", entry["launch_value"])
	assert.NotContains(t, entry, "group")
}
