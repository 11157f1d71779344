package wake

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ResolvConfWatcher delivers NetworkChanged signals when the resolver
// configuration file changes. Most network managers rewrite it on every
// connectivity change.
type ResolvConfWatcher struct {
	path      string
	sched     *Scheduler
	channelID string
	logger    *slog.Logger
}

// NewResolvConfWatcher creates a watcher for path.
func NewResolvConfWatcher(path string, sched *Scheduler, channelID string, logger *slog.Logger) *ResolvConfWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolvConfWatcher{
		path:      filepath.Clean(path),
		sched:     sched,
		channelID: channelID,
		logger:    logger.With("component", "resolvconf-watcher", "path", path),
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// atomic replacement of the file is seen.
func (w *ResolvConfWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("resolv.conf watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Info("resolver configuration changed", "op", event.Op.String())
			w.sched.Deliver(Signal{Kind: NetworkChanged, ChannelID: w.channelID, At: time.Now()})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("resolv.conf watcher error", "error", err)
		}
	}
}

func (w *ResolvConfWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
