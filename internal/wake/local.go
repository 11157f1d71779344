package wake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// LocalChannel grants registrations backed by one lock file per channel id,
// so only one process on the host can own a given id.
type LocalChannel struct {
	dir    string
	sched  *Scheduler
	logger *slog.Logger

	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalChannel creates a channel that keeps lock files under dir and
// delivers inbound signals to sched.
func NewLocalChannel(dir string, sched *Scheduler, logger *slog.Logger) *LocalChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalChannel{
		dir:    dir,
		sched:  sched,
		logger: logger.With("component", "wake-channel"),
		held:   make(map[string]struct{}),
	}
}

// Acquire claims id for this process.
func (c *LocalChannel) Acquire(id string, keepAlive time.Duration) (Registration, error) {
	if id == "" {
		return nil, errors.New("channel id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.held[id]; ok {
		return nil, fmt.Errorf("acquire %q: %w", id, ErrChannelInUse)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, classifyLockErr(id, err)
	}

	lock := flock.New(filepath.Join(c.dir, id+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, classifyLockErr(id, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire %q: %w", id, ErrChannelInUse)
	}

	c.held[id] = struct{}{}
	c.logger.Debug("wake channel acquired", "channel_id", id, "lock", lock.Path())

	return &localRegistration{
		channel:   c,
		id:        id,
		lock:      lock,
		keepAlive: keepAlive,
		logger:    c.logger.With("channel_id", id),
	}, nil
}

func (c *LocalChannel) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, id)
}

func classifyLockErr(id string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("acquire %q: %w: %v", id, ErrPermissionDenied, err)
	}
	return fmt.Errorf("acquire %q: %w", id, err)
}

type localRegistration struct {
	channel   *LocalChannel
	id        string
	lock      *flock.Flock
	keepAlive time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	bound    bool
	released bool
	stop     chan struct{}
	done     chan struct{}
}

func (r *localRegistration) ID() string {
	return r.id
}

func (r *localRegistration) Bind(k KeepAliver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	r.stopKeepAliveLocked()
	r.bound = true

	if r.keepAlive > 0 && k != nil {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.keepAliveLoop(k, r.stop, r.done)
	}
	return nil
}

func (r *localRegistration) AwaitSlot(ctx context.Context) (SlotStatus, error) {
	if err := ctx.Err(); err != nil {
		return NotAllocated, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released || !r.bound {
		return NotAllocated, nil
	}
	// Local processes only ever get a software slot.
	return SoftwareAllocated, nil
}

func (r *localRegistration) NotifyInbound() {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()

	if released || r.channel.sched == nil {
		return
	}
	r.channel.sched.Deliver(Signal{Kind: PushNotification, ChannelID: r.id, At: time.Now()})
}

func (r *localRegistration) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	r.bound = false
	done := r.done
	r.stopKeepAliveLocked()
	r.mu.Unlock()

	if done != nil {
		<-done
	}

	r.channel.release(r.id)
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock wake channel: %w", err)
	}
	r.logger.Debug("wake channel released")
	return nil
}

// stopKeepAliveLocked signals the keep-alive loop to exit. Must be called
// with mu held.
func (r *localRegistration) stopKeepAliveLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *localRegistration) keepAliveLoop(k KeepAliver, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.keepAlive)
			err := k.Ping(ctx)
			cancel()
			if err != nil {
				r.logger.Warn("keep-alive ping failed", "error", err)
			}
		}
	}
}
