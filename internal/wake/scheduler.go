package wake

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// HandlerFunc handles one wake signal.
type HandlerFunc func(ctx context.Context, sig Signal)

// SchedulerStats counts signal outcomes.
type SchedulerStats struct {
	Delivered int64
	Dropped   int64
	Coalesced int64
	Handled   int64
	Panics    int64
}

// Scheduler queues wake signals and runs their handlers one at a time.
// NetworkChanged signals bypass the bounded buffer: at most one is pending per
// channel and they are never dropped.
type Scheduler struct {
	signals chan Signal
	logger  *slog.Logger

	networkMu      sync.Mutex
	networkPending map[string]Signal
	networkKick    chan struct{}

	mu       sync.RWMutex
	handlers map[SignalKind][]HandlerFunc

	delivered atomic.Int64
	dropped   atomic.Int64
	coalesced atomic.Int64
	handled   atomic.Int64
	panics    atomic.Int64
}

// NewScheduler creates a scheduler that buffers up to buffer pending signals.
func NewScheduler(buffer int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Scheduler{
		signals:        make(chan Signal, buffer),
		logger:         logger.With("component", "wake-scheduler"),
		handlers:       make(map[SignalKind][]HandlerFunc),
		networkPending: make(map[string]Signal),
		networkKick:    make(chan struct{}, 1),
	}
}

// On registers fn for signals of kind. Handlers run in registration order.
func (s *Scheduler) On(kind SignalKind, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = append(s.handlers[kind], fn)
}

// Deliver queues sig without blocking. It reports false when the buffer is
// full and the signal was dropped. NetworkChanged signals are always accepted;
// one arriving while another is pending for the same channel merges into it.
func (s *Scheduler) Deliver(sig Signal) bool {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}
	if sig.Kind == NetworkChanged {
		s.deliverNetwork(sig)
		return true
	}
	select {
	case s.signals <- sig:
		s.delivered.Add(1)
		return true
	default:
		s.dropped.Add(1)
		s.logger.Warn("wake signal dropped, buffer full",
			"kind", sig.Kind.String(),
			"channel_id", sig.ChannelID,
		)
		return false
	}
}

// Run dispatches queued signals until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("wake scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("wake scheduler stopped")
			return nil
		case sig := <-s.signals:
			s.handle(ctx, sig)
		case <-s.networkKick:
			for _, sig := range s.takeNetwork() {
				s.handle(ctx, sig)
			}
		}
	}
}

// Pending returns the number of queued signals.
func (s *Scheduler) Pending() int {
	s.networkMu.Lock()
	n := len(s.networkPending)
	s.networkMu.Unlock()
	return len(s.signals) + n
}

func (s *Scheduler) deliverNetwork(sig Signal) {
	s.networkMu.Lock()
	if _, ok := s.networkPending[sig.ChannelID]; ok {
		s.networkMu.Unlock()
		s.coalesced.Add(1)
		return
	}
	s.networkPending[sig.ChannelID] = sig
	s.networkMu.Unlock()

	s.delivered.Add(1)
	select {
	case s.networkKick <- struct{}{}:
	default:
	}
}

// takeNetwork empties the pending set, oldest first. A signal delivered while
// these are handled starts a new pending entry.
func (s *Scheduler) takeNetwork() []Signal {
	s.networkMu.Lock()
	defer s.networkMu.Unlock()

	sigs := make([]Signal, 0, len(s.networkPending))
	for id, sig := range s.networkPending {
		sigs = append(sigs, sig)
		delete(s.networkPending, id)
	}
	slices.SortFunc(sigs, func(a, b Signal) int { return a.At.Compare(b.At) })
	return sigs
}

// Stats returns current counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Coalesced: s.coalesced.Load(),
		Handled:   s.handled.Load(),
		Panics:    s.panics.Load(),
	}
}

func (s *Scheduler) handle(ctx context.Context, sig Signal) {
	s.mu.RLock()
	handlers := s.handlers[sig.Kind]
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug("no handler for wake signal", "kind", sig.Kind.String())
		return
	}

	for _, fn := range handlers {
		s.invoke(ctx, fn, sig)
	}
	s.handled.Add(1)
}

func (s *Scheduler) invoke(ctx context.Context, fn HandlerFunc, sig Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			s.panics.Add(1)
			s.logger.Error("wake handler panicked",
				"kind", sig.Kind.String(),
				"channel_id", sig.ChannelID,
				"panic", rec,
			)
		}
	}()
	fn(ctx, sig)
}
