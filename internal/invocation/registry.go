package invocation

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/pushchannel/internal/model"
)

// Handler receives the arguments of a server invocation.
type Handler func(args []any)

// Stats counts dispatch outcomes.
type Stats struct {
	Registered   int
	Invoked      int64
	Unhandled    int64
	DecodeErrors int64
	Diagnostics  int64
	Panics       int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSink replaces the diagnostic sink for Text and ConnectionEvent messages.
// The default sink logs the message.
func WithSink(sink func(model.Message)) Option {
	return func(r *Registry) {
		r.sink = sink
	}
}

// Registry is a name to handler map with dispatch.
type Registry struct {
	logger *slog.Logger
	sink   func(model.Message)

	mu       sync.RWMutex
	handlers map[string]Handler

	invoked      atomic.Int64
	unhandled    atomic.Int64
	decodeErrors atomic.Int64
	diagnostics  atomic.Int64
	panics       atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = r.logDiagnostic
	}
	return r
}

// Register stores handler under methodName unless a handler is already
// registered for it. It reports whether the handler was stored.
func (r *Registry) Register(methodName string, handler Handler) bool {
	if handler == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[methodName]; exists {
		r.logger.Debug("handler already registered, ignoring", "method", methodName)
		return false
	}
	r.handlers[methodName] = handler
	return true
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch routes msg by kind.
func (r *Registry) Dispatch(msg model.Message) {
	switch msg.Kind {
	case model.KindText, model.KindConnectionEvent:
		r.diagnostics.Add(1)
		r.sink(msg)

	case model.KindClientInvocation:
		desc, err := model.DecodeInvocation(msg.Payload)
		if err != nil {
			r.decodeErrors.Add(1)
			r.logger.Debug("dropping malformed invocation", "error", err)
			return
		}
		r.invoke(desc)

	default:
		r.logger.Debug("dropping message of unknown kind", "kind", msg.Kind)
	}
}

// Stats returns current counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Registered:   r.Len(),
		Invoked:      r.invoked.Load(),
		Unhandled:    r.unhandled.Load(),
		DecodeErrors: r.decodeErrors.Load(),
		Diagnostics:  r.diagnostics.Load(),
		Panics:       r.panics.Load(),
	}
}

func (r *Registry) invoke(desc model.InvocationDescriptor) {
	r.mu.RLock()
	handler, ok := r.handlers[desc.MethodName]
	r.mu.RUnlock()

	if !ok {
		r.unhandled.Add(1)
		r.logger.Debug("no handler for method", "method", desc.MethodName)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			r.logger.Error("invocation handler panicked",
				"method", desc.MethodName,
				"panic", rec,
			)
		}
	}()

	r.invoked.Add(1)
	handler(desc.Arguments)
}

func (r *Registry) logDiagnostic(msg model.Message) {
	r.logger.Info("received message", "kind", msg.Kind.String(), "payload", msg.Payload)
}
