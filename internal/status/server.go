package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/rickgao/pushchannel/internal/connection"
)

// StatsSource reports connection statistics.
type StatsSource interface {
	Stats() connection.Stats
}

// Server is the status HTTP server.
type Server struct {
	source     StatsSource
	logger     *slog.Logger
	router     *httprouter.Router
	components map[string]func() any
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithComponent adds a named view to /debug/connection.
func WithComponent(name string, view func() any) Option {
	return func(s *Server) {
		s.components[name] = view
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a status server for source.
func NewServer(source StatsSource, opts ...Option) *Server {
	s := &Server{
		source:     source,
		logger:     slog.Default(),
		router:     httprouter.New(),
		components: make(map[string]func() any),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "status-server")

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/debug/connection", s.handleConnection)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting status server", "port", port)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stats := s.source.Stats()

	resp := healthResponse{
		Status:    "healthy",
		State:     stats.State.String(),
		SessionID: stats.SessionID,
	}
	code := http.StatusOK
	if stats.State != connection.StateConnected {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

type connectionResponse struct {
	State        string         `json:"state"`
	SessionID    string         `json:"session_id,omitempty"`
	URI          string         `json:"uri"`
	LastFailure  string         `json:"last_failure"`
	FramesRead   int64          `json:"frames_read"`
	Dispatched   int64          `json:"dispatched"`
	DecodeErrors int64          `json:"decode_errors"`
	QueueDepth   int            `json:"queue_depth"`
	Handlers     int            `json:"handlers"`
	Invoked      int64          `json:"invoked"`
	Unhandled    int64          `json:"unhandled"`
	Components   map[string]any `json:"components,omitempty"`
}

func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stats := s.source.Stats()

	resp := connectionResponse{
		State:        stats.State.String(),
		SessionID:    stats.SessionID,
		URI:          stats.URI,
		LastFailure:  stats.LastFailure.String(),
		FramesRead:   stats.FramesRead,
		Dispatched:   stats.Dispatched,
		DecodeErrors: stats.DecodeErrors,
		QueueDepth:   stats.QueueDepth,
		Handlers:     stats.Invocation.Registered,
		Invoked:      stats.Invocation.Invoked,
		Unhandled:    stats.Invocation.Unhandled,
	}
	if len(s.components) > 0 {
		resp.Components = make(map[string]any, len(s.components))
		for name, view := range s.components {
			resp.Components[name] = view()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
