package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rickgao/pushchannel/internal/config"
	"github.com/rickgao/pushchannel/internal/handoff"
	"github.com/rickgao/pushchannel/internal/invocation"
	"github.com/rickgao/pushchannel/internal/model"
	"github.com/rickgao/pushchannel/internal/wake"
)

// Manager owns one logical connection to the push server.
type Manager interface {
	// SetupTransport connects to uri and starts the read chain. It returns
	// false on any failure, with every acquired resource released.
	SetupTransport(ctx context.Context, uri string) bool

	// Reset tears down the connection and clears all handlers. Idempotent.
	Reset()

	// RegisterAction registers a handler for a server invocation. The first
	// registration for a name wins.
	RegisterAction(methodName string, handler invocation.Handler) bool

	// Send writes a text frame to the server.
	Send(ctx context.Context, text string) error

	// Dispatch routes msg through the current invocation registry.
	Dispatch(msg model.Message)

	// Queue returns the handoff queue shared with wake consumers.
	Queue() handoff.Queue

	// State returns the current lifecycle state.
	State() State

	// LastURI returns the uri of the most recent SetupTransport call.
	LastURI() string

	// LastFailure returns why the most recent SetupTransport failed.
	LastFailure() FailureReason

	// Stats returns manager statistics.
	Stats() Stats
}

// Handle is the identity a manager publishes under its channel id.
type Handle struct {
	ChannelID string
	SessionID string
	Manager   Manager
}

// HandleRegistry is the process-wide table of published handles.
type HandleRegistry interface {
	Publish(id string, h *Handle)
	Lookup(id string) (*Handle, bool)
	Remove(id string) bool
}

// session holds the resources of one successful SetupTransport.
type session struct {
	id           string
	transport    Transport
	registration wake.Registration
	ctx          context.Context
	cancel       context.CancelFunc

	// Set once by teardown; read completions check it without the manager lock.
	disconnected atomic.Bool
}

// manager implements the Manager interface.
type manager struct {
	cfg     ManagerConfig
	dialer  Dialer
	channel wake.Channel
	handles HandleRegistry
	queue   handoff.Queue
	logger  *slog.Logger

	registry atomic.Pointer[invocation.Registry]

	// Guards SetupTransport, Reset and the fields below.
	mu          sync.Mutex
	state       State
	uri         string
	session     *session
	lastFailure FailureReason

	framesRead   atomic.Int64
	dispatched   atomic.Int64
	decodeErrors atomic.Int64
}

// NewManager creates a disconnected manager.
func NewManager(
	cfg ManagerConfig,
	dialer Dialer,
	channel wake.Channel,
	handles HandleRegistry,
	queue handoff.Queue,
	logger *slog.Logger,
) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:     cfg,
		dialer:  dialer,
		channel: channel,
		handles: handles,
		queue:   queue,
		logger:  logger.With("component", "connection-manager", "channel_id", cfg.ChannelID),
		state:   StateDisconnected,
	}
	m.registry.Store(m.newRegistry())
	return m
}

func (m *manager) newRegistry() *invocation.Registry {
	opts := append([]invocation.Option{invocation.WithLogger(m.logger)}, m.cfg.RegistryOptions...)
	return invocation.NewRegistry(opts...)
}

func (m *manager) SetupTransport(ctx context.Context, uri string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uri = uri

	if err := config.ValidateServerURI(uri); err != nil {
		return m.failLocked(FailureConfig, "invalid server uri", err)
	}
	if m.channel == nil || m.dialer == nil || m.handles == nil || m.queue == nil {
		return m.failLocked(FailureConfig, "manager is missing a collaborator", errors.New("nil dependency"))
	}

	if m.session != nil {
		m.logger.Info("replacing existing connection")
		m.teardownLocked()
	}
	m.state = StateConnecting

	reg, err := m.channel.Acquire(m.cfg.ChannelID, m.cfg.KeepAlive)
	if err != nil {
		reason := FailureTransport
		if errors.Is(err, wake.ErrPermissionDenied) || errors.Is(err, wake.ErrChannelInUse) {
			reason = FailurePolicy
		}
		return m.failLocked(reason, "failed to acquire wake channel", err)
	}

	transport, err := m.dialer.Dial(ctx, uri)
	if err != nil {
		m.release(reg)
		return m.failLocked(FailureTransport, "failed to connect", err)
	}

	if err := reg.Bind(transport); err != nil {
		m.closeTransport(transport)
		m.release(reg)
		return m.failLocked(FailureTransport, "failed to bind transport", err)
	}

	slot, err := reg.AwaitSlot(ctx)
	if err != nil || !slot.Allocated() {
		if err == nil {
			err = fmt.Errorf("slot status %s", slot)
		}
		m.closeTransport(transport)
		m.release(reg)
		return m.failLocked(FailureTransport, "background slot not allocated", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:           uuid.NewString(),
		transport:    transport,
		registration: reg,
		ctx:          sessCtx,
		cancel:       cancel,
	}

	m.handles.Remove(m.cfg.ChannelID)
	m.handles.Publish(m.cfg.ChannelID, &Handle{
		ChannelID: m.cfg.ChannelID,
		SessionID: sess.id,
		Manager:   m,
	})

	m.session = sess
	m.state = StateConnected

	if err := m.postRead(sess); err != nil {
		m.teardownLocked()
		return m.failLocked(FailureTransport, "failed to start reading", err)
	}

	m.lastFailure = FailureNone
	m.logger.Info("connected", "uri", uri, "session_id", sess.id, "slot", slot.String())
	return true
}

func (m *manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	if m.handles != nil {
		m.handles.Remove(m.cfg.ChannelID)
	}
	m.registry.Store(m.newRegistry())

	m.logger.Debug("connection reset")
}

func (m *manager) RegisterAction(methodName string, handler invocation.Handler) bool {
	return m.registry.Load().Register(methodName, handler)
}

func (m *manager) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()

	if sess == nil || sess.disconnected.Load() {
		return ErrNotConnected
	}
	if err := sess.transport.Send(ctx, []byte(text)); err != nil {
		return fmt.Errorf("send text frame: %w", err)
	}
	return nil
}

func (m *manager) Dispatch(msg model.Message) {
	m.dispatched.Add(1)
	m.registry.Load().Dispatch(msg)
}

func (m *manager) Queue() handoff.Queue {
	return m.queue
}

func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *manager) LastURI() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uri
}

func (m *manager) LastFailure() FailureReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFailure
}

func (m *manager) Stats() Stats {
	m.mu.Lock()
	stats := Stats{
		State:       m.state,
		URI:         m.uri,
		LastFailure: m.lastFailure,
	}
	if m.session != nil {
		stats.SessionID = m.session.id
	}
	m.mu.Unlock()

	stats.FramesRead = m.framesRead.Load()
	stats.Dispatched = m.dispatched.Load()
	stats.DecodeErrors = m.decodeErrors.Load()
	stats.Invocation = m.registry.Load().Stats()
	if m.queue != nil {
		stats.QueueDepth = m.queue.Len()
	}
	return stats
}

// snapshot reports the state and whether any session resources are held,
// read atomically with respect to SetupTransport and Reset.
func (m *manager) snapshot() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.session != nil
}

// failLocked records a setup failure. A session that is still live keeps its
// state. Must be called with mu held.
func (m *manager) failLocked(reason FailureReason, msg string, err error) bool {
	if m.session == nil {
		m.state = StateDisconnected
	}
	m.lastFailure = reason
	m.logger.Warn(msg, "error", err, "reason", reason.String(), "uri", m.uri)
	return false
}

// teardownLocked stops the read chain, releases the session's transport and
// registration, and un-publishes its handle. Must be called with mu held.
func (m *manager) teardownLocked() {
	m.state = StateDisconnected

	sess := m.session
	if sess == nil {
		return
	}
	m.session = nil

	sess.disconnected.Store(true)
	sess.cancel()
	m.closeTransport(sess.transport)
	m.release(sess.registration)
	m.handles.Remove(m.cfg.ChannelID)
}

func (m *manager) closeTransport(t Transport) {
	if err := t.Close(); err != nil {
		m.logger.Debug("error closing transport", "error", err)
	}
}

func (m *manager) release(reg wake.Registration) {
	if err := reg.Release(); err != nil {
		m.logger.Warn("error releasing wake channel", "error", err)
	}
}

// postRead starts the read chain for sess.
func (m *manager) postRead(sess *session) error {
	if sess.disconnected.Load() {
		return ErrNotConnected
	}
	go m.readLoop(sess)
	return nil
}

// readLoop keeps exactly one read outstanding. The next read is issued only
// after the previous frame is fully processed.
func (m *manager) readLoop(sess *session) {
	for m.readNext(sess) {
	}
}

// readNext performs one read and processes its result. It reports whether
// another read should be posted.
func (m *manager) readNext(sess *session) bool {
	data, err := sess.transport.ReadFrame(sess.ctx)

	if sess.disconnected.Load() {
		return false
	}

	logger := m.logger.With("session_id", sess.id)
	switch {
	case errors.Is(err, io.EOF):
		logger.Info("server closed connection, read chain stopped")
		return false
	case err != nil:
		logger.Warn("read failed, read chain stopped", "error", err)
		return false
	case len(data) == 0:
		logger.Info("zero-length read, read chain stopped")
		return false
	}

	m.framesRead.Add(1)
	m.processFrame(sess, data)
	return true
}

func (m *manager) processFrame(sess *session, data []byte) {
	text, err := model.DecodeFrame(data)
	if err != nil {
		m.decodeErrors.Add(1)
		m.logger.Debug("dropping undecodable frame", "error", err)
		return
	}

	msg, err := model.DecodeMessage([]byte(text))
	if err != nil {
		m.decodeErrors.Add(1)
		m.logger.Debug("dropping malformed message", "error", err)
		return
	}

	m.queue.Enqueue(msg)
	m.Dispatch(msg)
	sess.registration.NotifyInbound()
}
