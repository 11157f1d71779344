package connection

import (
	"errors"
	"time"

	"github.com/rickgao/pushchannel/internal/invocation"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// FailureReason classifies why the last SetupTransport returned false.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureConfig
	FailurePolicy
	FailureTransport
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureConfig:
		return "config"
	case FailurePolicy:
		return "policy"
	case FailureTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// TransportConfig configures WebSocket transports.
type TransportConfig struct {
	HandshakeTimeout time.Duration // Dial handshake limit
	WriteTimeout     time.Duration // Write deadline for sends and control frames
	PingTimeout      time.Duration // Max time without inbound activity before closing; 0 disables
	ReadLimit        int64         // Max frame size in bytes; 0 means unlimited
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingTimeout:      90 * time.Second,
		ReadLimit:        64 * 1024,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	ChannelID       string              // Wake channel id and handle registry key
	KeepAlive       time.Duration       // Keep-alive interval passed to the wake channel
	RegistryOptions []invocation.Option // Applied to every invocation registry the manager creates
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ChannelID: "notifications",
		KeepAlive: 30 * time.Second,
	}
}

// Stats is a point-in-time view of a manager.
type Stats struct {
	State        State
	SessionID    string
	URI          string
	FramesRead   int64
	Dispatched   int64
	DecodeErrors int64
	LastFailure  FailureReason
	QueueDepth   int
	Invocation   invocation.Stats
}
