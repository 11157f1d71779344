package wake

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrPermissionDenied = errors.New("wake channel permission denied")
	ErrChannelInUse     = errors.New("wake channel already in use")
	ErrReleased         = errors.New("wake registration released")
)

// SlotStatus is the outcome of waiting for a background execution slot.
type SlotStatus int

const (
	NotAllocated SlotStatus = iota
	HardwareAllocated
	SoftwareAllocated
)

func (s SlotStatus) String() string {
	switch s {
	case NotAllocated:
		return "NotAllocated"
	case HardwareAllocated:
		return "HardwareAllocated"
	case SoftwareAllocated:
		return "SoftwareAllocated"
	default:
		return "Unknown"
	}
}

// Allocated reports whether a slot of either kind was granted.
func (s SlotStatus) Allocated() bool {
	return s == HardwareAllocated || s == SoftwareAllocated
}

// SignalKind identifies what woke the client.
type SignalKind int

const (
	PushNotification SignalKind = iota
	NetworkChanged
)

func (k SignalKind) String() string {
	switch k {
	case PushNotification:
		return "PushNotification"
	case NetworkChanged:
		return "NetworkChanged"
	default:
		return "Unknown"
	}
}

// Signal is a single wake event for a channel.
type Signal struct {
	Kind      SignalKind
	ChannelID string
	At        time.Time
}

// KeepAliver is a transport that can be pinged to keep it open while idle.
type KeepAliver interface {
	Ping(ctx context.Context) error
}

// Channel grants wake registrations.
type Channel interface {
	// Acquire registers for wake delivery under id. Policy failures wrap
	// ErrPermissionDenied or ErrChannelInUse.
	Acquire(id string, keepAlive time.Duration) (Registration, error)
}

// Registration is an exclusive claim on a wake channel id.
type Registration interface {
	// ID returns the channel id.
	ID() string

	// Bind attaches a transport and starts keeping it alive.
	Bind(k KeepAliver) error

	// AwaitSlot blocks until a background slot is granted or refused.
	AwaitSlot(ctx context.Context) (SlotStatus, error)

	// NotifyInbound signals that data arrived on the bound transport.
	NotifyInbound()

	// Release stops keep-alive and gives up the channel id. Safe to call
	// more than once.
	Release() error
}
