package wake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPinger struct {
	pings atomic.Int64
	err   error
}

func (p *countingPinger) Ping(context.Context) error {
	p.pings.Add(1)
	return p.err
}

func TestLocalChannel_AcquireRelease(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)

	reg, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)
	assert.Equal(t, "notifications", reg.ID())

	_, err = ch.Acquire("notifications", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChannelInUse))

	require.NoError(t, reg.Release())
	require.NoError(t, reg.Release(), "second release is a no-op")

	again, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLocalChannel_LockHeldByOtherChannel(t *testing.T) {
	dir := t.TempDir()
	a := NewLocalChannel(dir, nil, nil)
	b := NewLocalChannel(dir, nil, nil)

	reg, err := a.Acquire("notifications", 0)
	require.NoError(t, err)
	defer reg.Release()

	_, err = b.Acquire("notifications", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChannelInUse))
}

func TestLocalChannel_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0o500))
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	ch := NewLocalChannel(filepath.Join(parent, "locks"), nil, nil)
	_, err := ch.Acquire("notifications", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestLocalChannel_EmptyID(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)
	_, err := ch.Acquire("", 0)
	assert.Error(t, err)
}

func TestRegistration_SlotRequiresBind(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)
	reg, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)
	defer reg.Release()

	status, err := reg.AwaitSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NotAllocated, status)

	require.NoError(t, reg.Bind(&countingPinger{}))
	status, err = reg.AwaitSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SoftwareAllocated, status)
	assert.True(t, status.Allocated())
}

func TestRegistration_AwaitSlotCancelled(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)
	reg, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)
	defer reg.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err := reg.AwaitSlot(ctx)
	assert.Error(t, err)
	assert.Equal(t, NotAllocated, status)
}

func TestRegistration_BindAfterRelease(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)
	reg, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)
	require.NoError(t, reg.Release())

	assert.ErrorIs(t, reg.Bind(&countingPinger{}), ErrReleased)
}

func TestRegistration_KeepAlivePings(t *testing.T) {
	ch := NewLocalChannel(t.TempDir(), nil, nil)
	reg, err := ch.Acquire("notifications", 10*time.Millisecond)
	require.NoError(t, err)

	p := &countingPinger{err: errors.New("ignored")}
	require.NoError(t, reg.Bind(p))

	assert.Eventually(t, func() bool { return p.pings.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Release())
	after := p.pings.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, p.pings.Load(), "no pings after release")
}

func TestRegistration_NotifyInbound(t *testing.T) {
	sched := NewScheduler(4, nil)
	ch := NewLocalChannel(t.TempDir(), sched, nil)
	reg, err := ch.Acquire("notifications", 0)
	require.NoError(t, err)

	reg.NotifyInbound()
	require.Equal(t, 1, sched.Pending())
	sig := <-sched.signals
	assert.Equal(t, PushNotification, sig.Kind)
	assert.Equal(t, "notifications", sig.ChannelID)

	require.NoError(t, reg.Release())
	reg.NotifyInbound()
	assert.Equal(t, 0, sched.Pending(), "released registrations do not signal")
}
