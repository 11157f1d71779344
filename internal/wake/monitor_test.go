package wake

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetlinkMonitor_NilSafe(t *testing.T) {
	assert.Nil(t, NewNetlinkMonitor(nil, "notifications", nil))

	var m *NetlinkMonitor
	assert.NoError(t, m.Start(context.Background()))
	m.Stop()
	assert.False(t, m.Running())
}

func TestNetlinkMonitor_StopUnstarted(t *testing.T) {
	m := NewNetlinkMonitor(NewScheduler(1, nil), "notifications", nil)
	m.Stop()
	assert.False(t, m.Running())
}

func TestNetlinkMonitor_Matcher(t *testing.T) {
	m := NewNetlinkMonitor(NewScheduler(1, nil), "notifications", nil)
	matcher := m.buildMatcher()

	tests := []struct {
		name   string
		action netlink.KObjAction
		env    map[string]string
		want   bool
	}{
		{"interface added", netlink.ADD, map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}, true},
		{"interface removed", netlink.REMOVE, map[string]string{"SUBSYSTEM": "net", "INTERFACE": "eth0"}, true},
		{"interface renamed", netlink.MOVE, map[string]string{"SUBSYSTEM": "net", "INTERFACE": "enp3s0"}, true},
		{"block device", netlink.ADD, map[string]string{"SUBSYSTEM": "block"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := netlink.UEvent{Action: tt.action, Env: tt.env}
			assert.Equal(t, tt.want, matcher.Evaluate(ev))
		})
	}
}

func TestNetlinkMonitor_HandleEvent(t *testing.T) {
	sched := NewScheduler(4, nil)
	m := NewNetlinkMonitor(sched, "notifications", nil)

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "lo"}})
	assert.Equal(t, 0, sched.Pending(), "loopback changes are ignored")

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}})
	require.Equal(t, 1, sched.Pending())
	sig := sched.takeNetwork()[0]
	assert.Equal(t, NetworkChanged, sig.Kind)
	assert.Equal(t, "notifications", sig.ChannelID)
}

func TestResolvConfWatcher_SignalsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 1.1.1.1\n"), 0o644))

	sched := NewScheduler(16, nil)
	w := NewResolvConfWatcher(path, sched, "notifications", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644)
		_ = os.WriteFile(path, []byte("nameserver 8.8.8.8\n"), 0o644)
		return sched.Pending() > 0
	}, 2*time.Second, 20*time.Millisecond)

	sigs := sched.takeNetwork()
	require.Len(t, sigs, 1)
	sig := sigs[0]
	assert.Equal(t, NetworkChanged, sig.Kind)
	assert.Equal(t, "notifications", sig.ChannelID)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestResolvConfWatcher_MissingDir(t *testing.T) {
	w := NewResolvConfWatcher(filepath.Join(t.TempDir(), "missing", "resolv.conf"), NewScheduler(1, nil), "notifications", nil)
	assert.Error(t, w.Run(context.Background()))
}
