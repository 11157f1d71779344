package wake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

// NetlinkMonitor listens for udev net subsystem events and delivers
// NetworkChanged signals for a channel.
type NetlinkMonitor struct {
	sched     *Scheduler
	channelID string
	logger    *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewNetlinkMonitor creates a monitor. It returns nil when sched is nil.
func NewNetlinkMonitor(sched *Scheduler, channelID string, logger *slog.Logger) *NetlinkMonitor {
	if sched == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NetlinkMonitor{
		sched:     sched,
		channelID: channelID,
		logger:    logger.With("component", "netlink-monitor"),
	}
}

// Start begins listening. Failure to open the netlink socket is logged and
// not returned; network changes then go unnoticed until restart.
func (m *NetlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; network changes will not trigger reconnects",
			"error", err,
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("netlink monitor started", "channel_id", m.channelID)
	return nil
}

// Stop shuts down the monitor.
func (m *NetlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped")
}

// Running reports whether the monitor is active.
func (m *NetlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *NetlinkMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error", "error", err)
		}
	}
}

// buildMatcher matches SUBSYSTEM=net with ACTION add|remove|change|move.
func (m *NetlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|change|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (m *NetlinkMonitor) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "lo" {
		return
	}

	m.logger.Info("network interface changed",
		"interface", iface,
		"action", string(uevent.Action),
	)
	m.sched.Deliver(Signal{Kind: NetworkChanged, ChannelID: m.channelID, At: time.Now()})
}
