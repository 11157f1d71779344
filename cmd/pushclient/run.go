package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pushchannel/internal/config"
	"github.com/rickgao/pushchannel/internal/connection"
	"github.com/rickgao/pushchannel/internal/consumer"
	"github.com/rickgao/pushchannel/internal/handoff"
	"github.com/rickgao/pushchannel/internal/logging"
	"github.com/rickgao/pushchannel/internal/render"
	"github.com/rickgao/pushchannel/internal/status"
	"github.com/rickgao/pushchannel/internal/version"
	"github.com/rickgao/pushchannel/internal/wake"
)

const (
	connectBaseWait = time.Second
	connectMaxWait  = 60 * time.Second
)

// errConfigRejected is returned when the server uri can never succeed.
var errConfigRejected = errors.New("server uri rejected")

func newRunCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the push server and process messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

// run wires every component and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting pushclient",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"channel_id", cfg.Server.ChannelID,
		"queue_backend", cfg.Queue.Backend,
	)

	queue, closeQueue, err := handoff.Open(ctx, cfg.Queue, cfg.Server.ChannelID, logger)
	if err != nil {
		return fmt.Errorf("open handoff queue: %w", err)
	}
	defer closeQueue()

	sched := wake.NewScheduler(cfg.Wake.SignalBuffer, logger)
	channel := wake.NewLocalChannel(cfg.Wake.LockDir, sched, logger)
	handles := wake.NewRegistry[*connection.Handle]()

	dialer := connection.NewWebSocketDialer(connection.TransportConfig{
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		PingTimeout:      cfg.Server.PingTimeout,
		ReadLimit:        cfg.Server.ReadLimit,
	}, logger)

	mgr := connection.NewManager(connection.ManagerConfig{
		ChannelID: cfg.Server.ChannelID,
		KeepAlive: cfg.Server.KeepAlive,
	}, dialer, channel, handles, queue, logger)
	registerActions(mgr, logger)

	networkChange := consumer.NewNetworkChange(handles, logger, consumer.WithAfterReset(func(m connection.Manager) {
		registerActions(m, logger)
	}))
	pushWake := consumer.NewPushWake(handles, render.NewLogRenderer(logger), logger)

	sched.On(wake.NetworkChanged, networkChange.Handle)
	sched.On(wake.PushNotification, pushWake.Handle)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if cfg.Wake.Netlink {
		monitor := wake.NewNetlinkMonitor(sched, cfg.Server.ChannelID, logger)
		if err := monitor.Start(gctx); err != nil {
			return fmt.Errorf("start netlink monitor: %w", err)
		}
		defer monitor.Stop()
	}

	if cfg.Wake.ResolvConf != "" {
		watcher := wake.NewResolvConfWatcher(cfg.Wake.ResolvConf, sched, cfg.Server.ChannelID, logger)
		g.Go(func() error {
			// Non-fatal; netlink or a restart still recovers the connection.
			if err := watcher.Run(gctx); err != nil {
				logger.Warn("resolv.conf watcher stopped", "error", err)
			}
			return nil
		})
	}

	if cfg.Status.Enabled {
		srv := status.NewServer(mgr,
			status.WithLogger(logger),
			status.WithComponent("scheduler", func() any { return sched.Stats() }),
			status.WithComponent("network_change", func() any { return networkChange.Stats() }),
			status.WithComponent("push_wake", func() any { return pushWake.Stats() }),
			status.WithComponent("queue", queueStats(queue)),
		)
		g.Go(func() error {
			return srv.Run(gctx, cfg.Status.Port)
		})
	}

	g.Go(func() error {
		return connectWithRetry(gctx, mgr, cfg.Server.URI, logger)
	})

	logger.Info("pushclient running", "uri", cfg.Server.URI)

	err = g.Wait()
	mgr.Reset()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("pushclient stopped")
	return nil
}

// queueStats reports ring statistics for the in-memory queue and only the
// pending count for durable backends.
func queueStats(q handoff.Queue) func() any {
	if mem, ok := q.(*handoff.Memory); ok {
		return func() any { return mem.Stats() }
	}
	return func() any { return map[string]int{"pending": q.Len()} }
}

// registerActions installs the client methods the server may invoke.
func registerActions(mgr connection.Manager, logger *slog.Logger) {
	mgr.RegisterAction("Send", func(args []any) {
		logger.Info("server invoked Send", "args", args)
	})
	mgr.RegisterAction("Echo", func(args []any) {
		if len(args) == 0 {
			return
		}
		text, ok := args[0].(string)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mgr.Send(ctx, text); err != nil {
			logger.Warn("echo failed", "error", err)
		}
	})
}

// connectWithRetry performs the initial SetupTransport, backing off
// exponentially between attempts. Later reconnects are driven by network
// change signals.
func connectWithRetry(ctx context.Context, mgr connection.Manager, uri string, logger *slog.Logger) error {
	wait := connectBaseWait
	for attempt := 1; ; attempt++ {
		if mgr.SetupTransport(ctx, uri) {
			return nil
		}

		reason := mgr.LastFailure()
		if reason == connection.FailureConfig {
			return fmt.Errorf("%w: %s", errConfigRejected, uri)
		}

		logger.Warn("connect attempt failed, retrying",
			"attempt", attempt,
			"reason", reason.String(),
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		wait *= 2
		if wait > connectMaxWait {
			wait = connectMaxWait
		}
	}
}
