package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/rickgao/pushchannel/internal/config"
	"github.com/rickgao/pushchannel/internal/handoff"
)

const payloadPreviewLen = 48

func newQueueCommand(load func() (*config.Config, error)) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the durable handoff queue",
	}
	queueCmd.AddCommand(newQueueListCommand(load))
	return queueCmd
}

func newQueueListCommand(load func() (*config.Config, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending messages without consuming them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Queue.Backend == handoff.BackendMemory {
				return fmt.Errorf("queue list requires a durable backend, configured backend is %q", cfg.Queue.Backend)
			}

			ctx := cmd.Context()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			q, closeQueue, err := handoff.Open(ctx, cfg.Queue, cfg.Server.ChannelID, logger)
			if err != nil {
				return fmt.Errorf("open queue: %w", err)
			}
			defer closeQueue()

			lister, ok := q.(handoff.Lister)
			if !ok {
				return fmt.Errorf("queue backend %q cannot list entries", cfg.Queue.Backend)
			}

			entries, err := lister.List(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.Message.Kind.String(),
					e.EnqueuedAt.Local().Format(time.DateTime),
					preview(e.Message.Payload),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Enqueued", "Payload"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	return cmd
}

func preview(payload string) string {
	if utf8.RuneCountInString(payload) <= payloadPreviewLen {
		return payload
	}
	runes := []rune(payload)
	return string(runes[:payloadPreviewLen-1]) + "…"
}
