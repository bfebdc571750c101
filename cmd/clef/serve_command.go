package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clef/internal/queue"
	"clef/internal/server"
	"clef/internal/watch"
	"clef/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status API and queue drainer",
		Long: "Runs the HTTP status API and continuously drains the queue. " +
			"When a watch directory is configured the drop-directory monitor runs as well.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			controller, err := ctx.newController(logger)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				srv, err := server.New(cfg, store, logger)
				if err != nil {
					return err
				}
				processor := workflow.NewProcessor(cfg, store, controller, nil, logger)

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := srv.Start(runCtx); err != nil {
					return err
				}
				defer srv.Stop()

				if cfg.Watch.Enabled && strings.TrimSpace(cfg.Paths.WatchDir) != "" {
					watcher, err := watch.New(cfg, store, logger)
					if err != nil {
						return err
					}
					if err := watcher.Start(runCtx); err != nil {
						return err
					}
					defer watcher.Stop()
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", srv.Addr())
				return processor.Poll(runCtx)
			})
		},
	}
}
