package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clef/internal/queue"
	"clef/internal/watch"
	"clef/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the drop directory and convert new recordings",
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
				watcher, err := watch.New(cfg, store, logger)
				if err != nil {
					return err
				}
				processor := workflow.NewProcessor(cfg, store, controller, nil, logger)

				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				if err := watcher.Start(runCtx); err != nil {
					return err
				}
				defer watcher.Stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", cfg.Paths.WatchDir)
				return processor.Poll(runCtx)
			})
		},
	}
}
