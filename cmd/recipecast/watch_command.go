package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recipecast/internal/config"
	"recipecast/internal/logging"
	"recipecast/internal/preflight"
	"recipecast/internal/queue"
	"recipecast/internal/staging"
	"recipecast/internal/watch"
	"recipecast/internal/workflow"
)

// staleArtifactAge is how long an abandoned staging entry may linger before
// the watch daemon reclaims the disk space at startup.
const staleArtifactAge = 7 * 24 * time.Hour

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the drop folder and publish videos automatically",
		Long: "Runs until interrupted. Videos dropped into paths.watch_dir with a\n" +
			"matching <name>.recipe.toml sidecar are queued and published.",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			release, err := acquireProcessLock(cfg)
			if err != nil {
				return err
			}
			defer release()

			logger, err := newRunLogger(cfg, true)
			if err != nil {
				return err
			}

			for _, check := range preflight.RunAll(signalCtx, cfg) {
				if !check.Passed {
					logger.Warn("preflight check failed",
						logging.String("check", check.Name),
						logging.String("detail", check.Detail),
					)
				}
			}
			staging.CleanStale(signalCtx, cfg.StagingDir(), staleArtifactAge, logger)

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				watcher, err := watch.NewWatcher(cfg, store, logger)
				if err != nil {
					return err
				}

				manager := workflow.NewManager(cfg, store, logger)
				if err := manager.Start(signalCtx); err != nil {
					return err
				}
				defer manager.Stop()

				if err := watcher.Start(signalCtx); err != nil {
					return err
				}
				defer watcher.Stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (ctrl-c to stop)\n", cfg.Paths.WatchDir)
				<-signalCtx.Done()
				fmt.Fprintln(cmd.OutOrStdout(), "Shutting down")
				return nil
			})
		},
	}
}
