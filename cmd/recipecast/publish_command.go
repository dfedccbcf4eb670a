package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"recipecast/internal/config"
	"recipecast/internal/notifications"
	"recipecast/internal/publish"
	"recipecast/internal/queue"
	"recipecast/internal/recipes"
	"recipecast/internal/services"
	"recipecast/internal/transcode"
	"recipecast/internal/upload"
	"recipecast/internal/watch"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var (
		recipePath  string
		title       string
		ingredients string
		steps       string
		tags        string
		tips        string
	)

	cmd := &cobra.Command{
		Use:   "publish <video>",
		Short: "Transcode, upload, and submit a recipe video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			draft, err := resolveDraft(recipePath, title, ingredients, steps, tags, tips)
			if err != nil {
				return err
			}

			return runPublish(cmd, ctx, videoPath, draft)
		},
	}

	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "Path to a recipe TOML file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Recipe title")
	cmd.Flags().StringVar(&ingredients, "ingredients", "", "Newline-separated ingredients")
	cmd.Flags().StringVar(&steps, "steps", "", "Newline-separated preparation steps")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&tips, "tips", "", "Optional serving or preparation tips")
	return cmd
}

func resolveDraft(recipePath, title, ingredients, steps, tags, tips string) (recipes.Draft, error) {
	if strings.TrimSpace(recipePath) != "" {
		return watch.LoadSidecar(recipePath)
	}
	draft := recipes.NewDraft(title, ingredients, steps, tags, tips)
	if err := draft.Validate(); err != nil {
		return recipes.Draft{}, fmt.Errorf("incomplete recipe: %w (provide --recipe or --title/--ingredients/--steps)", err)
	}
	return draft, nil
}

func runPublish(cmd *cobra.Command, ctx *commandContext, videoPath string, draft recipes.Draft) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file %s: %w", videoPath, err)
	}

	release, err := acquireProcessLock(cfg)
	if err != nil {
		return err
	}
	defer release()

	logger, err := newRunLogger(cfg, false)
	if err != nil {
		return err
	}

	return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
		raw, err := draft.Marshal()
		if err != nil {
			return err
		}
		sub, err := store.NewSubmission(cmd.Context(), videoPath, draft.Title)
		if err != nil {
			return err
		}
		sub.RecipeDraftJSON = raw
		if err := store.Update(cmd.Context(), sub); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Publishing %s (submission %d)\n", filepath.Base(videoPath), sub.ID)

		renderer := newProgressRenderer(out)
		defer renderer.Close()

		orch, err := publish.New(publish.Deps{
			Config:     cfg,
			Store:      store,
			Logger:     logger,
			Transcoder: transcode.New(cfg.FFmpegBinary(), transcode.ProfileFromConfig(cfg)),
			Uploader:   upload.NewClient(cfg),
			Submitter:  recipes.NewClient(cfg),
			Notifier:   notifications.NewService(cfg),
			OnProgress: renderer.Handle,
		})
		if err != nil {
			return err
		}

		runErr := orch.Run(cmd.Context(), sub)
		renderer.Close()

		final, loadErr := store.GetByID(cmd.Context(), sub.ID)
		if loadErr == nil {
			printOutcome(out, final, runErr)
		}
		return runErr
	})
}

func printOutcome(out io.Writer, sub *queue.Submission, runErr error) {
	switch {
	case runErr == nil:
		fmt.Fprintf(out, "Published %q\n", sub.Title)
		if sub.VideoURL != "" {
			fmt.Fprintf(out, "Video: %s\n", sub.VideoURL)
		}
	case errors.Is(runErr, services.ErrRejected):
		fmt.Fprintf(out, "Rejected: %s\n", sub.ErrorMessage)
	default:
		fmt.Fprintf(out, "Failed: %s\n", sub.ErrorMessage)
		if sub.VideoURL != "" {
			fmt.Fprintf(out, "Video was uploaded to %s; retry with `recipecast queue retry %d`\n", sub.VideoURL, sub.ID)
		}
	}
}
