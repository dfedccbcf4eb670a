package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recipecast/internal/config"
	"recipecast/internal/preflight"
	"recipecast/internal/sizeguard"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set server.base_url and server.auth_token before publishing.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			for _, check := range preflight.RunAll(cmd.Context(), cfg) {
				marker := "ok"
				if !check.Passed {
					marker = "warn"
				}
				fmt.Fprintf(out, "  [%s] %s: %s\n", marker, check.Name, check.Detail)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			rows := [][]string{
				{"config path", resolved},
				{"config exists", yesNo(exists)},
				{"staging dir", cfg.Paths.StagingDir},
				{"log dir", cfg.Paths.LogDir},
				{"watch dir", orDash(cfg.Paths.WatchDir)},
				{"server base url", cfg.Server.BaseURL},
				{"auth token set", yesNo(strings.TrimSpace(cfg.Server.AuthToken) != "")},
				{"size ceiling", sizeguard.FormatBytes(int64(cfg.Video.SizeCeilingBytes))},
				{"max dimension", fmt.Sprintf("%dpx", cfg.Video.MaxDimension)},
				{"target bitrate", fmt.Sprintf("%d bps", cfg.Video.TargetBitrateBps)},
				{"frame rate", fmt.Sprintf("%d fps", cfg.Video.FrameRate)},
				{"ntfy topic", orDash(cfg.Notifications.NtfyTopic)},
				{"log format", cfg.Logging.Format},
				{"log level", cfg.Logging.Level},
			}
			table := renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
