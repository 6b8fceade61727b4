package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"harmony/internal/rest"
	"harmony/pkg/harmony"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

type envConfig struct {
	Token    string `env:"HARMONY_TOKEN,required"`
	APIBase  string `env:"HARMONY_API_BASE"`
	LogLevel string `env:"HARMONY_LOG_LEVEL" envDefault:"info"`
}

type purgeFlags struct {
	channel  string
	before   string
	after    string
	limit    int
	contains string
	reason   string
}

func newRootCommand() *cobra.Command {
	flags := &purgeFlags{}

	command := &cobra.Command{
		Use:           "purge",
		Short:         "Bulk-delete recent messages from one channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, _ []string) error {
			return runPurge(command, flags)
		},
	}

	command.Flags().StringVar(&flags.channel, "channel", "", "channel id to purge (required)")
	command.Flags().StringVar(&flags.before, "before", "", "only consider messages older than this id")
	command.Flags().StringVar(&flags.after, "after", "", "only consider messages newer than this id")
	command.Flags().IntVar(&flags.limit, "limit", -1, "maximum messages to scan, -1 for no cap")
	command.Flags().StringVar(&flags.contains, "contains", "", "only delete messages containing this substring")
	command.Flags().StringVar(&flags.reason, "reason", "", "audit log reason")
	_ = command.MarkFlagRequired("channel")

	return command
}

func runPurge(command *cobra.Command, flags *purgeFlags) error {
	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return fmt.Errorf("load environment config: %w", err)
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse HARMONY_LOG_LEVEL: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	opts, channelID, err := buildPurgeRequest(flags)
	if err != nil {
		return err
	}

	restOptions := []rest.Option{rest.WithLogger(logger)}
	if cfg.APIBase != "" {
		restOptions = append(restOptions, rest.WithBaseURL(cfg.APIBase))
	}
	client, err := harmony.New(rest.New(cfg.Token, restOptions...), harmony.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	deleted, err := client.PurgeMessages(command.Context(), channelID, opts)
	if err != nil {
		return fmt.Errorf("purge channel %s: %w", channelID, err)
	}

	logger.Info("purge finished", "channel_id", channelID.String(), "deleted", deleted)

	return nil
}

func buildPurgeRequest(flags *purgeFlags) (harmony.PurgeOptions, harmony.Snowflake, error) {
	channelID, err := harmony.ParseSnowflake(strings.TrimSpace(flags.channel))
	if err != nil {
		return harmony.PurgeOptions{}, 0, fmt.Errorf("parse --channel: %w", err)
	}

	opts := harmony.PurgeOptions{
		Limit:  flags.limit,
		Reason: flags.reason,
	}
	if raw := strings.TrimSpace(flags.before); raw != "" {
		before, err := harmony.ParseSnowflake(raw)
		if err != nil {
			return harmony.PurgeOptions{}, 0, fmt.Errorf("parse --before: %w", err)
		}
		opts.Before = before
	}
	if raw := strings.TrimSpace(flags.after); raw != "" {
		after, err := harmony.ParseSnowflake(raw)
		if err != nil {
			return harmony.PurgeOptions{}, 0, fmt.Errorf("parse --after: %w", err)
		}
		opts.After = after
	}
	if flags.contains != "" {
		opts.Filter = harmony.ContentContains(flags.contains)
	}

	return opts, channelID, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
