// cmd/extract/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github-activity-extractor/internal/config"
	"github-activity-extractor/internal/extractor"
	"github-activity-extractor/internal/github"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("Extraction failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <owner/repository>",
		Short: "Extract repository data from GitHub",
		Long: `Fetches the commits, issues, pull requests and issue comments of a GitHub
repository and writes them to <out>/<repository>/{commits,issues,pulls,comments}.csv.
Files that already exist are left untouched, so an interrupted run can be resumed
by running the same command again.`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), args[0], cmd.ErrOrStderr())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, flags *pflag.FlagSet, repoArg string, logOut io.Writer) error {
	// 1. Validate the repository identifier
	ref, err := extractor.ParseRepoRef(repoArg)
	if err != nil {
		return err
	}

	// 2. Load configuration
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize structured logger
	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	// 4. Setup context for interruption
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 5. Initialize the GitHub client and check the credential
	client, err := github.NewClient(cfg.Key, logger,
		github.WithBaseURL(cfg.BaseURL),
		github.WithPerPage(cfg.PerPage),
		github.WithRequestRate(cfg.Rate),
	)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	quota, err := client.FetchQuota(ctx)
	if err != nil {
		return err
	}
	logger.Info("Remaining API hits", "remaining", quota.Remaining, "limit", quota.Limit)
	logger.Info("Reset time", "reset_at", quota.Reset.Local().Format(time.DateTime), "resets", humanize.Time(quota.Reset))

	repo, err := client.GetRepository(ctx, ref.Owner, ref.Name)
	if err != nil {
		return err
	}

	// 6. Run the passes
	return extractor.New(client, logger).Run(ctx, repo, cfg.OutDir)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logLevel := new(slog.LevelVar)
	setLogLevel(cfg.LogLevel, logLevel)

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
