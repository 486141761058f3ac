package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"HotspotLite/internal/app"
	"HotspotLite/internal/config"
	"HotspotLite/internal/infrastructure/batchfile"
	"HotspotLite/internal/logging"
	"HotspotLite/internal/usecase"
)

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "hotspot",
		Short:         "Hotspot news ingestion, scoring and clustering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (default $"+config.PathEnv+")")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env", nil, "Env files to load before reading config (default .env)")

	root.AddCommand(
		newServeCmd(opts),
		newRunCmd(opts),
		newIngestCmd(opts),
		newReclusterCmd(opts),
	)
	return root
}

// bootstrap loads configuration and builds the application.
func bootstrap(ctx context.Context, opts *rootOptions) (*app.Application, *slog.Logger, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build application: %w", err)
	}
	return application, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the read API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, logger, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(ctx); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch every enabled source once, then score and cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Close()

			res, err := application.RunOnce(cmd.Context())
			printRun(cmd.OutOrStdout(), res)
			return err
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process a JSON candidate batch file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := batchfile.LoadFile(file)
			if err != nil {
				return err
			}

			application, _, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Close()

			res, err := application.Ingest(cmd.Context(), batch)
			printRun(cmd.OutOrStdout(), res)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Candidate batch JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReclusterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recluster",
		Short: "Rebuild events from stored articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Close()

			n, err := application.Recluster(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "events: %d\n", n)
			return nil
		},
	}
}

func printRun(w io.Writer, res usecase.RunResult) {
	for _, src := range res.Sources {
		if src.Err != nil {
			fmt.Fprintf(w, "source %-16s %-7s error: %v\n", src.ID, src.Kind, src.Err)
			continue
		}
		fmt.Fprintf(w, "source %-16s %-7s %d candidates\n", src.ID, src.Kind, src.Count)
	}
	fmt.Fprintf(w, "processed %d, inserted %d, updated %d, dropped %d, failed %d\n",
		res.Upsert.Processed, res.Upsert.Inserted, res.Upsert.Updated, res.Upsert.Dropped, len(res.Upsert.Failures))
	fmt.Fprintf(w, "scored %d, events %d\n", res.Scored, res.Events)
}
