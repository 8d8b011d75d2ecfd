package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/chatwrapped/internal/config"
	"github.com/xxxsen/chatwrapped/internal/job"
	"github.com/xxxsen/chatwrapped/internal/pipeline"
	"github.com/xxxsen/chatwrapped/internal/schedule"
)

func main() {
	var configPath string
	var runID string

	rootCmd := &cobra.Command{
		Use:   "chatwrapped",
		Short: "conversation archive analytics pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "pipeline run id (defaults to a new one)")

	setup := func() (*config.Config, *pipeline.Pipeline, error) {
		if configPath == "" {
			return nil, nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		p, err := pipeline.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return cfg, p, nil
	}

	runCmd := &cobra.Command{
		Use:   "run <archive.json>",
		Short: "run the full pipeline on one archive export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			result, err := p.Run(signalContext(), args[0], runID)
			if err != nil {
				return err
			}
			fmt.Println(result.RunID)
			return nil
		},
	}

	compressCmd := &cobra.Command{
		Use:   "compress <archive.json>",
		Short: "run only the compression stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			_, err = p.RunCompress(signalContext(), args[0], runID)
			return err
		},
	}

	embedCmd := &cobra.Command{
		Use:   "embed",
		Short: "embed the compressed messages of an existing run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			_, err = p.RunEmbed(signalContext(), runID)
			return err
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "segment and score an existing embedded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			_, err = p.RunAnalyze(signalContext(), runID)
			return err
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "extract slide insights from an existing run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := setup()
			if err != nil {
				return err
			}
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			_, err = p.RunExtract(signalContext(), runID)
			return err
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "expire old runs once according to the retention config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := setup()
			if err != nil {
				return err
			}
			retention := job.NewRetentionJob(p.Store(), cfg.Retention.KeepDays, cfg.Retention.MaxRuns)
			return retention.Run(signalContext())
		},
	}

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "keep the retention schedule running until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := setup()
			if err != nil {
				return err
			}
			if !cfg.Retention.Enabled {
				return fmt.Errorf("retention is disabled in config")
			}
			ctx := signalContext()
			scheduler := schedule.NewCronScheduler()
			retention := job.NewRetentionJob(p.Store(), cfg.Retention.KeepDays, cfg.Retention.MaxRuns)
			if err := scheduler.AddJob(retention, cfg.Retention.CronSpec); err != nil {
				return err
			}
			scheduler.Start(ctx)
			<-ctx.Done()
			logutil.GetLogger(context.Background()).Info("daemon stopping...")
			scheduler.Stop()
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, compressCmd, embedCmd, analyzeCmd, extractCmd, cleanupCmd, daemonCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command error", zap.Error(err))
	}
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
