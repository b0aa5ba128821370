package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"betternews/internal/bench"
	"betternews/internal/config"
	"betternews/internal/logging"
)

var errIntegrity = errors.New("points do not match upvotes")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "forumbench",
		Short:        "Load generator for the betternews API",
		SilenceUsage: true,
	}
	root.AddCommand(newUpvotesCmd())
	return root
}

func newUpvotesCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		cfg        = bench.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "upvotes",
		Short: "Upvote one post from many users concurrently and verify its points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				fileCfg, err := bench.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				// 命令行显式指定的参数优先
				flags := cmd.Flags()
				if !flags.Changed("target") {
					cfg.Target = fileCfg.Target
				}
				if !flags.Changed("voters") {
					cfg.Voters = fileCfg.Voters
				}
				if !flags.Changed("unvoters") {
					cfg.Unvoters = fileCfg.Unvoters
				}
				if !flags.Changed("concurrency") {
					cfg.Concurrency = fileCfg.Concurrency
				}
				if !flags.Changed("timeout") {
					cfg.Timeout = fileCfg.Timeout
				}
				cfg.Password = fileCfg.Password
			}

			logger, err := logging.New(config.LoggingConfig{Level: logLevel, Format: "text"})
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := bench.NewRunner(cfg, logger).Run(ctx)
			if err != nil {
				logger.Error("bench failed", zap.Error(err))
				return err
			}
			if err := bench.WriteReport(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.DataIntegrity {
				return errIntegrity
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.StringVar(&cfg.Target, "target", cfg.Target, "base URL of the server")
	f.IntVar(&cfg.Voters, "voters", cfg.Voters, "users that upvote the post")
	f.IntVar(&cfg.Unvoters, "unvoters", cfg.Unvoters, "voters that take their upvote back")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "requests in flight")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
