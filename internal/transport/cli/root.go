// Package cli implements the reqcheck command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/bootstrap"
	"github.com/kailas-cloud/reqcheck/internal/config"
	logpkg "github.com/kailas-cloud/reqcheck/internal/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "reqcheck",
	Short: "Check requirements against implementation documentation",
	Long: `reqcheck extracts requirements from a specification and judges, one by one,
whether the implementation documentation covers them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a YAML config file (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command. Results go to stdout, logs and errors to stderr.
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withApp wires the application for one command. tune may adjust the config first.
func withApp(cmd *cobra.Command, tune func(*config.Config), fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tune != nil {
		tune(&cfg)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logpkg.NewLogger("cli", level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := logpkg.ContextWithLogger(cmd.Context(), logger)
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Debug("wiring failed", zap.Error(err))
		return fmt.Errorf("start: %w", err)
	}
	defer app.Close()

	return fn(ctx, app)
}
