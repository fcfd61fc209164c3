package main

import (
	"fmt"

	"rillscope/pkg/config"
	"rillscope/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var defaultConfigPaths = []string{
	"configs/config.yaml",
	"/etc/rillscope/config.yaml",
	"config.yaml",
}

type rootOptions struct {
	configPath string
	roomID     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rillscope",
		Short: "Live analytics for real-time call rooms",
		Long: `rillscope polls a call room's statistics, raises quality alerts,
aggregates history and serves a live dashboard over HTTP and websockets.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.roomID, "room", "", "room to observe (overrides dashboard.room_id)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides logging.level)")

	cmd.AddCommand(
		newServeCmd(opts),
		newSnapshotCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// loadConfig reads the explicit path, or the first default path that
// loads. Without any file the defaults are used.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		for _, path := range defaultConfigPaths {
			if cfg, err = config.Load(path); err == nil {
				break
			}
		}
		if cfg == nil {
			cfg = config.DefaultConfig()
		}
	}

	if o.roomID != "" {
		cfg.Dashboard.RoomID = o.roomID
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return zapLogger, nil
}
