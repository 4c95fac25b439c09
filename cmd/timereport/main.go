package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"timereport/internal/config"
	appLog "timereport/internal/log"
)

const version = "0.1.0"

// rootFlags holds the flags shared by every command.
type rootFlags struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "timereport",
		Short:         "Time reporting markers for calendar events and calendar exports",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/timereport/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file loaded before the config (optional)")

	root.AddCommand(
		newServeCmd(flags),
		newTagCmd(flags),
		newExportCmd(flags),
	)
	return root
}

// loadConfig reads the env file, the config and sets up logging.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("failed to load env file", err, "path", flags.envFile)
			return nil, err
		}
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return nil, err
	}

	appLog.Configure(appLog.Options{
		Level:      conf.Log.Level,
		File:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
		MaxAgeDays: conf.Log.MaxAgeDays,
	})
	return conf, nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
