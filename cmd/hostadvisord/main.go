// Command hostadvisord is the daemon process: it loads configuration,
// wires every subsystem through internal/daemon, and serves the IPC
// socket until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hostadvisord/hostadvisord/internal/config"
	"github.com/hostadvisord/hostadvisord/internal/daemon"
	"github.com/hostadvisord/hostadvisord/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	logFormat string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:     "hostadvisord",
	Short:   "hostadvisord - local host advisory and safe-mutation daemon",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log output format: console or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hostadvisord %s\n", Version)
	},
}

func run() error {
	logging.Init(logging.Config{Format: logFormat, Level: logLevel, Component: "hostadvisord"})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	d, err := daemon.New(cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return d.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("hostadvisord exited with an error")
		os.Exit(1)
	}
}
