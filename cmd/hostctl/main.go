// Command hostctl is the unprivileged control client for hostadvisord: it
// talks to the daemon's Unix domain socket and renders JSON results the
// operator can read or pipe to jq, mirroring the shape of cmd/pulse's
// cobra command tree but against internal/ipc instead of an HTTP API.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostadvisord/hostadvisord/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var socketPath string

var rootCmd = &cobra.Command{
	Use:           "hostctl",
	Short:         "hostctl - control client for the hostadvisord daemon",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultSocket := ""
	if cfg, err := config.Load(); err == nil {
		defaultSocket = cfg.SocketPath
	}
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "path to the hostadvisord control socket")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(autonomyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(learningCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(askCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("hostctl %s\n", Version)
		return nil
	},
}

// argError marks a client-side usage mistake (missing/invalid argument) so
// main can tell it apart from a daemon-side failure and map it to exit
// code 2 instead of 1, per the exit contract in SPEC_FULL.md §4.9.
type argError struct{ err error }

func (e *argError) Error() string { return e.err.Error() }
func (e *argError) Unwrap() error { return e.err }

func newArgError(format string, args ...interface{}) error {
	return &argError{err: fmt.Errorf(format, args...)}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ae *argError
		if errors.As(err, &ae) {
			fmt.Fprintf(os.Stderr, "hostctl: %v\n", ae.Unwrap())
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "hostctl: %v\n", err)
		os.Exit(1)
	}
}
