package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/remote-alarm/internal/config"
	"github.com/oshokin/remote-alarm/internal/service/server"
	"github.com/oshokin/remote-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// listenAddress overrides the host and port from the settings.
	listenAddress string
	// alarmFile overrides the alarm sound from the settings.
	alarmFile string
	// logLevel overrides the log level from the settings.
	logLevel string
	// noAuth disables basic auth.
	noAuth bool

	// rootCmd represents the base command for running the HTTP server.
	rootCmd = &cobra.Command{
		Use:   "alarm-server",
		Short: "Run the remote alarm HTTP server.",
		Long: `Starts the HTTP server that plays the alarm sound on this machine.

Clients on the network can play the alarm once, loop it for a bounded time,
stop it immediately or after a short delay, and change the volume.
A control page is served at "/" and the JSON API under "/api".
Settings are read from a YAML file; built-in defaults apply when the default
file does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				AlarmFile:     alarmFile,
				LogLevel:      logLevel,
				DisableAuth:   noAuth,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the alarm-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&listenAddress, "listen", "l", "", "listen address override, e.g. :8080 or 127.0.0.1:5000")
	rootCmd.Flags().StringVarP(&alarmFile, "alarm-file", "f", "", "path to the alarm sound override")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&noAuth, "no-auth", false, "disable basic auth")
}
