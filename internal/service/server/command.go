package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	api "github.com/oshokin/remote-alarm/internal/api/http/alarm"
	"github.com/oshokin/remote-alarm/internal/config"
	"github.com/oshokin/remote-alarm/internal/logger"
	"github.com/oshokin/remote-alarm/internal/player"
	"github.com/oshokin/remote-alarm/internal/player/command"
	"github.com/oshokin/remote-alarm/internal/player/device"
	"github.com/oshokin/remote-alarm/internal/service/alarm"
	"github.com/oshokin/remote-alarm/internal/version"
)

// Options controls the alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the host and port from the settings.
	ListenAddress string
	// AlarmFile overrides the alarm sound from the settings.
	AlarmFile string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// DisableAuth turns basic auth off regardless of the settings.
	DisableAuth bool
}

const (
	// readHeaderTimeout bounds how long a client may take to send headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second
)

// errUnknownLogLevel is returned for a log level ParseLogLevel rejects.
var errUnknownLogLevel = errors.New("unknown log level")

// Run starts the HTTP server and blocks until context is canceled or server stops.
// Loads configuration first, then builds the player, the state machine and the router.
//
//nolint:cyclop,funlen // Linear startup sequence, splitting would scatter it.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		opts = new(Options)
	}

	// Load configuration first, the logger depends on it.
	settings, usingDefaults, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	if settings.LogFile != "" {
		option, closeFile, sinkErr := logger.WithFileSink(settings.LogFile)
		if sinkErr != nil {
			return fmt.Errorf("open log file: %w", sinkErr)
		}

		logger.SetLogger(logger.New(nil, option))

		defer func() {
			logger.Sync()

			_ = closeFile()
		}()
	}

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-server")

	if usingDefaults {
		logger.WarnKV(ctx, "Settings file not found, using defaults", "config_path", opts.ConfigPath)
	}

	warnOtherInstances(ctx)

	if _, err = os.Stat(settings.AlarmFile); err != nil {
		logger.WarnKV(ctx, "Alarm file is not readable, playback will fail until it exists",
			"alarm_file", settings.AlarmFile, "error", err)
	}

	p, err := newPlayer(settings)
	if err != nil {
		return fmt.Errorf("initialise player: %w", err)
	}

	volume := settings.Volume()

	machine, err := alarm.NewMachine(p, &alarm.Options{
		Volume:       &volume,
		AlarmFile:    settings.AlarmFile,
		LoopDuration: settings.LoopDuration,
		StopDelay:    settings.StopDelay,
	})
	if err != nil {
		_ = p.Close()

		return fmt.Errorf("initialise alarm: %w", err)
	}

	defer func() {
		if closeErr := machine.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release player", "error", closeErr)
		}
	}()

	listenAddress := settings.Address()
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	gin.SetMode(gin.ReleaseMode)

	router := api.NewRouter(ctx, machine, &api.RouterOptions{
		Username:    settings.Auth.Username,
		Password:    settings.Auth.Password,
		Realm:       settings.Auth.Realm,
		AuthEnabled: settings.Auth.Enabled,
	})

	// Setup TCP listener for the HTTP server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if !settings.Auth.Enabled {
		logger.WarnKV(ctx, "Basic auth is disabled, anyone on the network can control the alarm")
	}

	logger.InfoKV(ctx, "Alarm server listening",
		"version", version.Full(),
		"listen_address", lis.Addr().String(),
		"alarm_file", settings.AlarmFile,
		"player", settings.Player,
		"volume", volume,
		"auth_enabled", settings.Auth.Enabled,
	)

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.ErrorKV(ctx, "Graceful shutdown failed", "error", shutdownErr)
		}
	}()

	if err = httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// loadSettings reads the settings file. A missing file at the default
// location yields the built-in defaults and reports true.
func loadSettings(path string) (*config.Config, bool, error) {
	if path == "" {
		path = config.DefaultConfigFilename
	}

	settings, err := config.Load(path)

	switch {
	case err == nil:
		return settings, false, nil
	case errors.Is(err, os.ErrNotExist) && path == config.DefaultConfigFilename:
		return config.Default(), true, nil
	default:
		return nil, false, err
	}
}

// applyOverrides copies non-empty command line options onto the settings.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.AlarmFile != "" {
		settings.AlarmFile = opts.AlarmFile
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	if opts.DisableAuth {
		settings.Auth.Enabled = false
	}
}

// newPlayer builds the audio backend selected in the settings.
//
//nolint:ireturn // The backend is chosen at runtime.
func newPlayer(settings *config.Config) (player.Player, error) {
	switch settings.Player {
	case config.PlayerCommand:
		p, err := command.New(settings.PlayerCommand)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		return device.New(), nil
	}
}
