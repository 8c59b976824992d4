package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Auth holds the static basic auth credentials.
type Auth struct {
	// Enabled turns basic auth on for every API endpoint.
	Enabled bool `yaml:"enabled"`
	// Username is the expected basic auth user.
	Username string `yaml:"username"`
	// Password is the expected basic auth password.
	Password string `yaml:"password"`
	// Realm is announced in the WWW-Authenticate challenge.
	Realm string `yaml:"realm"`
}

// Config holds every setting of the alarm server process.
type Config struct {
	// ListenHost is the interface the HTTP server binds to.
	ListenHost string `yaml:"listen_host"`
	// ListenPort is the TCP port the HTTP server binds to.
	ListenPort int `yaml:"listen_port"`
	// AlarmFile is the path to the alarm sound.
	AlarmFile string `yaml:"alarm_file"`
	// Auth configures basic authentication.
	Auth Auth `yaml:"auth"`
	// LoopDuration bounds a looping session before it stops by itself.
	LoopDuration time.Duration `yaml:"loop_duration"`
	// StopDelay is how long a delayed stop waits.
	StopDelay time.Duration `yaml:"stop_delay"`
	// DefaultVolume is the volume in percent applied at startup.
	DefaultVolume *int `yaml:"default_volume"`
	// Player selects the audio backend: "oto" or "command".
	Player string `yaml:"player"`
	// PlayerCommand pins the executable used by the "command" backend.
	PlayerCommand string `yaml:"player_command,omitempty"`
	// LogLevel is the minimum level written to the logs.
	LogLevel string `yaml:"log_level"`
	// LogFile receives a copy of the logs; empty disables it.
	LogFile string `yaml:"log_file"`
}

const (
	// DefaultConfigFilename is the default filename for server settings.
	DefaultConfigFilename = "alarm-server-settings.yaml"

	// DefaultListenHost listens on all interfaces for LAN access.
	DefaultListenHost = "0.0.0.0"

	// DefaultListenPort is the default HTTP port.
	DefaultListenPort = 5000

	// DefaultAlarmFile is the alarm sound looked up next to the settings.
	DefaultAlarmFile = "alarm.mp3"

	// DefaultRealm is the basic auth realm.
	DefaultRealm = "Alarm Server"

	// DefaultLoopDuration is how long a looping alarm keeps playing.
	DefaultLoopDuration = 6 * time.Hour

	// DefaultStopDelay is the wait before a delayed stop takes effect.
	DefaultStopDelay = 10 * time.Second

	// DefaultVolume is the startup volume in percent.
	DefaultVolume = 70

	// DefaultLogFile is the file receiving a copy of the logs.
	DefaultLogFile = "alarm_server.log"

	// DefaultLogLevel is the minimum level logged.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// PlayerOto decodes the file in-process and writes to the audio device.
	PlayerOto = "oto"

	// PlayerCommand delegates playback to an OS player executable.
	PlayerCommand = "command"

	// maxVolume is the upper bound of the volume scale.
	maxVolume = 100

	// maxPort is the highest valid TCP port.
	maxPort = 65535
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errCredentialsRequired is returned when auth is on without credentials.
	errCredentialsRequired = errors.New("auth is enabled but username or password is empty")
	// errAlarmFileRequired is returned when the alarm file is cleared explicitly.
	errAlarmFileRequired = errors.New("alarm file must be provided")
)

// Default returns the settings used when no configuration file exists.
func Default() *Config {
	cfg := &Config{
		AlarmFile: DefaultAlarmFile,
		Auth: Auth{
			Enabled:  true,
			Username: "admin",
			Password: "alarm123",
		},
		LogFile: DefaultLogFile,
	}

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A relative alarm file is resolved against the directory of the settings file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Config{
		Auth:    Auth{Enabled: true},
		LogFile: DefaultLogFile,
	}

	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if cfg.AlarmFile == "" {
		cfg.AlarmFile = DefaultAlarmFile
	}

	if !filepath.IsAbs(cfg.AlarmFile) {
		cfg.AlarmFile = filepath.Join(filepath.Dir(path), cfg.AlarmFile)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file holds a password.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ListenHost == "" {
		settings.ListenHost = DefaultListenHost
	}

	if settings.ListenPort == 0 {
		settings.ListenPort = DefaultListenPort
	}

	if settings.ListenPort < 0 || settings.ListenPort > maxPort {
		return fmt.Errorf("invalid listen port %d", settings.ListenPort)
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.Address()); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if settings.AlarmFile == "" {
		return errAlarmFileRequired
	}

	if settings.Auth.Realm == "" {
		settings.Auth.Realm = DefaultRealm
	}

	if settings.Auth.Enabled && (settings.Auth.Username == "" || settings.Auth.Password == "") {
		return errCredentialsRequired
	}

	if settings.LoopDuration <= 0 {
		settings.LoopDuration = DefaultLoopDuration
	}

	if settings.StopDelay <= 0 {
		settings.StopDelay = DefaultStopDelay
	}

	if settings.DefaultVolume == nil {
		volume := DefaultVolume
		settings.DefaultVolume = &volume
	}

	if v := *settings.DefaultVolume; v < 0 || v > maxVolume {
		return fmt.Errorf("invalid default volume %d: must be between 0 and %d", v, maxVolume)
	}

	switch settings.Player {
	case "":
		settings.Player = PlayerOto
	case PlayerOto, PlayerCommand:
	default:
		return fmt.Errorf("unknown player backend %q", settings.Player)
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	return nil
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.ListenPort))
}

// Volume returns the startup volume, falling back to DefaultVolume.
func (c *Config) Volume() int {
	if c.DefaultVolume == nil {
		return DefaultVolume
	}

	return *c.DefaultVolume
}
