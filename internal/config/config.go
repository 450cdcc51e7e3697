// Package config loads daemon settings from defaults, a TOML file, a .env
// file and HABITREFRESH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Timezone  string `toml:"timezone"`
	StatePath string `toml:"state_path"`
	Debug     bool   `toml:"debug"`
	LogFormat string `toml:"log_format"`

	HabitSource HabitSourceConfig `toml:"habit_source"`
	Host        HostConfig        `toml:"host"`
	Schedule    ScheduleConfig    `toml:"schedule"`
	Broadcast   BroadcastConfig   `toml:"broadcast"`
	Control     ControlConfig     `toml:"control"`

	// Dir is the directory holding the config file, logs and by default the
	// state database. Not persisted.
	Dir string `toml:"-"`
}

// HabitSourceConfig locates the host application's habit database
type HabitSourceConfig struct {
	Driver string `toml:"driver"`
	// Path pins the SQLite file. When empty, SearchPaths are probed in order.
	Path        string   `toml:"path"`
	SearchPaths []string `toml:"search_paths"`
	// KeyringUser selects the keyring account holding the PostgreSQL DSN.
	KeyringUser string `toml:"keyring_user"`
}

type HostConfig struct {
	Executable   string `toml:"executable"`
	ProcessName  string `toml:"process_name"`
	LockfilePath string `toml:"lockfile_path"`
	GracePeriod  string `toml:"grace_period"`
}

type ScheduleConfig struct {
	// WakeMode is one of auto, wallclock or timer.
	WakeMode string `toml:"wake_mode"`
	// WakeSpec is an optional cron expression replacing the midnight trigger.
	WakeSpec  string `toml:"wake_spec"`
	RetrySpec string `toml:"retry_spec"`
	CatchUp   bool   `toml:"catch_up"`
}

type BroadcastConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type ControlConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`

	// Secret, when set, must accompany every /v1 request.
	Secret string `toml:"secret"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	dir := utils.ExpandPath(constants.DefaultConfigDir)
	return Config{
		Timezone:  constants.DefaultTimezone,
		LogFormat: logger.FormatText,
		StatePath: filepath.Join(dir, constants.DefaultStateFile),
		HabitSource: HabitSourceConfig{
			Driver:      DriverSQLite,
			SearchPaths: DefaultSearchPaths(),
		},
		Host: HostConfig{
			Executable:  constants.DefaultHostExecutable,
			ProcessName: constants.HostProcessNamePrefix,
			GracePeriod: constants.FallbackGracePeriod.String(),
		},
		Schedule: ScheduleConfig{
			WakeMode:  constants.WakeModeAuto,
			RetrySpec: constants.DefaultRetrySpec,
			CatchUp:   true,
		},
		Broadcast: BroadcastConfig{
			Topic:    constants.DefaultRenderTopic,
			ClientID: constants.DefaultMQTTClientID,
		},
		Control: ControlConfig{
			Enabled: true,
			Addr:    constants.DefaultControlAddr,
		},
		Dir: dir,
	}
}

// DefaultSearchPaths lists where the host application usually keeps its
// database, most specific first.
func DefaultSearchPaths() []string {
	paths := []string{}
	if dataDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths,
			filepath.Join(dataDir, constants.HostAppIdentifier, "databases", constants.DefaultHabitDBName),
			filepath.Join(dataDir, constants.HostAppIdentifier, constants.DefaultHabitDBName),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".local", "share", constants.HostAppIdentifier, constants.DefaultHabitDBName),
			filepath.Join(home, "Documents", constants.DefaultHabitDBName),
		)
	}
	return paths
}

// Load builds the effective configuration. A missing config file is not an
// error; a missing .env file is silently ignored.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	path = utils.ExpandPath(path)
	if path != "" {
		cfg.Dir = filepath.Dir(path)
		cfg.StatePath = filepath.Join(cfg.Dir, constants.DefaultStateFile)

		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already present in the environment.
		_ = godotenv.Load(utils.ExpandPath(envFile))
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg.StatePath = utils.ExpandPath(cfg.StatePath)
	cfg.HabitSource.Path = utils.ExpandPath(cfg.HabitSource.Path)
	cfg.Host.LockfilePath = utils.ExpandPath(cfg.Host.LockfilePath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TIMEZONE":        &c.Timezone,
		"LOG_FORMAT":      &c.LogFormat,
		"STATE_PATH":      &c.StatePath,
		"HABIT_DRIVER":    &c.HabitSource.Driver,
		"HABIT_DB_PATH":   &c.HabitSource.Path,
		"KEYRING_USER":    &c.HabitSource.KeyringUser,
		"HOST_EXECUTABLE": &c.Host.Executable,
		"HOST_LOCKFILE":   &c.Host.LockfilePath,
		"GRACE_PERIOD":    &c.Host.GracePeriod,
		"WAKE_MODE":       &c.Schedule.WakeMode,
		"WAKE_SPEC":       &c.Schedule.WakeSpec,
		"RETRY_SPEC":      &c.Schedule.RetrySpec,
		"MQTT_BROKER":     &c.Broadcast.Broker,
		"MQTT_TOPIC":      &c.Broadcast.Topic,
		"MQTT_CLIENT_ID":  &c.Broadcast.ClientID,
		"MQTT_USERNAME":   &c.Broadcast.Username,
		"MQTT_PASSWORD":   &c.Broadcast.Password,
		"CONTROL_ADDR":    &c.Control.Addr,
		"CONTROL_SECRET":  &c.Control.Secret,
	}
	for name, dst := range strs {
		if v, ok := lookup(constants.EnvPrefix + name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DEBUG":           &c.Debug,
		"CATCH_UP":        &c.Schedule.CatchUp,
		"CONTROL_ENABLED": &c.Control.Enabled,
	}
	for name, dst := range bools {
		v, ok := lookup(constants.EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %q", constants.EnvPrefix, name, v)
		}
		*dst = b
	}
	return nil
}

// Validate checks every field that has a closed set of values
func (c Config) Validate() error {
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone: %s", c.Timezone)
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return err
	}
	if strings.TrimSpace(c.StatePath) == "" {
		return errors.New("state_path cannot be empty")
	}

	switch c.HabitSource.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported habit_source.driver %q (use %s or %s)", c.HabitSource.Driver, DriverSQLite, DriverPostgres)
	}

	switch c.Schedule.WakeMode {
	case constants.WakeModeAuto, constants.WakeModeWallClock, constants.WakeModeTimer:
	default:
		return fmt.Errorf("unsupported schedule.wake_mode %q", c.Schedule.WakeMode)
	}
	if c.Schedule.WakeSpec != "" {
		if _, err := cron.ParseStandard(c.Schedule.WakeSpec); err != nil {
			return fmt.Errorf("invalid schedule.wake_spec: %w", err)
		}
	}
	if _, err := cron.ParseStandard(c.Schedule.RetrySpec); err != nil {
		return fmt.Errorf("invalid schedule.retry_spec: %w", err)
	}

	if _, err := c.GracePeriod(); err != nil {
		return err
	}

	if c.Control.Enabled && c.Control.Secret == "" && !isLoopbackAddr(c.Control.Addr) {
		return fmt.Errorf("control.secret is required when control.addr %q is not a loopback address", c.Control.Addr)
	}
	return nil
}

func isLoopbackAddr(addr string) bool {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://")
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// GracePeriod returns the fallback wait as a duration
func (c Config) GracePeriod() (time.Duration, error) {
	if c.Host.GracePeriod == "" {
		return constants.FallbackGracePeriod, nil
	}
	d, err := time.ParseDuration(c.Host.GracePeriod)
	if err != nil {
		return 0, fmt.Errorf("invalid host.grace_period: %w", err)
	}
	if d <= 0 || d > constants.MaxFallbackGracePeriod {
		return 0, fmt.Errorf("host.grace_period must be above 0 and at most %s", constants.MaxFallbackGracePeriod)
	}
	return d, nil
}

// Location returns the configured time zone
func (c Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

// Save writes the configuration as TOML, creating the directory if needed
func (c Config) Save(path string) error {
	path = utils.ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
