// config.go: settings for the collection pipeline, loaded with viper
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gopkg.in/yaml.v3"
)

// MainSettings holds process-wide options.
type MainSettings struct {
	Name     string `yaml:"name" mapstructure:"name"`         // instance name, used as MQTT client id
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // schedule timezone, "Local" or IANA name
	Roster   string `yaml:"roster" mapstructure:"roster"`     // optional roster YAML, built-in roster when empty
}

// ScheduleSettings controls when cycles, health checks and summaries run.
type ScheduleSettings struct {
	CollectionTimes []string `yaml:"collection_times" mapstructure:"collection_times"` // "HH:MM" in Main.Timezone
	HealthCheckTime string   `yaml:"health_check_time" mapstructure:"health_check_time"`
	SummaryDay      string   `yaml:"summary_day" mapstructure:"summary_day"` // weekday name, e.g. "sunday"
	SummaryTime     string   `yaml:"summary_time" mapstructure:"summary_time"`
}

// RetrySettings bounds whole-cycle retries.
type RetrySettings struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"` // total attempts per tick
	Delay      time.Duration `yaml:"delay" mapstructure:"delay"`             // fixed delay between attempts
}

// DetectionSettings holds the magnitude tier boundaries in percent.
type DetectionSettings struct {
	Significant float64 `yaml:"significant" mapstructure:"significant"`
	Major       float64 `yaml:"major" mapstructure:"major"`
	Anomaly     float64 `yaml:"anomaly" mapstructure:"anomaly"`
}

// ValidationSettings configures the plausibility filter.
type ValidationSettings struct {
	MinRatio   float64        `yaml:"min_ratio" mapstructure:"min_ratio"`     // lowest accepted players/expected ratio
	MaxRatio   float64        `yaml:"max_ratio" mapstructure:"max_ratio"`     // highest accepted players/expected ratio
	MaxPlayers int            `yaml:"max_players" mapstructure:"max_players"` // absolute cap, 0 disables
	Baselines  map[string]int `yaml:"baselines" mapstructure:"baselines"`     // expected players per canonical site name
}

// CorrelationSettings configures news matching.
type CorrelationSettings struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	WindowDays int     `yaml:"window_days" mapstructure:"window_days"`
	MinScore   float64 `yaml:"min_score" mapstructure:"min_score"`
}

// SourceSettings selects the snapshot source.
type SourceSettings struct {
	Type      string        `yaml:"type" mapstructure:"type"` // "http" or "file"
	URL       string        `yaml:"url" mapstructure:"url"`
	Path      string        `yaml:"path" mapstructure:"path"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RateLimit float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// NewsSettings configures the news feed collaborator.
type NewsSettings struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	FeedURL      string        `yaml:"feed_url" mapstructure:"feed_url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	LookbackDays int           `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// SQLiteSettings configures the SQLite backend.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// MySQLSettings configures the MySQL backend.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
}

// PostgresSettings configures the PostgreSQL backend.
type PostgresSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// OutputSettings selects exactly one storage backend.
type OutputSettings struct {
	SQLite   SQLiteSettings   `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL    MySQLSettings    `yaml:"mysql" mapstructure:"mysql"`
	Postgres PostgresSettings `yaml:"postgres" mapstructure:"postgres"`
}

// HealthSettings configures the daily health check.
type HealthSettings struct {
	StaleAfter   time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
	MinFreeBytes uint64        `yaml:"min_free_bytes" mapstructure:"min_free_bytes"`
	Path         string        `yaml:"path" mapstructure:"path"` // filesystem to check, defaults to the database directory
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// MQTTSettings configures change-event publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// NotificationSettings configures shoutrrr alert delivery.
type NotificationSettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Settings contains all configuration options.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Main         MainSettings         `yaml:"main" mapstructure:"main"`
	Logging      logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Schedule     ScheduleSettings     `yaml:"schedule" mapstructure:"schedule"`
	Retry        RetrySettings        `yaml:"retry" mapstructure:"retry"`
	Detection    DetectionSettings    `yaml:"detection" mapstructure:"detection"`
	Validation   ValidationSettings   `yaml:"validation" mapstructure:"validation"`
	Correlation  CorrelationSettings  `yaml:"correlation" mapstructure:"correlation"`
	Source       SourceSettings       `yaml:"source" mapstructure:"source"`
	News         NewsSettings         `yaml:"news" mapstructure:"news"`
	Output       OutputSettings       `yaml:"output" mapstructure:"output"`
	Health       HealthSettings       `yaml:"health" mapstructure:"health"`
	WebServer    WebServerSettings    `yaml:"webserver" mapstructure:"webserver"`
	MQTT         MQTTSettings         `yaml:"mqtt" mapstructure:"mqtt"`
	Notification NotificationSettings `yaml:"notification" mapstructure:"notification"`
	Sentry       SentrySettings       `yaml:"sentry" mapstructure:"sentry"`
}

// Location returns the schedule timezone, falling back to time.Local.
func (s *Settings) Location() *time.Location {
	switch s.Main.Timezone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the default config locations and environment variables.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads configFile (or the default locations when empty) plus
// environment overrides, validates the result and stores it as the current
// settings instance.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds the environment and reads the config file.
// A missing config file is not an error; defaults and environment apply.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "read_config").
			Build()
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pokerwatch"))
	}
	return append(paths, "/etc/pokerwatch")
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName) //nolint:errcheck // no-op after a successful rename

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
