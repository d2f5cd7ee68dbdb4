// env.go - Environment variable configuration and validation for pokerwatch
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		// Pipeline
		{"main.timezone", "POKERWATCH_TIMEZONE", validateEnvTimezone},
		{"schedule.collection_times", "POKERWATCH_COLLECTION_TIMES", validateEnvClockList},
		{"schedule.health_check_time", "POKERWATCH_HEALTH_CHECK_TIME", validateEnvClock},
		{"schedule.summary_day", "POKERWATCH_SUMMARY_DAY", validateEnvWeekday},
		{"schedule.summary_time", "POKERWATCH_SUMMARY_TIME", validateEnvClock},
		{"retry.max_retries", "POKERWATCH_MAX_RETRIES", validateEnvPositiveInt},
		{"retry.delay", "POKERWATCH_RETRY_DELAY", validateEnvDuration},
		{"detection.significant", "POKERWATCH_THRESHOLD_SIGNIFICANT", validateEnvPercent},
		{"detection.major", "POKERWATCH_THRESHOLD_MAJOR", validateEnvPercent},
		{"detection.anomaly", "POKERWATCH_THRESHOLD_ANOMALY", validateEnvPercent},
		{"correlation.window_days", "POKERWATCH_CORRELATION_WINDOW_DAYS", validateEnvPositiveInt},
		{"source.url", "POKERWATCH_SOURCE_URL", nil},
		{"news.feed_url", "POKERWATCH_NEWS_FEED_URL", nil},

		// Database, as named by the original deployment
		{"output.postgres.host", "DB_HOST", nil},
		{"output.postgres.port", "DB_PORT", validateEnvPort},
		{"output.postgres.database", "DB_NAME", nil},
		{"output.postgres.username", "DB_USER", nil},
		{"output.postgres.password", "DB_PASSWORD", nil},

		// Logging
		{"logging.default_level", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.console.level", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.file_output.path", "LOG_FILE", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if err := applyEnvImplications(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// applyEnvImplications handles variables that switch features on rather than
// map to a single key.
func applyEnvImplications() error {
	// DB_HOST selects the PostgreSQL backend
	if os.Getenv("DB_HOST") != "" {
		viper.Set("output.postgres.enabled", true)
		viper.Set("output.sqlite.enabled", false)
		viper.Set("output.mysql.enabled", false)
	}

	// LOG_FILE turns on file output
	if os.Getenv("LOG_FILE") != "" {
		viper.Set("logging.file_output.enabled", true)
	}

	// CRAWLER_TIMEOUT is plain seconds
	if raw := os.Getenv("CRAWLER_TIMEOUT"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("invalid CRAWLER_TIMEOUT value '%s': must be a positive number of seconds", raw)
		}
		viper.Set("source.timeout", time.Duration(seconds)*time.Second)
	}

	// a comma separated list is friendlier than viper's space separated default
	if raw := os.Getenv("POKERWATCH_COLLECTION_TIMES"); raw != "" {
		viper.Set("schedule.collection_times", splitList(raw))
	}

	return nil
}

// configureEnvironmentVariables sets up environment variable support
func configureEnvironmentVariables() error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Environment variable validation functions

func validateEnvTimezone(value string) error {
	if value == "Local" {
		return nil
	}
	if _, err := time.LoadLocation(value); err != nil {
		return fmt.Errorf("unknown timezone: %w", err)
	}
	return nil
}

func validateEnvClock(value string) error {
	_, _, err := ParseClock(value)
	return err
}

func validateEnvClockList(value string) error {
	items := splitList(value)
	if len(items) == 0 {
		return fmt.Errorf("at least one HH:MM time is required")
	}
	for _, item := range items {
		if err := validateEnvClock(item); err != nil {
			return err
		}
	}
	return nil
}

func validateEnvWeekday(value string) error {
	_, err := ParseWeekday(value)
	return err
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than zero, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration, expected e.g. '5m': %w", err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

func validateEnvPercent(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("threshold must be positive, got %g", f)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error", "critical":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}
