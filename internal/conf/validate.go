// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateScheduleSettings,
		validateRetrySettings,
		validateDetectionSettings,
		validateValidationSettings,
		validateCorrelationSettings,
		validateSourceSettings,
		validateNewsSettings,
		validateOutputSettings,
		validateMQTTSettings,
		validateNotificationSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	return validateEnvTimezone(defaultIfEmpty(s.Main.Timezone, "Local"))
}

func validateScheduleSettings(s *Settings) error {
	var errs []string

	if len(s.Schedule.CollectionTimes) == 0 {
		errs = append(errs, "at least one collection time is required")
	}
	for _, clock := range s.Schedule.CollectionTimes {
		if _, _, err := ParseClock(clock); err != nil {
			errs = append(errs, fmt.Sprintf("collection time: %v", err))
		}
	}
	if _, _, err := ParseClock(s.Schedule.HealthCheckTime); err != nil {
		errs = append(errs, fmt.Sprintf("health check time: %v", err))
	}
	if _, err := ParseWeekday(s.Schedule.SummaryDay); err != nil {
		errs = append(errs, fmt.Sprintf("summary day: %v", err))
	}
	if _, _, err := ParseClock(s.Schedule.SummaryTime); err != nil {
		errs = append(errs, fmt.Sprintf("summary time: %v", err))
	}

	return joinErrs("schedule", errs)
}

func validateRetrySettings(s *Settings) error {
	var errs []string
	if s.Retry.MaxRetries < 1 {
		errs = append(errs, fmt.Sprintf("max_retries must be at least 1, got %d", s.Retry.MaxRetries))
	}
	if s.Retry.Delay < 0 {
		errs = append(errs, "delay must not be negative")
	}
	return joinErrs("retry", errs)
}

func validateDetectionSettings(s *Settings) error {
	d := s.Detection
	if d.Significant <= 0 || d.Significant >= d.Major || d.Major >= d.Anomaly {
		return fmt.Errorf("detection: thresholds must satisfy 0 < significant < major < anomaly, got %g/%g/%g",
			d.Significant, d.Major, d.Anomaly)
	}
	return nil
}

func validateValidationSettings(s *Settings) error {
	var errs []string
	v := s.Validation
	if v.MinRatio <= 0 || v.MinRatio >= v.MaxRatio {
		errs = append(errs, fmt.Sprintf("ratio band must satisfy 0 < min_ratio < max_ratio, got %g..%g", v.MinRatio, v.MaxRatio))
	}
	if v.MaxPlayers < 0 {
		errs = append(errs, "max_players must not be negative")
	}
	for site, expected := range v.Baselines {
		if expected <= 0 {
			errs = append(errs, fmt.Sprintf("baseline for %q must be positive, got %d", site, expected))
		}
	}
	return joinErrs("validation", errs)
}

func validateCorrelationSettings(s *Settings) error {
	var errs []string
	if s.Correlation.WindowDays < 0 {
		errs = append(errs, "window_days must not be negative")
	}
	if s.Correlation.MinScore <= 0 {
		errs = append(errs, fmt.Sprintf("min_score must be positive, got %v", s.Correlation.MinScore))
	}
	return joinErrs("correlation", errs)
}

func validateSourceSettings(s *Settings) error {
	var errs []string
	switch s.Source.Type {
	case "http":
		if s.Source.URL == "" {
			// allowed at load time, commands that collect check again
			break
		}
		if !strings.HasPrefix(s.Source.URL, "http://") && !strings.HasPrefix(s.Source.URL, "https://") {
			errs = append(errs, fmt.Sprintf("url must start with http:// or https://, got %q", s.Source.URL))
		}
	case "file":
		if s.Source.Path == "" {
			errs = append(errs, "path is required for the file source")
		}
	default:
		errs = append(errs, fmt.Sprintf("type must be http or file, got %q", s.Source.Type))
	}
	if s.Source.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if s.Source.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}
	return joinErrs("source", errs)
}

func validateNewsSettings(s *Settings) error {
	if !s.News.Enabled {
		return nil
	}
	var errs []string
	if s.News.FeedURL == "" {
		errs = append(errs, "feed_url is required when news is enabled")
	}
	if s.News.LookbackDays < 1 {
		errs = append(errs, "lookback_days must be at least 1")
	}
	return joinErrs("news", errs)
}

func validateOutputSettings(s *Settings) error {
	enabled := 0
	if s.Output.SQLite.Enabled {
		enabled++
		if s.Output.SQLite.Path == "" {
			return fmt.Errorf("output: sqlite path is required")
		}
	}
	if s.Output.MySQL.Enabled {
		enabled++
	}
	if s.Output.Postgres.Enabled {
		enabled++
	}
	if enabled != 1 {
		return fmt.Errorf("output: exactly one of sqlite, mysql or postgres must be enabled, got %d", enabled)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: broker is required when mqtt is enabled")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return fmt.Errorf("notification: at least one url is required when notifications are enabled")
	}
	return nil
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(value string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(value string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", value)
}

func joinErrs(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", section, strings.Join(errs, "; "))
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
