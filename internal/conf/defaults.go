// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default pipeline constants shared with the packages that consume them.
const (
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 5 * time.Minute
	DefaultSignificant       = 15.0
	DefaultMajor             = 25.0
	DefaultAnomaly           = 50.0
	DefaultMinRatio          = 0.01
	DefaultMaxRatio          = 10.0
	DefaultMaxPlayers        = 500000
	DefaultWindowDays        = 3
	DefaultMinScore          = 1.0
	DefaultStaleAfter        = 24 * time.Hour
	DefaultMinFreeBytes      = 1 << 30
	DefaultNewsLookbackDays  = 7
	DefaultSourceTimeout     = 30 * time.Second
	DefaultNotifyTimeout     = 10 * time.Second
	DefaultNewsCacheDuration = 30 * time.Minute
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "pokerwatch")
	viper.SetDefault("main.timezone", "Local")
	viper.SetDefault("main.roster", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/pokerwatch.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("schedule.collection_times", []string{"09:00", "15:00", "21:00"})
	viper.SetDefault("schedule.health_check_time", "00:00")
	viper.SetDefault("schedule.summary_day", "sunday")
	viper.SetDefault("schedule.summary_time", "10:00")

	viper.SetDefault("retry.max_retries", DefaultMaxRetries)
	viper.SetDefault("retry.delay", DefaultRetryDelay)

	viper.SetDefault("detection.significant", DefaultSignificant)
	viper.SetDefault("detection.major", DefaultMajor)
	viper.SetDefault("detection.anomaly", DefaultAnomaly)

	viper.SetDefault("validation.min_ratio", DefaultMinRatio)
	viper.SetDefault("validation.max_ratio", DefaultMaxRatio)
	viper.SetDefault("validation.max_players", DefaultMaxPlayers)
	viper.SetDefault("validation.baselines", map[string]int{})

	viper.SetDefault("correlation.enabled", true)
	viper.SetDefault("correlation.window_days", DefaultWindowDays)
	viper.SetDefault("correlation.min_score", DefaultMinScore)

	viper.SetDefault("source.type", "http")
	viper.SetDefault("source.url", "")
	viper.SetDefault("source.path", "snapshots.json")
	viper.SetDefault("source.timeout", DefaultSourceTimeout)
	viper.SetDefault("source.rate_limit", 1.0)
	viper.SetDefault("source.user_agent", "pokerwatch/1.0")

	viper.SetDefault("news.enabled", false)
	viper.SetDefault("news.feed_url", "")
	viper.SetDefault("news.timeout", DefaultSourceTimeout)
	viper.SetDefault("news.cache_ttl", DefaultNewsCacheDuration)
	viper.SetDefault("news.lookback_days", DefaultNewsLookbackDays)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "pokerwatch.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.postgres.enabled", false)
	viper.SetDefault("output.postgres.port", "5432")
	viper.SetDefault("output.postgres.sslmode", "disable")

	viper.SetDefault("health.stale_after", DefaultStaleAfter)
	viper.SetDefault("health.min_free_bytes", DefaultMinFreeBytes)
	viper.SetDefault("health.path", "")

	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.listen", "127.0.0.1:8080")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic", "pokerwatch/changes")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.timeout", DefaultNotifyTimeout)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
