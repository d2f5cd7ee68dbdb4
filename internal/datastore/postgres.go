package datastore

import (
	"net"
	"net/url"

	"github.com/lib/pq"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements Interface for PostgreSQL, the backend of the
// original deployment. Connections go through lib/pq.
type PostgresStore struct {
	DataStore
	Settings *conf.Settings
}

// postgresDSN converts the settings to a lib/pq key=value connection string.
func postgresDSN(settings *conf.PostgresSettings) (string, error) {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(settings.Username, settings.Password),
		Host:   net.JoinHostPort(settings.Host, settings.Port),
		Path:   "/" + settings.Database,
	}
	q := url.Values{}
	if settings.SSLMode != "" {
		q.Set("sslmode", settings.SSLMode)
	}
	u.RawQuery = q.Encode()
	return pq.ParseURL(u.String())
}

// Open connects to PostgreSQL and migrates the schema
func (store *PostgresStore) Open() error {
	settings := &store.Settings.Output.Postgres

	dsn, err := postgresDSN(settings)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "build_postgres_dsn").
			Build()
	}

	dialector := postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		GetLogger().Error("failed to open PostgreSQL database",
			logger.String("host", settings.Host),
			logger.String("database", settings.Database),
			logger.Error(err))
		return dbError(err, "open_postgres", errors.PriorityCritical,
			"host", settings.Host,
			"database", settings.Database)
	}

	store.DB = db
	return performAutoMigration(db, "PostgreSQL")
}

// Close closes the PostgreSQL connection pool
func (store *PostgresStore) Close() error {
	return store.closeDB("PostgreSQL")
}
