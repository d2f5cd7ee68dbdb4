package datastore

import (
	"net"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// mysqlDSN builds the connection string with the driver's own formatter so
// credentials with special characters are escaped correctly.
func mysqlDSN(settings *conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, settings.Port)
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and migrates the schema
func (store *MySQLStore) Open() error {
	settings := &store.Settings.Output.MySQL
	log := GetLogger().With(logger.String("db_type", "MySQL"))

	db, err := gorm.Open(mysql.Open(mysqlDSN(settings)), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("host", settings.Host),
			logger.String("port", settings.Port),
			logger.String("database", settings.Database),
			logger.Error(err))
		return dbError(err, "open_mysql", errors.PriorityCritical,
			"host", settings.Host,
			"database", settings.Database)
	}

	store.DB = db
	return performAutoMigration(db, "MySQL")
}

// Close closes the MySQL connection pool
func (store *MySQLStore) Close() error {
	return store.closeDB("MySQL")
}
