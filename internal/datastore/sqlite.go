package datastore

import (
	"os"
	"path/filepath"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens the SQLite database file and migrates the schema
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return validationError("sqlite path is empty", "output.sqlite.path", path)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_db_directory").
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical, "path", path)
	}

	// one connection: a single writer, and :memory: databases are per connection
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_sqlite", errors.PriorityCritical, "path", path)
	}
	sqlDB.SetMaxOpenConns(1)

	// SQLite leaves foreign keys unenforced unless asked, per connection
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return dbError(err, "enable_foreign_keys", errors.PriorityCritical, "path", path)
	}

	store.DB = db
	GetLogger().Debug("opened SQLite database", logger.String("path", path))
	return performAutoMigration(db, "SQLite")
}

// Close closes the SQLite database
func (store *SQLiteStore) Close() error {
	return store.closeDB("SQLite")
}
