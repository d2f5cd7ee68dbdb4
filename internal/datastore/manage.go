package datastore

import (
	"time"

	"github.com/tphakala/pokerwatch/internal/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold is the duration above which queries are logged as slow
const slowQueryThreshold = 500 * time.Millisecond

func newGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
}

// models lists the tables in dependency order.
func models() []any {
	return []any{
		&Site{},
		&Snapshot{},
		&ChangeEvent{},
		&CorrelationRecord{},
		&NewsItem{},
		&CycleRun{},
		&CollectionStats{},
	}
}

// performAutoMigration creates or updates all tables and indexes.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	log := GetLogger().With(logger.String("db_type", dbType))
	log.Debug("starting database migration")

	for _, model := range models() {
		tableStart := time.Now()
		existed := db.Migrator().HasTable(model)
		if err := db.AutoMigrate(model); err != nil {
			log.Error("table migration failed", logger.Error(err))
			return dbError(err, "auto_migrate", "", "db_type", dbType)
		}
		action := "updated"
		if !existed {
			action = "created"
		}
		log.Debug("table migrated",
			logger.String("action", action),
			logger.Duration("duration", time.Since(tableStart)))
	}

	log.Debug("database migration completed",
		logger.Duration("total_duration", time.Since(start)),
		logger.Int("tables", len(models())))
	return nil
}
