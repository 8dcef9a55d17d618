package datastore

import (
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/iconscan/internal/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is considered slow.
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// createGormLogger routes GORM statements through the module logger
func createGormLogger(log logger.Logger) gormlogger.Interface {
	return logger.NewGormLoggerAdapter(log, DefaultSlowQueryThreshold)
}

// performAutoMigration creates or updates the schema
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Template{}, &Detection{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType)
	}
	log.Info("database schema ready",
		logger.String("db_type", dbType),
		logger.String("connection", logger.RedactSensitiveData(connectionInfo)))
	return nil
}
