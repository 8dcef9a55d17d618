package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	m := settings.Database.MySQL
	switch {
	case m.Host == "":
		return validationError("mysql host is required", "database.mysql.host", "")
	case m.Username == "":
		return validationError("mysql username is required", "database.mysql.username", "")
	case m.Database == "":
		return validationError("mysql database is required", "database.mysql.database", "")
	case m.Port <= 0 || m.Port > 65535:
		return validationError("mysql port is out of range", "database.mysql.port", m.Port)
	}
	return nil
}

// mysqlDSN builds the driver connection string
func mysqlDSN(m conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// Open connects to MySQL and migrates the schema
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	log := store.logger()
	m := store.Settings.Database.MySQL
	dsn := mysqlDSN(m)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(log)})
	if err != nil {
		log.Error("failed to open MySQL database",
			logger.String("host", m.Host),
			logger.Int("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open MySQL database: %w", err), "open", "host", m.Host)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "host", m.Host)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store.DB = db
	if err := performAutoMigration(db, log, "MySQL", dsn); err != nil {
		_ = store.Close()
		return err
	}
	return nil
}
