package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/logger"
)

// sqliteOptions enables foreign keys and WAL and waits on a busy database
const sqliteOptions = "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"

var _ Interface = (*SQLiteStore)(nil)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Database.SQLite.Path == "" {
		return validationError("sqlite path is required", "database.sqlite.path", "")
	}
	return nil
}

// Open creates the database file if needed, opens it with a single
// connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	log := store.logger()
	dbPath := store.Settings.Database.SQLite.Path
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				FileContext(dbPath).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+sqliteOptions), &gorm.Config{Logger: createGormLogger(log)})
	if err != nil {
		log.Error("failed to open SQLite database",
			logger.String("path", dbPath),
			logger.Error(err))
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open", "path", dbPath)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "path", dbPath)
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	if err := performAutoMigration(db, log, "SQLite", dbPath); err != nil {
		_ = store.Close()
		return err
	}
	return nil
}
