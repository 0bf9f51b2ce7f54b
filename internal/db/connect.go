package db

import (
	"fmt"

	"cryptovault/internal/config"

	"gorm.io/driver/mysql"  // MySQL driver for GORM
	"gorm.io/driver/sqlite" // SQLite driver for GORM
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.DBDriver
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true&charset=utf8mb4"
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.DBPath))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if cfg.IsProd {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		if err := singleWriter(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenSQLite opens a SQLite database file with foreign keys enforced.
// Writes are serialized through a single connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := singleWriter(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLite allows one writer at a time; a single pooled connection queues
// concurrent requests instead of failing them with SQLITE_BUSY.
func singleWriter(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

// SQLiteDSN builds a go-sqlite3 DSN for path
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}
