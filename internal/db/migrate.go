package db

import (
	"cryptovault/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"
	"gorm.io/gorm" // GORM ORM library
)

// Models lists every table owned by the service, in dependency order
func Models() []any {
	return []any{
		&domain.User{},
		&domain.AuthAccount{},
		&domain.SmartContract{},
		&domain.Dataset{},
		&domain.Transaction{},
		&domain.APIKey{},
		&domain.AuditLog{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	logrus.Info("Migration completed.")
	return nil
}
