package database

import (
	"log"

	"backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM.
// TranslateError turns driver constraint violations into gorm.ErrDuplicatedKey
// and gorm.ErrForeignKeyViolated so services can map them to domain errors.
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate creates or updates the schema for all core models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Department{},
		&model.Category{},
		&model.User{},
		&model.RefreshToken{},
		&model.PurchaseRequest{},
		&model.AuditLog{},
	)
}
