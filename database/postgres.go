package database

import (
	"fmt"

	"classboard-service/config"
	"classboard-service/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConnect opens the directory/message database and migrates the
// schema. The handle is returned, never stored in a package variable, so
// every consumer receives it explicitly and tests can substitute their own.
func PostgresConnect() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.Config("POSTGRES_HOST"),
		config.Config("POSTGRES_PORT"),
		config.Config("POSTGRES_USER"),
		config.Config("POSTGRES_PASSWORD"),
		config.Config("POSTGRES_DB"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Message{},
	); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return db, nil
}
