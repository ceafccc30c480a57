package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yoockh/yoointerview/internal/models"
)

var PostgresDB *gorm.DB

func InitPostgres(ctx context.Context, a *App) error {
	db, err := gorm.Open(postgres.Open(a.PostgresURI), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(a.PostgresMaxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}

	PostgresDB = db
	return nil
}

// MigratePostgres creates the tables owned by this service. Profiles, CV
// files and conversation logs live in the shared Supabase schema.
func MigratePostgres() error {
	if PostgresDB == nil {
		return errors.New("PostgresDB is nil; call InitPostgres first")
	}
	return PostgresDB.AutoMigrate(&models.UserCredits{})
}
