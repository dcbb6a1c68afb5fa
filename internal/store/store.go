package store

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jklovins/mediagen/internal/config"
	"github.com/jklovins/mediagen/internal/models"
)

// ErrStaleWorkItem is returned by UpdateWorkItem when another writer
// committed first; the caller's copy is outdated and its write was
// discarded.
var ErrStaleWorkItem = errors.New("work item was modified concurrently")

// Store is the typed storage surface consumed by the generation
// pipeline. All updates are whole-entity saves inside an implicit
// per-call transaction.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode, cfg.TimeZone)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.WorkGroup{},
		&models.WorkItem{},
		&models.GenerationParameter{},
		&models.ParameterOption{},
		&models.BaseImage{},
		&models.GenerationSettings{},
		&models.WebhookLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// New wraps an already opened database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for server-level health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}
