/**
 * @description
 * PostgreSQL connection manager using GORM.
 * Handles connection pooling, initialization, and startup schema checks.
 *
 * @dependencies
 * - gorm.io/gorm: ORM library
 * - gorm.io/driver/postgres: Postgres driver
 */

package db

import (
	"fmt"
	"time"

	"github.com/polyndex/indexer/internal/config"
	"github.com/polyndex/indexer/internal/logger"
	"github.com/polyndex/indexer/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ConnectPostgres initializes the PostgreSQL connection
func ConnectPostgres(cfg *config.Config) (*gorm.DB, error) {
	// Configure GORM logger based on environment
	gormLogLevel := gormLogger.Error
	if cfg.Server.Env == "development" {
		gormLogLevel = gormLogger.Info
	} else if cfg.Server.Env == "staging" {
		gormLogLevel = gormLogger.Warn
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DB.URL,
		PreferSimpleProtocol: true, // disable prepared statements to avoid stmtcache collisions in serverless envs
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogLevel),
	})
	if err != nil {
		return nil, err
	}

	// Get generic database object to set connection pool params
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.DB.PoolMax
	if maxOpen <= 0 {
		maxOpen = 20
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("✅ Connected to PostgreSQL")
	return db, nil
}

// VerifySchema checks that every table the indexer writes to exists.
// The indexer refuses to run against an unmigrated database; everything else
// is recoverable, a missing table is not.
func VerifySchema(db *gorm.DB) error {
	required := []interface{}{
		&models.Event{},
		&models.Market{},
		&models.PriceSample{},
		&models.Trade{},
		&models.SyncState{},
	}

	migrator := db.Migrator()
	for _, model := range required {
		if !migrator.HasTable(model) {
			stmt := &gorm.Statement{DB: db}
			_ = stmt.Parse(model)
			return fmt.Errorf("required table %q is missing; run migrations first", stmt.Schema.Table)
		}
	}
	return nil
}
