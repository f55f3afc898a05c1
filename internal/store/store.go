// Package store opens the configured database and owns the schema.
package store

import (
	"context"
	"fmt"

	"callos/internal/audit"
	"callos/internal/calls"
	"callos/internal/checklist"
	"callos/internal/config"
	"callos/internal/milestones"
	"callos/internal/objections"
	"callos/internal/outcomes"
	"callos/internal/prospects"
	"callos/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/gorm"
)

// AllModels lists every persisted type in dependency order.
func AllModels() []any {
	return []any{
		&prospects.Prospect{},
		&calls.CallSession{},
		&checklist.Entry{},
		&milestones.Milestone{},
		&milestones.MilestoneResponse{},
		&objections.Objection{},
		&objections.Response{},
		&outcomes.CallOutcome{},
		&audit.Event{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Open connects to postgres through pgx, or sqlite when configured. The returned
// close function releases the underlying pool.
func Open(ctx context.Context, cfg config.Config) (*gorm.DB, func() error, error) {
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		db, err := utils.OpenSQLite(cfg.DB.SQLitePath, cfg.DB.Debug)
		if err != nil {
			return nil, nil, fmt.Errorf("store: sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return db, sqlDB.Close, nil
	default:
		sqlDB, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, fmt.Errorf("store: postgres: %w", err)
		}
		db, err := utils.OpenGorm(sqlDB, cfg.DB.Debug)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("store: gorm: %w", err)
		}
		return db, sqlDB.Close, nil
	}
}
