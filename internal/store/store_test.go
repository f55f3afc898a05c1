package store

import (
	"context"
	"testing"

	"callos/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	cfg := config.Config{DB: config.DBConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}}
	db, closeFn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	require.NoError(t, Migrate(db))
	for _, table := range []string{"prospects", "call_sessions", "checklist_entries", "milestones",
		"milestone_responses", "objections", "objection_responses", "call_outcomes", "audit_events"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	require.NoError(t, Migrate(db))
}
