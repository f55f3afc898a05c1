package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresPoolConfig controls database/sql pool behavior.
// Keep it config-driven; defaults should be safe and conservative.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func (c PostgresPoolConfig) withDefaults() PostgresPoolConfig {
	out := c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 25
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = 25
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	return out
}

// OpenPostgres opens a Postgres connection using database/sql.
// driverName should typically be "pgx" (pgx stdlib).
// dsn must not be logged; it contains secrets.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := HealthCheck(ctx, db, pool.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings the DB with a timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// OpenGorm wraps an already-pooled *sql.DB (pgx stdlib) in a gorm handle.
// Pool settings stay owned by OpenPostgres.
func OpenGorm(sqlDB *sql.DB, debug bool) (*gorm.DB, error) {
	if sqlDB == nil {
		return nil, errors.New("sql db is nil")
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig(debug))
}

// OpenSQLite opens a sqlite-backed gorm handle. Used for local development and tests.
// A single connection keeps ":memory:" databases consistent across queries.
func OpenSQLite(path string, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(debug))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig(debug bool) *gorm.Config {
	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

type txKey struct{}

// txState is the unit of work carried on the context.
type txState struct {
	tx          *gorm.DB
	afterCommit []func()
}

func txFrom(ctx context.Context) *txState {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok || st == nil || st.tx == nil {
		return nil
	}
	return st
}

// Conn returns the transaction carried by ctx, or db bound to ctx when there is none.
// Repositories call this so that they join an enclosing WithTx unit of work.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if st := txFrom(ctx); st != nil {
		return st.tx
	}
	return db.WithContext(ctx)
}

// InTx reports whether ctx already carries a transaction.
func InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// AfterCommit defers fn until the outermost transaction on ctx commits. Hooks are
// dropped on rollback. Without a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if st := txFrom(ctx); st != nil {
		st.afterCommit = append(st.afterCommit, fn)
		return
	}
	fn()
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context) error

// WithTx runs fn inside a transaction carried on the context.
// - If ctx already carries a transaction, fn joins it.
// - If fn returns error: tx is rolled back and the error is returned.
// - If fn panics: tx is rolled back and the panic is re-thrown.
// - If commit fails: commit error is returned.
// - After a successful commit the AfterCommit hooks run in registration order.
func WithTx(ctx context.Context, db *gorm.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx := db.WithContext(ctx).Begin(opts)
	if tx.Error != nil {
		return fmt.Errorf("begin tx: %w", tx.Error)
	}
	st := &txState{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit().Error; cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
			return
		}
		for _, hook := range st.afterCommit {
			hook()
		}
	}()

	err = fn(context.WithValue(ctx, txKey{}, st))
	return err
}
