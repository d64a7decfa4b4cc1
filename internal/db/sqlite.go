package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteConfig holds the configuration for a SQLite-backed store.
type SqliteConfig struct {
	// DatabaseFileName is the full path of the database file.
	DatabaseFileName string

	// SkipMigrations should be true if migrations shouldn't be run when
	// the store is opened.
	SkipMigrations bool
}

// SqliteStore is a database store implementation that uses a sqlite backend.
type SqliteStore struct {
	cfg *SqliteConfig

	*BaseDB
}

// DefaultDBPath returns the default path for the peertrack database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".peertrack", "peertrack.db"), nil
}

// NewSqliteStore opens the SQLite database at the configured path, applying
// pragmas and, unless disabled, all pending schema migrations.
func NewSqliteStore(cfg *SqliteConfig,
	log *slog.Logger) (*SqliteStore, error) {

	sqlDB, err := openSqlite(cfg.DatabaseFileName)
	if err != nil {
		return nil, err
	}

	store := &SqliteStore{
		cfg:    cfg,
		BaseDB: NewBaseDB(sqlDB),
	}

	if !cfg.SkipMigrations {
		if err := store.applySqliteMigrations(log); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	return store, nil
}

// applySqliteMigrations applies all pending embedded migrations to the
// sqlite database.
func (s *SqliteStore) applySqliteMigrations(log *slog.Logger) error {
	driver, err := sqlite3.WithInstance(s.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	err = applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", TargetLatest,
		defaultMigrateOptions(), log,
	)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// openSqlite opens a SQLite database connection with WAL mode enabled and
// appropriate pragmas for performance and reliability.
func openSqlite(dbPath string) (*sql.DB, error) {
	// Ensure the directory exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database "+
			"directory: %w", err)
	}

	// Open the database with foreign keys and WAL mode enabled via URI.
	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer, multiple
	// readers).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Verify connection and apply additional pragmas.
	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// configurePragmas sets additional SQLite pragmas for optimal performance.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		// Synchronous mode: NORMAL provides good durability with
		// better performance than FULL.
		"PRAGMA synchronous = NORMAL",

		// Cache size: Negative value is in KiB, 64MB cache.
		"PRAGMA cache_size = -65536",

		// Temp store: Keep temporary tables in memory.
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma,
				err)
		}
	}

	return nil
}
