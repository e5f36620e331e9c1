package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// Per-statement timeout for catalog queries.
const defaultTimeout = 5 * time.Second

// Database is the SQLite-backed catalog store.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   metrics.Stats
	statsMu sync.RWMutex
	txStart time.Time
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"_journal_mode=WAL",
	"_synchronous=NORMAL",
	"_cache_size=10000",
	"_temp_store=MEMORY",
	"_busy_timeout=5000",
	"_foreign_keys=on",
}

// New opens the catalog at dbPath, a file inside an existing writable
// directory, and brings the schema up to date.
func New(ctx context.Context, dbPath string) (*Database, error) {
	restoreSidecarPermissions(dbPath)

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(pragmas, "&"))
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dbPath, err)
	}

	d := &Database{db: db, dbPath: dbPath}
	if err := d.open(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("closing catalog after failed open: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Catalog ready at %s", dbPath)
	return d, nil
}

func (d *Database) open(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("connect to catalog: %w", err)
	}

	// WAL allows concurrent readers alongside the single scan writer.
	d.db.SetMaxOpenConns(25)
	d.db.SetMaxIdleConns(10)
	d.db.SetConnMaxLifetime(time.Hour)

	if err := d.initialize(ctx); err != nil {
		return fmt.Errorf("initialize catalog schema: %w", err)
	}
	return nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- Catalog items. parent_id is NULL only for the aggregate root.
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES items(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		type TEXT NOT NULL,
		is_folder INTEGER NOT NULL DEFAULT 0,
		dont_fetch_meta INTEGER NOT NULL DEFAULT 0,
		overview TEXT NOT NULL DEFAULT '',
		production_year INTEGER NOT NULL DEFAULT 0,
		size INTEGER NOT NULL DEFAULT 0,
		primary_image_path TEXT NOT NULL DEFAULT '',
		backdrop_image_paths TEXT NOT NULL DEFAULT '[]',
		date_created INTEGER NOT NULL,
		date_modified INTEGER NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);
	CREATE INDEX IF NOT EXISTS idx_items_path ON items(path);
	CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);

	-- Additional physical locations of collection folders
	CREATE TABLE IF NOT EXISTS item_locations (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (item_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_item_locations_path ON item_locations(path);

	-- Per-provider refresh bookkeeping
	CREATE TABLE IF NOT EXISTS provider_data (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		last_refreshed INTEGER NOT NULL DEFAULT 0,
		last_refresh_status TEXT NOT NULL DEFAULT '',
		provider_version TEXT NOT NULL DEFAULT '',
		file_system_stamp TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (item_id, provider)
	);

	-- External ids such as tmdb
	CREATE TABLE IF NOT EXISTS provider_ids (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (item_id, provider)
	);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Run migrations
	err = d.runMigrations(ctx)
	return err
}

// columnMigration adds a column to databases created before it existed.
type columnMigration struct {
	table  string
	column string
	ddl    string
}

var columnMigrations = []columnMigration{
	{"items", "container", "ALTER TABLE items ADD COLUMN container TEXT NOT NULL DEFAULT ''"},
}

// runMigrations adds columns missing from older catalogs.
func (d *Database) runMigrations(ctx context.Context) error {
	for _, m := range columnMigrations {
		var columnExists bool
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info(?)
			WHERE name = ?
		`, m.table, m.column).Scan(&columnExists)
		if err != nil {
			return fmt.Errorf("failed to check for %s.%s column: %w", m.table, m.column, err)
		}

		if columnExists {
			continue
		}

		logging.Info("Migrating database: adding %s column to %s table", m.column, m.table)
		if _, err := d.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", m.column, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a write transaction for a scan batch. The caller must
// finish it with EndBatch; d.mu is held only while the transaction begins.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndBatch, not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits tx, or rolls it back when err is non-nil.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// UpdateStats replaces the cached catalog statistics.
func (d *Database) UpdateStats(stats metrics.Stats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats = stats
}

// GetStats returns the cached catalog statistics. It satisfies
// metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// Vacuum rebuilds the database file after large deletions.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery counts a query by outcome and observes its latency.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics publishes the connection pool size.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// restoreSidecarPermissions makes leftover WAL and shared-memory files
// writable again. Copies restored from backups are often read-only, which
// otherwise fails the first write long after startup.
func restoreSidecarPermissions(dbPath string) {
	for _, suffix := range []string{"-wal", "-shm"} {
		side := dbPath + suffix
		info, err := os.Stat(side)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		if err := os.Chmod(side, 0o600); err != nil {
			logging.Error("%s is read-only and cannot be fixed: %v", side, err)
			continue
		}
		logging.Warn("%s was read-only; permissions restored", side)
	}
}
