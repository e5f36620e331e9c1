package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-library/internal/filesystem"
	"media-library/internal/library"
	"media-library/internal/metrics"
)

var _ library.Store = (*Database)(nil)

const itemColumns = `id, parent_id, name, path, type, dont_fetch_meta, overview, production_year,
	container, size, primary_image_path, backdrop_image_paths, date_created, date_modified`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// normalizePath cleans a path so lookups are insensitive to trailing
// separators. The empty path stays empty.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

func scanItem(row rowScanner) (*library.Item, error) {
	var (
		item      library.Item
		parentID  uuid.NullUUID
		itemType  string
		backdrops string
		created   int64
		modified  int64
	)
	err := row.Scan(
		&item.ID, &parentID, &item.Name, &item.Path, &itemType, &item.DontFetchMeta,
		&item.Overview, &item.ProductionYear, &item.Container, &item.Size,
		&item.PrimaryImagePath, &backdrops, &created, &modified,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		item.ParentID = parentID.UUID
	}
	item.Type = library.ItemType(itemType)
	item.DateCreated = time.UnixMilli(created)
	item.DateModified = time.UnixMilli(modified)
	if backdrops != "" {
		if err := json.Unmarshal([]byte(backdrops), &item.BackdropImagePaths); err != nil {
			return nil, fmt.Errorf("decode backdrops for %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

// hydrate loads the child tables of an item.
func hydrate(ctx context.Context, q querier, item *library.Item) error {
	rows, err := q.QueryContext(ctx, "SELECT path FROM item_locations WHERE item_id = ? ORDER BY position", item.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		item.PhysicalLocations = append(item.PhysicalLocations, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, "SELECT provider, value FROM provider_ids WHERE item_id = ?", item.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			rows.Close()
			return err
		}
		item.SetProviderID(name, value)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT provider, last_refreshed, last_refresh_status, provider_version, file_system_stamp
		FROM provider_data WHERE item_id = ?
	`, item.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name   string
			info   library.ProviderInfo
			millis int64
			status string
		)
		if err := rows.Scan(&name, &millis, &status, &info.ProviderVersion, &info.FileSystemStamp); err != nil {
			return err
		}
		if millis > 0 {
			info.LastRefreshed = time.UnixMilli(millis)
		}
		info.LastRefreshStatus = library.RefreshStatus(status)
		item.SetProviderInfo(name, info)
	}
	return rows.Err()
}

func (d *Database) queryItems(ctx context.Context, query string, args ...any) ([]*library.Item, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var items []*library.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := hydrate(ctx, d.db, item); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (d *Database) queryItem(ctx context.Context, query string, args ...any) (*library.Item, error) {
	item, err := scanItem(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := hydrate(ctx, d.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Root returns the aggregate root, creating it on first use.
func (d *Database) Root(ctx context.Context) (*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_root", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var root *library.Item
	root, err = d.queryItem(ctx, "SELECT "+itemColumns+" FROM items WHERE type = ? LIMIT 1", string(library.TypeAggregateFolder))
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	root = &library.Item{
		ID:           uuid.New(),
		Name:         "root",
		Type:         library.TypeAggregateFolder,
		DateCreated:  now,
		DateModified: now,
	}
	err = upsertItem(ctx, d.db, root)
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return root, nil
}

// GetByID returns the item with the given id.
func (d *Database) GetByID(ctx context.Context, id uuid.UUID) (*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_id", start, ignoreNotFound(err)) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var item *library.Item
	item, err = d.queryItem(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	return item, err
}

// FindByPath returns the item at path. Collection folders also match on
// any of their physical locations.
func (d *Database) FindByPath(ctx context.Context, path string) (*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_by_path", start, ignoreNotFound(err)) }()

	path = normalizePath(path)
	if path == "" {
		err = library.ErrNotFound
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var item *library.Item
	item, err = d.queryItem(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE path = ? AND type != ?
		ORDER BY date_created LIMIT 1
	`, path, string(library.TypeAggregateFolder))
	if !errors.Is(err, library.ErrNotFound) {
		return item, err
	}

	item, err = d.queryItem(ctx, `
		SELECT `+prefixed("i", itemColumns)+` FROM items i
		JOIN item_locations l ON l.item_id = i.id
		WHERE l.path = ?
		LIMIT 1
	`, path)
	return item, err
}

// Parent returns the item's parent, or ErrNotFound for the root.
func (d *Database) Parent(ctx context.Context, item *library.Item) (*library.Item, error) {
	if item.ParentID == uuid.Nil {
		return nil, library.ErrNotFound
	}
	return d.GetByID(ctx, item.ParentID)
}

// Children returns the direct children of a folder ordered by name.
func (d *Database) Children(ctx context.Context, id uuid.UUID) ([]*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("children", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var items []*library.Item
	items, err = d.queryItems(ctx, "SELECT "+itemColumns+" FROM items WHERE parent_id = ? ORDER BY name COLLATE NOCASE", id)
	return items, err
}

// TopLevelFolders returns the children of the aggregate root.
func (d *Database) TopLevelFolders(ctx context.Context) ([]*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("top_level_folders", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var items []*library.Item
	items, err = d.queryItems(ctx, `
		SELECT `+prefixed("c", itemColumns)+` FROM items c
		JOIN items r ON c.parent_id = r.id
		WHERE r.type = ?
		ORDER BY c.name COLLATE NOCASE
	`, string(library.TypeAggregateFolder))
	return items, err
}

// ItemsUnder returns every item whose path lies strictly below dir.
func (d *Database) ItemsUnder(ctx context.Context, dir string) ([]*library.Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("items_under", start, err) }()

	dir = normalizePath(dir)
	if dir == "" {
		return nil, nil
	}
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var items []*library.Item
	items, err = d.queryItems(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE substr(path, 1, length(?)) = ?
		ORDER BY length(path)
	`, prefix, prefix)
	return items, err
}

// Upsert inserts or replaces an item together with its locations,
// provider ids and provider data.
func (d *Database) Upsert(ctx context.Context, item *library.Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := upsertItem(ctx, tx, item); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// UpsertItemTx writes an item within a batch transaction.
func (d *Database) UpsertItemTx(tx *sql.Tx, item *library.Item) error {
	// The transaction itself controls the operation's lifecycle.
	return upsertItem(context.Background(), tx, item)
}

func upsertItem(ctx context.Context, q querier, item *library.Item) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_item", start, err) }()

	item.Path = normalizePath(item.Path)

	var parent uuid.NullUUID
	if item.ParentID != uuid.Nil {
		parent = uuid.NullUUID{UUID: item.ParentID, Valid: true}
	}
	backdrops, err := json.Marshal(item.BackdropImagePaths)
	if err != nil {
		return fmt.Errorf("encode backdrops: %w", err)
	}
	if item.BackdropImagePaths == nil {
		backdrops = []byte("[]")
	}

	result, err := q.ExecContext(ctx, `
	INSERT INTO items (`+itemColumns+`, is_folder, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(id) DO UPDATE SET
		parent_id = excluded.parent_id,
		name = excluded.name,
		path = excluded.path,
		type = excluded.type,
		dont_fetch_meta = excluded.dont_fetch_meta,
		overview = excluded.overview,
		production_year = excluded.production_year,
		container = excluded.container,
		size = excluded.size,
		primary_image_path = excluded.primary_image_path,
		backdrop_image_paths = excluded.backdrop_image_paths,
		date_modified = excluded.date_modified,
		is_folder = excluded.is_folder,
		updated_at = strftime('%s', 'now')
	`,
		item.ID, parent, item.Name, item.Path, string(item.Type), item.DontFetchMeta,
		item.Overview, item.ProductionYear, item.Container, item.Size,
		item.PrimaryImagePath, string(backdrops), item.DateCreated.UnixMilli(), item.DateModified.UnixMilli(),
		item.IsFolder(),
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("upsert_item").Observe(float64(rows))
	}

	if _, err = q.ExecContext(ctx, "DELETE FROM item_locations WHERE item_id = ?", item.ID); err != nil {
		return err
	}
	for i, loc := range item.PhysicalLocations {
		if _, err = q.ExecContext(ctx,
			"INSERT OR IGNORE INTO item_locations (item_id, path, position) VALUES (?, ?, ?)",
			item.ID, normalizePath(loc), i,
		); err != nil {
			return err
		}
	}

	if _, err = q.ExecContext(ctx, "DELETE FROM provider_ids WHERE item_id = ?", item.ID); err != nil {
		return err
	}
	for name, value := range item.ProviderIDs {
		if _, err = q.ExecContext(ctx,
			"INSERT INTO provider_ids (item_id, provider, value) VALUES (?, ?, ?)",
			item.ID, name, value,
		); err != nil {
			return err
		}
	}

	for name, info := range item.ProviderData {
		if err = saveProviderInfo(ctx, q, item.ID, name, info); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an item and its whole subtree.
func (d *Database) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_item", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		WITH RECURSIVE subtree(id) AS (
			SELECT ?
			UNION ALL
			SELECT i.id FROM items i JOIN subtree s ON i.parent_id = s.id
		)
		DELETE FROM items WHERE id IN (SELECT id FROM subtree)
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_item").Observe(float64(rows))
	}
	return nil
}

// SaveProviderInfo stores one provider's refresh record for an item.
func (d *Database) SaveProviderInfo(ctx context.Context, itemID uuid.UUID, provider string, info library.ProviderInfo) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_provider_info", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = saveProviderInfo(ctx, d.db, itemID, provider, info)
	return err
}

func saveProviderInfo(ctx context.Context, q querier, itemID uuid.UUID, provider string, info library.ProviderInfo) error {
	var millis int64
	if !info.LastRefreshed.IsZero() {
		millis = info.LastRefreshed.UnixMilli()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO provider_data (item_id, provider, last_refreshed, last_refresh_status, provider_version, file_system_stamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, provider) DO UPDATE SET
			last_refreshed = excluded.last_refreshed,
			last_refresh_status = excluded.last_refresh_status,
			provider_version = excluded.provider_version,
			file_system_stamp = excluded.file_system_stamp
	`, itemID, provider, millis, string(info.LastRefreshStatus), info.ProviderVersion, info.FileSystemStamp)
	return err
}

// Exists reports whether the item is still present on disk. The aggregate
// root always exists; a collection folder exists while any of its
// locations does.
func (d *Database) Exists(item *library.Item) bool {
	if item.IsRoot() {
		return true
	}
	for _, loc := range item.Locations() {
		if filesystem.Exists(loc) {
			return true
		}
	}
	return false
}

// CalculateStats counts catalog items by type.
func (d *Database) CalculateStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("calculate_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := metrics.Stats{ItemsByType: make(map[string]int)}

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT type, is_folder, COUNT(*) FROM items WHERE type != ? GROUP BY type, is_folder",
		string(library.TypeAggregateFolder))
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemType string
			isFolder bool
			count    int
		)
		if err = rows.Scan(&itemType, &isFolder, &count); err != nil {
			return stats, err
		}
		stats.ItemsByType[itemType] += count
		if isFolder {
			stats.TotalFolders += count
		} else {
			stats.TotalItems += count
		}
	}
	err = rows.Err()
	return stats, err
}

// prefixed qualifies each column in a comma-separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func ignoreNotFound(err error) error {
	if errors.Is(err, library.ErrNotFound) {
		return nil
	}
	return err
}
