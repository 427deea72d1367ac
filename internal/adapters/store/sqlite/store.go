// Package sqlite provides an asset.Repository backed by SQLite through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/pkg/serialization"
	_ "modernc.org/sqlite"
)

// Store implements asset.Repository for SQLite. Asset content and bundles
// are stored as serialized blobs.
type Store struct {
	db         *sql.DB
	serializer *serialization.Serializer
	prefix     string
	now        func() time.Time
}

// Open opens (or creates) a database file and its tables. Use ":memory:"
// for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	return OpenWith(ctx, path, nil)
}

// OpenWith is Open with blobs written through serializer.
func OpenWith(ctx context.Context, path string, serializer *serialization.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	s := New(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database. A nil serializer means the default.
func New(db *sql.DB, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{db: db, serializer: serializer, prefix: "sceneflow_", now: time.Now}
}

// WithTablePrefix overrides the table prefix. Only alphanumeric and
// underscore are accepted; anything else is ignored.
func (s *Store) WithTablePrefix(prefix string) *Store {
	if isSafeIdent(prefix) {
		s.prefix = prefix
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

func (s *Store) table(name string) string { return s.prefix + name }

// CreateTables creates every table if missing.
func (s *Store) CreateTables(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			content BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, name)
		)`, s.table("assets")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			image BLOB NOT NULL,
			PRIMARY KEY (kind, name)
		)`, s.table("thumbnails")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			path TEXT PRIMARY KEY,
			data BLOB NOT NULL
		)`, s.table("staged")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			flow_name TEXT PRIMARY KEY,
			bundle_id TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`, s.table("bundles")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, s.table("settings")),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Save upserts an asset, keeping created_at on update.
func (s *Store) Save(ctx context.Context, kind asset.Kind, name, content string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	blob, err := s.serializer.Serialize(content)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	now := s.now().UnixNano()
	query := fmt.Sprintf(`
		INSERT INTO %s (kind, name, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, name) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`, s.table("assets"))
	if _, err := s.db.ExecContext(ctx, query, string(kind), name, blob, now, now); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves one asset.
func (s *Store) Load(ctx context.Context, kind asset.Kind, name string) (*asset.Asset, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT content, created_at, updated_at FROM %s WHERE kind = ? AND name = ?`, s.table("assets"))

	var blob []byte
	var created, updated int64
	err := s.db.QueryRowContext(ctx, query, string(kind), name).Scan(&blob, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}

	a := &asset.Asset{Kind: kind, Name: name, CreatedAt: fromNanos(created), UpdatedAt: fromNanos(updated)}
	if err := s.serializer.Deserialize(blob, &a.Content); err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return a, nil
}

// List returns assets of one kind ordered by name.
func (s *Store) List(ctx context.Context, kind asset.Kind, filter asset.Filter) ([]asset.Info, error) {
	if !kind.Valid() {
		return nil, asset.ErrInvalidKind
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(kind, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	infos := make([]asset.Info, 0)
	for rows.Next() {
		var info asset.Info
		var created, updated int64
		if err := rows.Scan(&info.Name, &created, &updated, &info.HasThumbnail); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		info.Kind = kind
		info.CreatedAt = fromNanos(created)
		info.UpdatedAt = fromNanos(updated)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) buildListQuery(kind asset.Kind, filter asset.Filter) (string, []any) {
	query := fmt.Sprintf(`
		SELECT a.name, a.created_at, a.updated_at,
			EXISTS (SELECT 1 FROM %s t WHERE t.kind = a.kind AND t.name = a.name)
		FROM %s a
		WHERE a.kind = ?`, s.table("thumbnails"), s.table("assets"))
	args := []any{string(kind)}

	if filter.Prefix != "" {
		query += " AND substr(a.name, 1, ?) = ?"
		args = append(args, utf8.RuneCountInString(filter.Prefix), filter.Prefix)
	}
	if filter.Since != nil {
		query += " AND a.updated_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	query += " ORDER BY a.name"

	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)
	return query, args
}

// Delete removes an asset and its thumbnail in one transaction.
func (s *Store) Delete(ctx context.Context, kind asset.Kind, name string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE kind = ? AND name = ?`, s.table("assets")), string(kind), name)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE kind = ? AND name = ?`, s.table("thumbnails")), string(kind), name); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return tx.Commit()
}

// SaveThumbnail stores a preview for an existing asset.
func (s *Store) SaveThumbnail(ctx context.Context, kind asset.Kind, name string, image []byte) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	if err := s.exists(ctx, kind, name); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (kind, name, image) VALUES (?, ?, ?)`, s.table("thumbnails"))
	if _, err := s.db.ExecContext(ctx, query, string(kind), name, image); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// LoadThumbnail returns the stored preview.
func (s *Store) LoadThumbnail(ctx context.Context, kind asset.Kind, name string) ([]byte, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	var img []byte
	query := fmt.Sprintf(`SELECT image FROM %s WHERE kind = ? AND name = ?`, s.table("thumbnails"))
	err := s.db.QueryRowContext(ctx, query, string(kind), name).Scan(&img)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thumbnail %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return img, nil
}

func (s *Store) exists(ctx context.Context, kind asset.Kind, name string) error {
	var one int
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE kind = ? AND name = ?`, s.table("assets"))
	err := s.db.QueryRowContext(ctx, query, string(kind), name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	return err
}

// StageFile writes a file into the staging table.
func (s *Store) StageFile(ctx context.Context, file asset.File) error {
	if file.Path == "" {
		return asset.ErrInvalidName
	}
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (path, data) VALUES (?, ?)`, s.table("staged"))
	if _, err := s.db.ExecContext(ctx, query, file.Path, file.Data); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// StagedFiles lists staged files ordered by path.
func (s *Store) StagedFiles(ctx context.Context) ([]asset.File, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT path, data FROM %s ORDER BY path`, s.table("staged")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	defer rows.Close()

	files := make([]asset.File, 0)
	for rows.Next() {
		var f asset.File
		if err := rows.Scan(&f.Path, &f.Data); err != nil {
			return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ClearStaging deletes every staged file.
func (s *Store) ClearStaging(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table("staged"))); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

// SaveBundle replaces a flow's bundle.
func (s *Store) SaveBundle(ctx context.Context, b *asset.Bundle) error {
	if b == nil {
		return asset.ErrInvalidName
	}
	if err := asset.ValidateName(b.FlowName); err != nil {
		return err
	}
	blob, err := s.serializer.Serialize(b)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (flow_name, bundle_id, data, created_at)
		VALUES (?, ?, ?, ?)
	`, s.table("bundles"))
	if _, err := s.db.ExecContext(ctx, query, b.FlowName, b.ID.String(), blob, b.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// LoadBundle returns a flow's bundle.
func (s *Store) LoadBundle(ctx context.Context, flowName string) (*asset.Bundle, error) {
	var blob []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE flow_name = ?`, s.table("bundles"))
	err := s.db.QueryRowContext(ctx, query, flowName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", asset.ErrBundleNotFound, flowName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	var b asset.Bundle
	if err := s.serializer.Deserialize(blob, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return &b, nil
}

// DeleteBundle drops a flow's bundle if present.
func (s *Store) DeleteBundle(ctx context.Context, flowName string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE flow_name = ?`, s.table("bundles"))
	if _, err := s.db.ExecContext(ctx, query, flowName); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.table("settings"))
	err := s.db.QueryRowContext(ctx, query, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", asset.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)`, s.table("settings"))
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table("settings"))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

var _ asset.Repository = (*Store)(nil)
