// Package postgres provides an asset.Repository backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

// ErrNoPool is returned when the store was built without a connection pool.
var ErrNoPool = errors.New("postgres pool is not configured")

// Store implements asset.Repository for PostgreSQL
type Store struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	schema     string
}

// Connect opens a pool for dsn and creates the tables.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	return ConnectWith(ctx, dsn, nil)
}

// ConnectWith is Connect with blobs written through serializer.
func ConnectWith(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := New(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps a pool. A nil serializer means the default.
func New(pool *pgxpool.Pool, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &Store{pool: pool, serializer: serializer, schema: "public"}
}

// WithSchema places the tables in another schema.
func (s *Store) WithSchema(schema string) *Store {
	if schema != "" {
		s.schema = schema
	}
	return s
}

// table returns a fully quoted schema.table reference.
func (s *Store) table(name string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier("sceneflow_"+name)
}

func (s *Store) ready() error {
	if s.pool == nil {
		return ErrNoPool
	}
	return nil
}

// CreateTables creates the schema and every table if missing.
func (s *Store) CreateTables(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	stmts := []string{
		"CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			content BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (kind, name)
		)`, s.table("assets")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			image BYTEA NOT NULL,
			PRIMARY KEY (kind, name)
		)`, s.table("thumbnails")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			path TEXT PRIMARY KEY,
			data BYTEA NOT NULL
		)`, s.table("staged")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			flow_name TEXT PRIMARY KEY,
			bundle_id UUID NOT NULL,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("bundles")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, s.table("settings")),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
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
	if err := s.ready(); err != nil {
		return err
	}
	blob, err := s.serializer.Serialize(content)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (kind, name, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (kind, name) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`, s.table("assets"))
	if _, err := s.pool.Exec(ctx, query, string(kind), name, blob, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves one asset.
func (s *Store) Load(ctx context.Context, kind asset.Kind, name string) (*asset.Asset, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT content, created_at, updated_at FROM %s WHERE kind = $1 AND name = $2`, s.table("assets"))

	a := &asset.Asset{Kind: kind, Name: name}
	var blob []byte
	err := s.pool.QueryRow(ctx, query, string(kind), name).Scan(&blob, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
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
	if err := s.ready(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(kind, filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	infos := make([]asset.Info, 0)
	for rows.Next() {
		info := asset.Info{Kind: kind}
		if err := rows.Scan(&info.Name, &info.CreatedAt, &info.UpdatedAt, &info.HasThumbnail); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *Store) buildListQuery(kind asset.Kind, filter asset.Filter) (string, []any) {
	query := fmt.Sprintf(`
		SELECT a.name, a.created_at, a.updated_at,
			EXISTS (SELECT 1 FROM %s t WHERE t.kind = a.kind AND t.name = a.name)
		FROM %s a
		WHERE a.kind = $1`, s.table("thumbnails"), s.table("assets"))
	args := []any{string(kind)}
	argN := 2

	if filter.Prefix != "" {
		query += fmt.Sprintf(" AND starts_with(a.name, $%d)", argN)
		args = append(args, filter.Prefix)
		argN++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(" AND a.updated_at >= $%d", argN)
		args = append(args, *filter.Since)
		argN++
	}
	query += ` ORDER BY a.name COLLATE "C"`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
		argN++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}
	return query, args
}

// Delete removes an asset and its thumbnail in one transaction.
func (s *Store) Delete(ctx context.Context, kind asset.Kind, name string) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND name = $2`, s.table("assets")), string(kind), name)
		if err != nil {
			return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND name = $2`, s.table("thumbnails")), string(kind), name); err != nil {
			return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
		}
		return nil
	})
}

// SaveThumbnail stores a preview for an existing asset.
func (s *Store) SaveThumbnail(ctx context.Context, kind asset.Kind, name string, image []byte) error {
	if err := asset.CheckRef(kind, name); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (kind, name, image)
		SELECT kind, name, $3 FROM %s WHERE kind = $1 AND name = $2
		ON CONFLICT (kind, name) DO UPDATE SET image = EXCLUDED.image
	`, s.table("thumbnails"), s.table("assets"))
	tag, err := s.pool.Exec(ctx, query, string(kind), name, image)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", asset.ErrNotFound, kind, name)
	}
	return nil
}

// LoadThumbnail returns the stored preview.
func (s *Store) LoadThumbnail(ctx context.Context, kind asset.Kind, name string) ([]byte, error) {
	if err := asset.CheckRef(kind, name); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	var img []byte
	query := fmt.Sprintf(`SELECT image FROM %s WHERE kind = $1 AND name = $2`, s.table("thumbnails"))
	err := s.pool.QueryRow(ctx, query, string(kind), name).Scan(&img)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: thumbnail %s/%s", asset.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return img, nil
}

// StageFile writes a file into the staging table.
func (s *Store) StageFile(ctx context.Context, file asset.File) error {
	if file.Path == "" {
		return asset.ErrInvalidName
	}
	if err := s.ready(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (path, data) VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data
	`, s.table("staged"))
	if _, err := s.pool.Exec(ctx, query, file.Path, file.Data); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// StagedFiles lists staged files ordered by path.
func (s *Store) StagedFiles(ctx context.Context) ([]asset.File, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT path, data FROM %s ORDER BY path COLLATE "C"`, s.table("staged")))
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
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM "+s.table("staged")); err != nil {
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
	if err := s.ready(); err != nil {
		return err
	}
	blob, err := s.serializer.Serialize(b)
	if err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (flow_name, bundle_id, data, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (flow_name) DO UPDATE SET
			bundle_id = EXCLUDED.bundle_id,
			data = EXCLUDED.data,
			created_at = EXCLUDED.created_at
	`, s.table("bundles"))
	if _, err := s.pool.Exec(ctx, query, b.FlowName, b.ID.String(), blob, b.CreatedAt); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

// LoadBundle returns a flow's bundle.
func (s *Store) LoadBundle(ctx context.Context, flowName string) (*asset.Bundle, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var blob []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE flow_name = $1`, s.table("bundles"))
	err := s.pool.QueryRow(ctx, query, flowName).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE flow_name = $1`, s.table("bundles")), flowName); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	var v string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table("settings")), key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", asset.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", asset.ErrLoadFailed, err)
	}
	return v, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, s.table("settings"))
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrSaveFailed, err)
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table("settings")), key); err != nil {
		return fmt.Errorf("%w: %w", asset.ErrDeleteFailed, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

var _ asset.Repository = (*Store)(nil)
