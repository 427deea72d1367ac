package sceneflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sceneflow/sceneflow/internal/adapters/assetapi"
	"github.com/sceneflow/sceneflow/internal/adapters/store/fsstore"
	"github.com/sceneflow/sceneflow/internal/adapters/store/httpstore"
	"github.com/sceneflow/sceneflow/internal/adapters/store/memory"
	"github.com/sceneflow/sceneflow/internal/adapters/store/postgres"
	"github.com/sceneflow/sceneflow/internal/adapters/store/sqlite"
	"github.com/sceneflow/sceneflow/internal/app/services"
	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

// Backend is the asset store as the facade and the asset server see it.
type Backend = assetapi.Backend

// OpenStore opens the store cfg selects. Repository stores (memory, sqlite,
// postgres) get the bundle service on top; the fs and http stores bundle
// on their own.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ser, err := BlobSerializer(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case "", config.StoreMemory:
		return services.NewAssets(memory.New(memory.WithSerializer(ser)), logger), nil
	case config.StoreSQLite:
		repo, err := sqlite.OpenWith(ctx, cfg.SQLitePath, ser)
		if err != nil {
			return nil, err
		}
		return services.NewAssets(repo, logger), nil
	case config.StorePostgres:
		repo, err := postgres.ConnectWith(ctx, cfg.PostgresDSN, ser)
		if err != nil {
			return nil, err
		}
		return services.NewAssets(repo, logger), nil
	case config.StoreFS:
		opts := []fsstore.Option{fsstore.WithLogger(logger), fsstore.WithSerializer(ser)}
		if cfg.AssetDir == "" {
			return fsstore.New(opts...)
		}
		return fsstore.OpenDir(cfg.AssetDir, opts...)
	case config.StoreHTTP:
		return httpstore.New(cfg.AssetURL, httpstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// BlobSerializer builds the serializer cfg's blob settings describe. Empty
// settings mean msgpack with zstd, unsealed.
func BlobSerializer(cfg config.StoreConfig) (*serialization.Serializer, error) {
	codec, err := serialization.CodecByName(cfg.BlobCodec)
	if err != nil {
		return nil, err
	}
	key, err := serialization.ParseKey(cfg.BlobKey)
	if err != nil {
		return nil, err
	}
	compression := serialization.CompressionType(cfg.BlobCompression)
	if compression == "" {
		compression = serialization.CompressionZstd
	}
	return serialization.New(serialization.Options{Codec: codec, Compression: compression, EncryptKey: key})
}
