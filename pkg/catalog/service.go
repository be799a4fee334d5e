package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/cuemby/datadex/pkg/types"
)

// Service defines the catalog capability consumed by the HTTP surface and
// the ingest loop. It is implemented by the Postgres store and by an
// in-memory store used in tests.
type Service interface {
	// Managers
	RegisterManager(ctx context.Context, email, password string) (*types.Manager, error)
	AuthManager(ctx context.Context, email, password string) (*types.Manager, error)
	FindManager(ctx context.Context, apiKey uuid.UUID) (*types.Manager, error)
	ManagerDatasets(ctx context.Context, apiKey uuid.UUID) ([]*types.Dataset, error)

	// Datasets
	RegisterDataset(ctx context.Context, manager *types.Manager, cfg *types.DatasetConfig) (*types.Dataset, error)
	FindDataset(ctx context.Context, name string) (*types.Dataset, error)
	ListDatasets(ctx context.Context, params *types.RangeParams) ([]*types.Dataset, error)
	SearchDatasets(ctx context.Context, term string) ([]*types.Dataset, error)
	DeleteDataset(ctx context.Context, dataset *types.Dataset) error

	// Partitions
	RegisterPartition(ctx context.Context, dataset *types.Dataset, name, url string, size int64) (*types.Partition, error)
	FindPartition(ctx context.Context, dataset *types.Dataset, name string) (*types.Partition, error)
	DeletePartition(ctx context.Context, dataset *types.Dataset, name string) error
	ListPartitions(ctx context.Context, dataset *types.Dataset) ([]*types.Partition, error)
	RangePartitions(ctx context.Context, dataset *types.Dataset, params *types.RangeParams) ([]*types.Partition, error)

	// Utility
	Ping(ctx context.Context) error
	Close()
}
