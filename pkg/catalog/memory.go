package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cuemby/datadex/pkg/security"
	"github.com/cuemby/datadex/pkg/types"
)

// Memory is an in-memory Service used by tests. It mirrors the Postgres
// store's observable behavior: unique constraints and missing rows surface
// as Sql errors carrying the pgx sentinel, partition registration upserts,
// and range queries order by created_at ascending.
type Memory struct {
	mu sync.Mutex

	managers   map[int]*types.Manager
	datasets   map[int]*types.Dataset
	partitions map[int]*types.Partition

	nextManagerID   int
	nextDatasetID   int
	nextPartitionID int

	emailDomain string

	// Now is the clock used for created_at/updated_at; tests override it to
	// get deterministic ordering.
	Now func() time.Time
}

var _ Service = (*Memory)(nil)

// uniqueViolationError mimics the error Postgres raises on a unique
// constraint, so IsUniqueViolation holds for both stores.
func uniqueViolationError(constraint string) error {
	return &pgconn.PgError{
		Code:           uniqueViolation,
		Message:        fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
		ConstraintName: constraint,
	}
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		managers:   make(map[int]*types.Manager),
		datasets:   make(map[int]*types.Dataset),
		partitions: make(map[int]*types.Partition),
		Now:        time.Now,
	}
}

// SetEmailDomain restricts manager registration to the given domain suffix,
// matching the DD_MANAGER_EMAIL_DOMAIN behavior of the Postgres store.
func (m *Memory) SetEmailDomain(domain string) {
	m.emailDomain = domain
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close()                     {}

func (m *Memory) RegisterManager(_ context.Context, email, password string) (*types.Manager, error) {
	if err := validateEmailDomain(email, m.emailDomain); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.managers {
		if existing.Email == email {
			return nil, types.SqlError(uniqueViolationError("managers_manager_email_key"))
		}
	}

	salt := security.NewSalt()
	m.nextManagerID++
	manager := &types.Manager{
		ID:        m.nextManagerID,
		Email:     email,
		APIKey:    uuid.New(),
		Salt:      salt,
		Hash:      security.HashPassword(password, salt),
		CreatedAt: m.Now(),
	}
	m.managers[manager.ID] = manager
	return copyManager(manager), nil
}

func (m *Memory) AuthManager(_ context.Context, email, password string) (*types.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, manager := range m.managers {
		if manager.Email == email {
			if !security.VerifyPassword(password, manager.Salt, manager.Hash) {
				return nil, types.AuthError("invalid credentials for '%s'", email)
			}
			return copyManager(manager), nil
		}
	}
	return nil, types.SqlError(pgx.ErrNoRows)
}

func (m *Memory) FindManager(_ context.Context, apiKey uuid.UUID) (*types.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, manager := range m.managers {
		if manager.APIKey == apiKey {
			return copyManager(manager), nil
		}
	}
	return nil, types.SqlError(pgx.ErrNoRows)
}

func (m *Memory) ManagerDatasets(_ context.Context, apiKey uuid.UUID) ([]*types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owner *types.Manager
	for _, manager := range m.managers {
		if manager.APIKey == apiKey {
			owner = manager
			break
		}
	}
	if owner == nil {
		return nil, nil
	}

	var datasets []*types.Dataset
	for _, ds := range m.datasets {
		if ds.ManagerID == owner.ID {
			datasets = append(datasets, copyDataset(ds))
		}
	}
	sortDatasets(datasets)
	return datasets, nil
}

func (m *Memory) RegisterDataset(_ context.Context, manager *types.Manager, cfg *types.DatasetConfig) (*types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.datasets {
		if existing.Name == cfg.Name {
			return nil, types.SqlError(uniqueViolationError("datasets_dataset_name_key"))
		}
	}
	if !cfg.Classification.Valid() || !cfg.Compression.Valid() || !cfg.Format.Valid() {
		return nil, types.SqlError(fmt.Errorf("invalid input value for enum"))
	}

	m.nextDatasetID++
	ds := &types.Dataset{
		ID:             m.nextDatasetID,
		Name:           cfg.Name,
		ManagerID:      manager.ID,
		Classification: cfg.Classification,
		Compression:    cfg.Compression,
		Format:         cfg.Format,
		Description:    cfg.Description,
		Schema:         cfg.Schema,
		CreatedAt:      m.Now(),
	}
	m.datasets[ds.ID] = ds
	return copyDataset(ds), nil
}

func (m *Memory) FindDataset(_ context.Context, name string) (*types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ds := range m.datasets {
		if ds.Name == name {
			return copyDataset(ds), nil
		}
	}
	return nil, types.SqlError(pgx.ErrNoRows)
}

func (m *Memory) ListDatasets(_ context.Context, params *types.RangeParams) ([]*types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var datasets []*types.Dataset
	for _, ds := range m.datasets {
		if inRange(ds.CreatedAt, params) {
			datasets = append(datasets, copyDataset(ds))
		}
	}
	sortDatasets(datasets)
	return applyWindow(datasets, params), nil
}

func (m *Memory) SearchDatasets(_ context.Context, term string) ([]*types.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(term)
	var datasets []*types.Dataset
	for _, ds := range m.datasets {
		if strings.Contains(strings.ToLower(ds.Name), needle) || strings.Contains(strings.ToLower(ds.Description), needle) {
			datasets = append(datasets, copyDataset(ds))
		}
	}
	sortDatasets(datasets)
	return datasets, nil
}

func (m *Memory) DeleteDataset(_ context.Context, dataset *types.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.datasets, dataset.ID)
	for id, p := range m.partitions {
		if p.DatasetID == dataset.ID {
			delete(m.partitions, id)
		}
	}
	return nil
}

func (m *Memory) RegisterPartition(_ context.Context, dataset *types.Dataset, name, url string, size int64) (*types.Partition, error) {
	if name == types.PartitionLatest {
		return nil, types.InputValidationError("cannot use reserved name %q for partition", types.PartitionLatest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.partitions {
		if p.DatasetID == dataset.ID && p.Name == name {
			p.URL = url
			p.Size = size
			now := m.Now()
			p.UpdatedAt = &now
			return copyPartition(p), nil
		}
	}

	m.nextPartitionID++
	p := &types.Partition{
		ID:        m.nextPartitionID,
		Name:      name,
		DatasetID: dataset.ID,
		URL:       url,
		Size:      size,
		CreatedAt: m.Now(),
	}
	m.partitions[p.ID] = p
	return copyPartition(p), nil
}

func (m *Memory) FindPartition(_ context.Context, dataset *types.Dataset, name string) (*types.Partition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == types.PartitionLatest {
		var latest *types.Partition
		for _, p := range m.partitions {
			if p.DatasetID != dataset.ID {
				continue
			}
			// ties on created_at break toward the higher id, matching the
			// insertion order a serial column gives the SQL form
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) ||
				(p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
				latest = p
			}
		}
		if latest == nil {
			return nil, types.SqlError(pgx.ErrNoRows)
		}
		return copyPartition(latest), nil
	}

	for _, p := range m.partitions {
		if p.DatasetID == dataset.ID && p.Name == name {
			return copyPartition(p), nil
		}
	}
	return nil, types.SqlError(pgx.ErrNoRows)
}

func (m *Memory) DeletePartition(_ context.Context, dataset *types.Dataset, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.partitions {
		if p.DatasetID == dataset.ID && p.Name == name {
			delete(m.partitions, id)
		}
	}
	return nil
}

func (m *Memory) ListPartitions(ctx context.Context, dataset *types.Dataset) ([]*types.Partition, error) {
	return m.RangePartitions(ctx, dataset, nil)
}

func (m *Memory) RangePartitions(_ context.Context, dataset *types.Dataset, params *types.RangeParams) ([]*types.Partition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var partitions []*types.Partition
	for _, p := range m.partitions {
		if p.DatasetID == dataset.ID && inRange(p.CreatedAt, params) {
			partitions = append(partitions, copyPartition(p))
		}
	}
	sort.Slice(partitions, func(i, j int) bool {
		if partitions[i].CreatedAt.Equal(partitions[j].CreatedAt) {
			return partitions[i].ID < partitions[j].ID
		}
		return partitions[i].CreatedAt.Before(partitions[j].CreatedAt)
	})
	return applyWindow(partitions, params), nil
}

func inRange(t time.Time, params *types.RangeParams) bool {
	if params == nil {
		return true
	}
	if params.Start != nil && t.Before(*params.Start) {
		return false
	}
	if params.End != nil && t.After(*params.End) {
		return false
	}
	return true
}

// applyWindow applies OFFSET then LIMIT over an already sorted slice.
func applyWindow[T any](items []T, params *types.RangeParams) []T {
	if params == nil {
		return items
	}
	if params.Offset != nil {
		if *params.Offset >= len(items) {
			return nil
		}
		items = items[*params.Offset:]
	}
	if params.Count != nil && *params.Count < len(items) {
		items = items[:*params.Count]
	}
	return items
}

func sortDatasets(datasets []*types.Dataset) {
	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].CreatedAt.Equal(datasets[j].CreatedAt) {
			return datasets[i].ID < datasets[j].ID
		}
		return datasets[i].CreatedAt.Before(datasets[j].CreatedAt)
	})
}

func copyManager(m *types.Manager) *types.Manager {
	out := *m
	out.Hash = append([]byte(nil), m.Hash...)
	return &out
}

func copyDataset(ds *types.Dataset) *types.Dataset {
	out := *ds
	if ds.Schema != nil {
		out.Schema = make(types.DatasetSchema, len(ds.Schema))
		for k, v := range ds.Schema {
			out.Schema[k] = v
		}
	}
	return &out
}

func copyPartition(p *types.Partition) *types.Partition {
	out := *p
	return &out
}
