package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/metrics"
	"github.com/cuemby/datadex/pkg/security"
	"github.com/cuemby/datadex/pkg/types"
)

// PostgresConfig holds the settings for the Postgres-backed catalog.
type PostgresConfig struct {
	// Params is a keyword/value connection string, e.g.
	// "host=127.0.0.1 user=postgres port=5432".
	Params  string
	MinIdle int
	MaxSize int
	// EmailDomain, when non-empty, restricts manager registration to
	// addresses ending in "@<EmailDomain>".
	EmailDomain string
}

// Postgres implements Service on top of a pgx connection pool. The pool is
// shared by the HTTP surface and the ingest loop; every operation acquires
// a connection, runs its statements, and releases.
type Postgres struct {
	pool        *pgxpool.Pool
	emailDomain string
}

// NewPostgres creates the pool and verifies connectivity. Migrations must
// already have run (see Migrate).
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection params: %w", err)
	}
	if cfg.MinIdle > 0 {
		poolCfg.MinConns = int32(cfg.MinIdle)
	}
	if cfg.MaxSize > 0 {
		poolCfg.MaxConns = int32(cfg.MaxSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, types.PoolError(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.SqlError(err)
	}

	return &Postgres{pool: pool, emailDomain: cfg.EmailDomain}, nil
}

// Ping verifies a connection can be checked out.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return types.PoolError(err)
	}
	return nil
}

// Close tears down the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// uniqueViolation is the SQLSTATE for a unique-constraint hit.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation,
// such as re-registering an existing manager email or dataset name. Other
// Sql errors (connection failures, missing rows) are not conflicts.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func observe(op string) func() {
	timer := metrics.NewTimer()
	return func() {
		timer.ObserveDuration(metrics.CatalogQueryDuration.WithLabelValues(op))
	}
}

func (p *Postgres) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, types.PoolError(err)
	}
	return conn, nil
}

// RegisterManager validates the email against the configured domain suffix,
// generates a salt, hashes the password, mints an api key, and inserts the
// row. The email column is unique; conflicts surface as Sql errors.
func (p *Postgres) RegisterManager(ctx context.Context, email, password string) (*types.Manager, error) {
	defer observe("register_manager")()

	if err := validateEmailDomain(email, p.emailDomain); err != nil {
		return nil, err
	}

	salt := security.NewSalt()
	hash := security.HashPassword(password, salt)
	apiKey := uuid.New()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	log.WithManager(email).Info().Msg("registering manager")
	return scanManager(conn.QueryRow(ctx, sqlRegisterManager, email, hash, salt, apiKey))
}

// AuthManager looks up the manager by email, recomputes the hash with the
// stored salt, and compares in constant time.
func (p *Postgres) AuthManager(ctx context.Context, email, password string) (*types.Manager, error) {
	defer observe("auth_manager")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	manager, err := scanManager(conn.QueryRow(ctx, sqlAuthManager, email))
	if err != nil {
		return nil, err
	}
	if !security.VerifyPassword(password, manager.Salt, manager.Hash) {
		return nil, types.AuthError("invalid credentials for '%s'", email)
	}
	return manager, nil
}

// FindManager retrieves a manager by api key.
func (p *Postgres) FindManager(ctx context.Context, apiKey uuid.UUID) (*types.Manager, error) {
	defer observe("find_manager")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return scanManager(conn.QueryRow(ctx, sqlFindManager, apiKey))
}

// ManagerDatasets lists the datasets owned by the manager holding apiKey,
// ordered by created_at ascending.
func (p *Postgres) ManagerDatasets(ctx context.Context, apiKey uuid.UUID) ([]*types.Dataset, error) {
	defer observe("manager_datasets")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlManagerDatasets, apiKey)
	if err != nil {
		return nil, types.SqlError(err)
	}
	defer rows.Close()
	return collectDatasets(rows)
}

// RegisterDataset inserts a dataset owned by manager. The name column is
// unique; conflicts surface as Sql errors.
func (p *Postgres) RegisterDataset(ctx context.Context, manager *types.Manager, cfg *types.DatasetConfig) (*types.Dataset, error) {
	defer observe("register_dataset")()

	schema, err := json.Marshal(cfg.Schema)
	if err != nil {
		return nil, types.GenericError(err)
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	log.WithDataset(cfg.Name).Info().Str("api_key", manager.APIKey.String()).Msg("registering dataset")
	return scanDataset(conn.QueryRow(ctx, sqlRegisterDataset,
		cfg.Name, manager.ID, string(cfg.Classification), string(cfg.Compression), string(cfg.Format), schema, cfg.Description))
}

// FindDataset retrieves a dataset by name.
func (p *Postgres) FindDataset(ctx context.Context, name string) (*types.Dataset, error) {
	defer observe("find_dataset")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return scanDataset(conn.QueryRow(ctx, sqlFindDataset, name))
}

// ListDatasets returns datasets within the optional range bounds, ordered
// by created_at ascending.
func (p *Postgres) ListDatasets(ctx context.Context, params *types.RangeParams) ([]*types.Dataset, error) {
	defer observe("list_datasets")()

	query, args := buildRange(TargetDataset, params)

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, types.SqlError(err)
	}
	defer rows.Close()
	return collectDatasets(rows)
}

// SearchDatasets matches the term case-insensitively against dataset names
// and descriptions.
func (p *Postgres) SearchDatasets(ctx context.Context, term string) ([]*types.Dataset, error) {
	defer observe("search_datasets")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlSearchDatasets, term)
	if err != nil {
		return nil, types.SqlError(err)
	}
	defer rows.Close()
	return collectDatasets(rows)
}

// DeleteDataset removes the dataset row; partitions cascade.
func (p *Postgres) DeleteDataset(ctx context.Context, dataset *types.Dataset) error {
	defer observe("delete_dataset")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, sqlDeleteDataset, dataset.ID); err != nil {
		return types.SqlError(err)
	}
	log.WithDataset(dataset.Name).Info().Msg("dataset deleted")
	return nil
}

// RegisterPartition upserts a partition keyed by (dataset_id, name). On
// conflict the url and size are overwritten. The reserved name "latest" is
// rejected before any statement runs.
func (p *Postgres) RegisterPartition(ctx context.Context, dataset *types.Dataset, name, url string, size int64) (*types.Partition, error) {
	defer observe("register_partition")()

	if name == types.PartitionLatest {
		log.WithDataset(dataset.Name).Error().Msg("attempt to register partition with reserved name 'latest'")
		return nil, types.InputValidationError("cannot use reserved name %q for partition", types.PartitionLatest)
	}

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return scanPartition(conn.QueryRow(ctx, sqlRegisterPartition, name, url, size, dataset.ID))
}

// FindPartition retrieves a partition by name. The reserved name "latest"
// resolves to the most recently created partition of the dataset.
func (p *Postgres) FindPartition(ctx context.Context, dataset *types.Dataset, name string) (*types.Partition, error) {
	defer observe("find_partition")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	if name == types.PartitionLatest {
		return scanPartition(conn.QueryRow(ctx, sqlFindPartitionLatest, dataset.ID))
	}
	return scanPartition(conn.QueryRow(ctx, sqlFindPartition, name, dataset.ID))
}

// DeletePartition removes the partition by name. Deleting a partition that
// does not exist is not an error.
func (p *Postgres) DeletePartition(ctx context.Context, dataset *types.Dataset, name string) error {
	defer observe("delete_partition")()

	conn, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, sqlDeletePartition, name, dataset.ID); err != nil {
		return types.SqlError(err)
	}
	return nil
}

// ListPartitions returns every partition of the dataset ordered by
// created_at ascending.
func (p *Postgres) ListPartitions(ctx context.Context, dataset *types.Dataset) ([]*types.Partition, error) {
	return p.RangePartitions(ctx, dataset, nil)
}

// RangePartitions returns the dataset's partitions within the optional
// range bounds, ordered by created_at ascending.
func (p *Postgres) RangePartitions(ctx context.Context, dataset *types.Dataset, params *types.RangeParams) ([]*types.Partition, error) {
	defer observe("range_partitions")()

	query, args := buildRange(TargetPartition, params)
	// slot $1 is always the dataset id
	args = append([]any{dataset.ID}, args...)

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, types.SqlError(err)
	}
	defer rows.Close()

	var partitions []*types.Partition
	for rows.Next() {
		p, err := scanPartition(rows)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.SqlError(err)
	}
	return partitions, nil
}

func validateEmailDomain(email, domain string) error {
	if domain == "" {
		log.WithComponent("catalog").Debug().Msg("skipping manager email domain validation, DD_MANAGER_EMAIL_DOMAIN not set")
		return nil
	}
	if !strings.HasSuffix(email, "@"+domain) {
		return types.InputValidationError("invalid email pattern, must be <user>@%s address", domain)
	}
	return nil
}

func scanManager(row pgx.Row) (*types.Manager, error) {
	var m types.Manager
	if err := row.Scan(&m.ID, &m.Email, &m.APIKey, &m.Admin, &m.Salt, &m.Hash, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, types.SqlError(err)
	}
	return &m, nil
}

func scanDataset(row pgx.Row) (*types.Dataset, error) {
	var (
		ds                  types.Dataset
		class, comp, format string
		schema              []byte
	)
	if err := row.Scan(&ds.ID, &ds.Name, &ds.ManagerID, &class, &comp, &format, &schema, &ds.Description, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, types.SqlError(err)
	}
	ds.Classification = types.Classification(class)
	ds.Compression = types.Compression(comp)
	ds.Format = types.Format(format)
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &ds.Schema); err != nil {
			return nil, types.GenericError(err)
		}
	}
	return &ds, nil
}

func scanPartition(row pgx.Row) (*types.Partition, error) {
	var p types.Partition
	if err := row.Scan(&p.ID, &p.Name, &p.URL, &p.Size, &p.DatasetID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, types.SqlError(err)
	}
	return &p, nil
}

func collectDatasets(rows pgx.Rows) ([]*types.Dataset, error) {
	var datasets []*types.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, types.SqlError(err)
	}
	return datasets, nil
}
