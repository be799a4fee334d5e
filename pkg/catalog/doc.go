// Package catalog implements the dataset index: managers, datasets, and
// partitions backed by Postgres.
//
// The catalog is the source of truth consumers query; the blob store is the
// source of truth for the bytes. Rows here mirror objects there, kept in
// sync by the ingest loop acting on storage notifications and by the HTTP
// registration endpoints.
//
// The Service interface is the seam between the stores and their callers.
// Postgres is the production implementation, built on a pgx connection
// pool; Memory is a behavior-matched in-memory store used by tests. Both
// enforce the same invariants:
//
//   - dataset names and manager emails are unique
//   - partition identity is (dataset, name), and re-registration is an
//     upsert that overwrites url and size only
//   - the partition name "latest" is reserved and resolves to the most
//     recently created partition at read time
//   - range queries are ordered created_at ASC with optional inclusive
//     start/end bounds, offset, and count
//
// Schema management lives in migrations/ as embedded goose migrations, run
// forward at startup by Migrate or standalone by cmd/datadex-migrate.
package catalog
