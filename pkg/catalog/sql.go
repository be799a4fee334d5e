package catalog

// Column lists are spelled out so RETURNING clauses stay in lockstep with
// the scan order in postgres.go.

const sqlRegisterDataset = `
	INSERT INTO datasets (dataset_name, manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING dataset_id, dataset_name, manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc, created_at, updated_at`

const sqlFindDataset = `
	SELECT dataset_id, dataset_name, manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc, created_at, updated_at
	FROM datasets
	WHERE dataset_name = $1`

// sqlListDatasets is the base query the range builder appends to. The WHERE
// true clause anchors the AND bound clauses produced by the builder.
const sqlListDatasets = `
	SELECT dataset_id, dataset_name, manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc, created_at, updated_at
	FROM datasets
	WHERE true`

const sqlSearchDatasets = `
	SELECT dataset_id, dataset_name, manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc, created_at, updated_at
	FROM datasets
	WHERE dataset_name ILIKE '%' || $1 || '%' OR dataset_desc ILIKE '%' || $1 || '%'
	ORDER BY created_at ASC`

const sqlDeleteDataset = `
	DELETE FROM datasets
	WHERE dataset_id = $1`

// Partition registration is an upsert keyed by (dataset_id, partition_name):
// re-delivery of a storage notification overwrites url and size only.
const sqlRegisterPartition = `
	INSERT INTO partitions (partition_name, partition_url, partition_size, dataset_id)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (dataset_id, partition_name)
	DO UPDATE SET partition_url = EXCLUDED.partition_url, partition_size = EXCLUDED.partition_size, updated_at = now()
	RETURNING partition_id, partition_name, partition_url, partition_size, dataset_id, created_at, updated_at`

const sqlFindPartition = `
	SELECT partition_id, partition_name, partition_url, partition_size, dataset_id, created_at, updated_at
	FROM partitions
	WHERE partition_name = $1 AND dataset_id = $2`

const sqlFindPartitionLatest = `
	SELECT partition_id, partition_name, partition_url, partition_size, dataset_id, created_at, updated_at
	FROM partitions
	WHERE dataset_id = $1
	ORDER BY created_at DESC
	LIMIT 1`

// sqlListPartitions is the base query the range builder appends to. Slot $1
// is always the dataset id; bound placeholders start at $2.
const sqlListPartitions = `
	SELECT partition_id, partition_name, partition_url, partition_size, dataset_id, created_at, updated_at
	FROM partitions
	WHERE dataset_id = $1`

const sqlDeletePartition = `
	DELETE FROM partitions
	WHERE partition_name = $1 AND dataset_id = $2`

const sqlRegisterManager = `
	INSERT INTO managers (manager_email, manager_hash, manager_salt, api_key)
	VALUES ($1, $2, $3, $4)
	RETURNING manager_id, manager_email, api_key, is_admin, manager_salt, manager_hash, created_at, updated_at`

const sqlFindManager = `
	SELECT manager_id, manager_email, api_key, is_admin, manager_salt, manager_hash, created_at, updated_at
	FROM managers
	WHERE api_key = $1`

const sqlAuthManager = `
	SELECT manager_id, manager_email, api_key, is_admin, manager_salt, manager_hash, created_at, updated_at
	FROM managers
	WHERE manager_email = $1`

const sqlManagerDatasets = `
	SELECT dataset_id, dataset_name, datasets.manager_id, dataset_classification, dataset_compression, dataset_format, dataset_schema, dataset_desc, datasets.created_at, datasets.updated_at
	FROM datasets
	JOIN managers ON managers.manager_id = datasets.manager_id
	WHERE managers.api_key = $1
	ORDER BY datasets.created_at ASC`
