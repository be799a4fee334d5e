package types

import (
	"time"

	"github.com/google/uuid"
)

// PartitionLatest is the reserved partition name that always resolves to the
// most recently created partition of a dataset. It may never be stored as a
// literal partition name.
const PartitionLatest = "latest"

// DescriptorFilename is the well-known object name that carries a dataset's
// configuration at the root of its path prefix. An object named
// "<dataset>/dd.json" is a descriptor, never a partition.
const DescriptorFilename = "dd.json"

// Manager is the person or team responsible for the creation and maintenance
// of one or many datasets. Managers authenticate against the HTTP API with
// their api_key presented as a bearer token.
type Manager struct {
	ID        int        `json:"id"`
	Email     string     `json:"email"`
	APIKey    uuid.UUID  `json:"api_key"`
	Admin     bool       `json:"admin"`
	Salt      string     `json:"-"`
	Hash      []byte     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Restricted returns the subset of manager fields safe to return from the
// registration endpoint.
func (m *Manager) Restricted() *RestrictedManager {
	return &RestrictedManager{ID: m.ID, Email: m.Email, APIKey: m.APIKey}
}

// RestrictedManager is the external view of a manager: no salt, no hash.
type RestrictedManager struct {
	ID     int       `json:"id"`
	Email  string    `json:"email"`
	APIKey uuid.UUID `json:"api_key"`
}

// Classification indicates the level of security needed to protect a dataset.
// It selects which bucket holds the dataset's objects.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationPrivate      Classification = "private"
	ClassificationSensitive    Classification = "sensitive"
	ClassificationConfidential Classification = "confidential"
)

// Valid reports whether c is one of the known classification levels.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationPublic, ClassificationPrivate, ClassificationSensitive, ClassificationConfidential:
		return true
	}
	return false
}

// Compression indicates the type of compression used (if any) within a
// dataset's files.
type Compression string

const (
	CompressionUncompressed Compression = "uncompressed"
	CompressionZip          Compression = "zip"
	CompressionTar          Compression = "tar"
)

// Valid reports whether c is one of the known compression types.
func (c Compression) Valid() bool {
	switch c {
	case CompressionUncompressed, CompressionZip, CompressionTar:
		return true
	}
	return false
}

// Format indicates the data format within a dataset's files.
type Format string

const (
	FormatPlainText Format = "plaintext"
	FormatJSON      Format = "json"
	FormatNDJSON    Format = "ndjson"
	FormatCSV       Format = "csv"
	FormatTSV       Format = "tsv"
	FormatProtobuf  Format = "protobuf"
)

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatPlainText, FormatJSON, FormatNDJSON, FormatCSV, FormatTSV, FormatProtobuf:
		return true
	}
	return false
}

// DatasetSchema maps column names to optional type names. A nil value means
// the column type is unspecified.
type DatasetSchema map[string]*string

// Dataset is the parent node of partitions. Each dataset is split up into one
// or many partitions, typically based on date or size, and every partition
// within it shares the dataset's compression, format, and classification.
type Dataset struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	ManagerID      int            `json:"manager_id"`
	Classification Classification `json:"classification"`
	Compression    Compression    `json:"compression"`
	Format         Format         `json:"format"`
	Description    string         `json:"description"`
	Schema         DatasetSchema  `json:"schema"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

// DatasetConfig is the registration payload for a dataset. It is also the
// exact JSON document uploaded to the blob store as "<name>/dd.json".
type DatasetConfig struct {
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	Compression    Compression    `json:"compression"`
	Format         Format         `json:"format"`
	Description    string         `json:"description"`
	Schema         DatasetSchema  `json:"schema"`
}

// Partition is a partial dataset: one addressable object under the dataset's
// path prefix in the blob store, mirrored as a catalog row.
type Partition struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	DatasetID int        `json:"dataset_id"`
	URL       string     `json:"url"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RangeParams specify how a range query's results should be bounded. All
// four fields are independent and optional; nil means unbounded. Start and
// End are inclusive bounds on created_at, Count caps the number of rows, and
// Offset skips leading rows. Results are always ordered created_at ASC.
type RangeParams struct {
	Start  *time.Time
	End    *time.Time
	Count  *int
	Offset *int
}

// IsZero reports whether no bound is set.
func (p *RangeParams) IsZero() bool {
	return p == nil || (p.Start == nil && p.End == nil && p.Count == nil && p.Offset == nil)
}
