package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cuemby/datadex/pkg/types"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultListenAddr       = "127.0.0.1:8080"
	DefaultDatabaseParams   = "host=127.0.0.1 user=postgres port=5432"
	DefaultTopicMaxMessages = 10
	DefaultIngestTick       = time.Second
	DefaultPoolMinIdle      = 5
	DefaultPoolMaxSize      = 30
)

// Config carries every environment-derived setting the service uses.
type Config struct {
	ListenAddr     string
	DatabaseParams string
	PoolMinIdle    int
	PoolMaxSize    int

	// Optional; when set, manager emails must end with "@<domain>".
	ManagerEmailDomain string

	// Notification source.
	GCPProjectID     string
	TopicName        string
	SubscriptionName string
	PubsubService    string
	TopicMaxMessages int
	IngestTick       time.Duration

	// Blob store: one bucket per classification.
	StorageService     string
	BucketPrivate      string
	BucketPublic       string
	BucketRestricted   string
	BucketConfidential string
}

// Load reads the DD_* environment variables and applies defaults. It never
// fails: required-value validation is deferred to ValidateServer so that
// commands which only touch the catalog (e.g. migrations) can run with a
// partial environment.
func Load() *Config {
	v := viper.New()

	bind := func(key, env string, def any) {
		if err := v.BindEnv(key, env); err != nil {
			panic(err)
		}
		if def != nil {
			v.SetDefault(key, def)
		}
	}

	bind("listen_addr", "DD_LISTEN_ADDR", DefaultListenAddr)
	bind("database_params", "DD_DATABASE_PARAMS", DefaultDatabaseParams)
	bind("pool_min_idle", "DD_POOL_MIN_IDLE", DefaultPoolMinIdle)
	bind("pool_max_size", "DD_POOL_MAX_SIZE", DefaultPoolMaxSize)
	bind("manager_email_domain", "DD_MANAGER_EMAIL_DOMAIN", nil)
	bind("gcp_project_id", "DD_GCP_PROJECT_ID", nil)
	bind("topic_name", "DD_TOPIC_NAME", nil)
	bind("subscription_name", "DD_SUBSCRIPTION_NAME", nil)
	bind("pubsub_service", "PUBSUB_SERVICE", nil)
	bind("topic_max_messages", "DD_TOPIC_MAX_MESSAGES", DefaultTopicMaxMessages)
	bind("ingest_tick_ms", "DD_INGEST_TICK_MS", int(DefaultIngestTick/time.Millisecond))
	bind("storage_service", "DD_STORAGE_SERVICE", nil)
	bind("bucket_private", "DD_BUCKET_NAME_PRIVATE", nil)
	bind("bucket_public", "DD_BUCKET_NAME_PUBLIC", nil)
	bind("bucket_restricted", "DD_BUCKET_NAME_RESTRICTED", nil)
	bind("bucket_confidential", "DD_BUCKET_NAME_CONFIDENTIAL", nil)

	return &Config{
		ListenAddr:         v.GetString("listen_addr"),
		DatabaseParams:     v.GetString("database_params"),
		PoolMinIdle:        v.GetInt("pool_min_idle"),
		PoolMaxSize:        v.GetInt("pool_max_size"),
		ManagerEmailDomain: v.GetString("manager_email_domain"),
		GCPProjectID:       v.GetString("gcp_project_id"),
		TopicName:          v.GetString("topic_name"),
		SubscriptionName:   v.GetString("subscription_name"),
		PubsubService:      v.GetString("pubsub_service"),
		TopicMaxMessages:   v.GetInt("topic_max_messages"),
		IngestTick:         time.Duration(v.GetInt("ingest_tick_ms")) * time.Millisecond,
		StorageService:     v.GetString("storage_service"),
		BucketPrivate:      v.GetString("bucket_private"),
		BucketPublic:       v.GetString("bucket_public"),
		BucketRestricted:   v.GetString("bucket_restricted"),
		BucketConfidential: v.GetString("bucket_confidential"),
	}
}

// ValidateServer checks that every variable the full server needs is set.
// Missing values are fatal at startup.
func (c *Config) ValidateServer() error {
	var missing []string
	require := func(val, env string) {
		if val == "" {
			missing = append(missing, env)
		}
	}

	require(c.GCPProjectID, "DD_GCP_PROJECT_ID")
	require(c.TopicName, "DD_TOPIC_NAME")
	require(c.SubscriptionName, "DD_SUBSCRIPTION_NAME")
	require(c.PubsubService, "PUBSUB_SERVICE")
	require(c.StorageService, "DD_STORAGE_SERVICE")
	require(c.BucketPrivate, "DD_BUCKET_NAME_PRIVATE")
	require(c.BucketPublic, "DD_BUCKET_NAME_PUBLIC")
	require(c.BucketRestricted, "DD_BUCKET_NAME_RESTRICTED")
	require(c.BucketConfidential, "DD_BUCKET_NAME_CONFIDENTIAL")

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.PoolMinIdle < 1 {
		return fmt.Errorf("pool min idle must be >= 1, got %d", c.PoolMinIdle)
	}
	if c.PoolMaxSize < c.PoolMinIdle {
		return fmt.Errorf("pool max size %d must be >= min idle %d", c.PoolMaxSize, c.PoolMinIdle)
	}
	if c.TopicMaxMessages < 1 {
		return fmt.Errorf("topic max messages must be >= 1, got %d", c.TopicMaxMessages)
	}
	return nil
}

// Buckets returns the classification-to-bucket mapping for the blob store.
// The "restricted" bucket holds sensitive datasets; the environment variable
// predates the classification rename.
func (c *Config) Buckets() map[types.Classification]string {
	return map[types.Classification]string{
		types.ClassificationPublic:       c.BucketPublic,
		types.ClassificationPrivate:      c.BucketPrivate,
		types.ClassificationSensitive:    c.BucketRestricted,
		types.ClassificationConfidential: c.BucketConfidential,
	}
}
