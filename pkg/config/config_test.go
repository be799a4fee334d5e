package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datadex/pkg/types"
)

func setServerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DD_GCP_PROJECT_ID", "test-project")
	t.Setenv("DD_TOPIC_NAME", "dd-events")
	t.Setenv("DD_SUBSCRIPTION_NAME", "dd-events-sub")
	t.Setenv("PUBSUB_SERVICE", "http://localhost:8085")
	t.Setenv("DD_STORAGE_SERVICE", "http://localhost:4443")
	t.Setenv("DD_BUCKET_NAME_PRIVATE", "dd-private")
	t.Setenv("DD_BUCKET_NAME_PUBLIC", "dd-public")
	t.Setenv("DD_BUCKET_NAME_RESTRICTED", "dd-restricted")
	t.Setenv("DD_BUCKET_NAME_CONFIDENTIAL", "dd-confidential")
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDatabaseParams, cfg.DatabaseParams)
	assert.Equal(t, DefaultTopicMaxMessages, cfg.TopicMaxMessages)
	assert.Equal(t, DefaultIngestTick, cfg.IngestTick)
	assert.Equal(t, DefaultPoolMinIdle, cfg.PoolMinIdle)
	assert.Equal(t, DefaultPoolMaxSize, cfg.PoolMaxSize)
	assert.Empty(t, cfg.ManagerEmailDomain)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DD_DATABASE_PARAMS", "host=db user=svc port=5433")
	t.Setenv("DD_TOPIC_MAX_MESSAGES", "50")
	t.Setenv("DD_INGEST_TICK_MS", "250")
	t.Setenv("DD_MANAGER_EMAIL_DOMAIN", "example.com")

	cfg := Load()
	assert.Equal(t, "host=db user=svc port=5433", cfg.DatabaseParams)
	assert.Equal(t, 50, cfg.TopicMaxMessages)
	assert.Equal(t, 250*time.Millisecond, cfg.IngestTick)
	assert.Equal(t, "example.com", cfg.ManagerEmailDomain)
}

func TestValidateServer(t *testing.T) {
	setServerEnv(t)
	require.NoError(t, Load().ValidateServer())
}

func TestValidateServerMissing(t *testing.T) {
	setServerEnv(t)
	t.Setenv("DD_TOPIC_NAME", "")

	err := Load().ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DD_TOPIC_NAME")
}

func TestValidateServerBounds(t *testing.T) {
	setServerEnv(t)

	t.Setenv("DD_TOPIC_MAX_MESSAGES", "0")
	require.Error(t, Load().ValidateServer())
	t.Setenv("DD_TOPIC_MAX_MESSAGES", "10")

	t.Setenv("DD_POOL_MAX_SIZE", "2")
	require.Error(t, Load().ValidateServer(), "max size below min idle")
}

func TestBuckets(t *testing.T) {
	setServerEnv(t)
	buckets := Load().Buckets()

	// sensitive datasets land in the restricted bucket
	assert.Equal(t, "dd-restricted", buckets[types.ClassificationSensitive])
	assert.Equal(t, "dd-public", buckets[types.ClassificationPublic])
	assert.Equal(t, "dd-private", buckets[types.ClassificationPrivate])
	assert.Equal(t, "dd-confidential", buckets[types.ClassificationConfidential])
}
