package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/pubsub"
	"github.com/cuemby/datadex/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

type fakeSub struct {
	batch   []pubsub.ReceivedMessage
	pullErr error
	ackErr  error
	acked   []string
}

func (f *fakeSub) Pull(context.Context, int) ([]pubsub.ReceivedMessage, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	batch := f.batch
	f.batch = nil
	return batch, nil
}

func (f *fakeSub) Ack(_ context.Context, ackIDs []string) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, ackIDs...)
	return nil
}

type msgOpt func(*pubsub.ReceivedMessage)

func withAttr(key, value string) msgOpt {
	return func(m *pubsub.ReceivedMessage) { m.Message.Attributes[key] = value }
}

func withoutAttr(key string) msgOpt {
	return func(m *pubsub.ReceivedMessage) { delete(m.Message.Attributes, key) }
}

var msgSeq int

func notification(eventType, object, eventTime string, size int64, opts ...msgOpt) pubsub.ReceivedMessage {
	msgSeq++
	body, _ := json.Marshal(map[string]string{
		"name":     object,
		"selfLink": "https://storage/b/dd-private/o/" + object,
		"size":     fmt.Sprintf("%d", size),
	})
	msg := pubsub.ReceivedMessage{
		AckID: fmt.Sprintf("ack-%d", msgSeq),
		Message: pubsub.Message{
			Data:      base64.StdEncoding.EncodeToString(body),
			MessageID: fmt.Sprintf("msg-%d", msgSeq),
			Attributes: map[string]string{
				"eventType":        eventType,
				"eventTime":        eventTime,
				"bucketId":         "dd-private",
				"objectId":         object,
				"objectGeneration": "1",
			},
			PublishTime: eventTime,
		},
	}
	for _, opt := range opts {
		opt(&msg)
	}
	return msg
}

func newTestWorker(t *testing.T) (*Worker, *catalog.Memory, *fakeSub, *types.Dataset) {
	t.Helper()
	ctx := context.Background()

	store := catalog.NewMemory()
	manager, err := store.RegisterManager(ctx, "owner@example.com", "pw")
	require.NoError(t, err)
	dataset, err := store.RegisterDataset(ctx, manager, &types.DatasetConfig{
		Name:           "events",
		Classification: types.ClassificationPrivate,
		Compression:    types.CompressionUncompressed,
		Format:         types.FormatNDJSON,
	})
	require.NoError(t, err)

	sub := &fakeSub{}
	return NewWorker(store, sub, 10, time.Second), store, sub, dataset
}

func TestProcessBatchIndexesPartitions(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T12:00:00Z", 2048),
	}
	w.ProcessBatch(ctx)

	p, err := store.FindPartition(ctx, dataset, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), p.Size)
	assert.Equal(t, "https://storage/b/dd-private/o/events/2024-03-01", p.URL)
	assert.Len(t, sub.acked, 1)
}

func TestMetadataUpdateOverwritesSize(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/2024/01/part-001.json.tar.gz", "2024-03-01T12:00:00Z", 1234),
		notification("OBJECT_METADATA_UPDATE", "events/2024/01/part-001.json.tar.gz", "2024-03-01T12:01:00Z", 2000),
	}
	w.ProcessBatch(ctx)

	parts, err := store.ListPartitions(ctx, dataset)
	require.NoError(t, err)
	require.Len(t, parts, 1, "both events upsert the same (dataset, name) row")
	assert.Equal(t, "2024/01/part-001.json.tar.gz", parts[0].Name)
	assert.Equal(t, int64(2000), parts[0].Size)
	assert.Len(t, sub.acked, 2)
}

func TestOverwriteSequenceKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	first := notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T12:00:00Z", 10)
	sub.batch = []pubsub.ReceivedMessage{first}
	w.ProcessBatch(ctx)

	// overwrite: the delete of the old generation, then the new finalize
	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_DELETE", "events/2024-03-01", "2024-03-01T13:00:00Z", 0,
			withAttr("overwrittenByGeneration", "42")),
		notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T13:00:01Z", 20),
	}
	w.ProcessBatch(ctx)

	parts, err := store.ListPartitions(ctx, dataset)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, int64(20), parts[0].Size)
	assert.Len(t, sub.acked, 3)
}

func TestArchiveUpsertsPartition(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	// archival changes the object's storage class, not its existence, so
	// it indexes exactly like a finalize
	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_ARCHIVE", "events/2024-03-01", "2024-03-01T12:00:00Z", 2048),
	}
	w.ProcessBatch(ctx)

	p, err := store.FindPartition(ctx, dataset, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), p.Size)
	assert.Len(t, sub.acked, 1)
}

func TestArchiveOfDescriptorIsNoOp(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	_, err := store.RegisterPartition(ctx, dataset, "2024-03-01", "url", 10)
	require.NoError(t, err)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_ARCHIVE", "events/dd.json", "2024-03-01T12:00:00Z", 0),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1)
	ds, err := store.FindDataset(ctx, "events")
	require.NoError(t, err, "an archived descriptor must never remove the dataset")
	parts, err := store.ListPartitions(ctx, ds)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestProcessBatchAppliesInEventTimeOrder(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	// delivered newest first: the overwrite from 13:00 must win even
	// though the 12:00 write arrives after it in the batch
	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T13:00:00Z", 999),
		notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T12:00:00Z", 111),
	}
	w.ProcessBatch(ctx)

	p, err := store.FindPartition(ctx, dataset, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(999), p.Size)
	assert.Len(t, sub.acked, 2)
}

func TestUnknownDatasetPartitionRedelivered(t *testing.T) {
	ctx := context.Background()
	w, store, sub, _ := newTestWorker(t)

	msg := notification("OBJECT_FINALIZE", "pending/2024-03-01", "2024-03-01T12:00:00Z", 10)
	sub.batch = []pubsub.ReceivedMessage{msg}
	w.ProcessBatch(ctx)
	assert.Empty(t, sub.acked, "a partition racing its dataset's registration must not be acked")

	// once the dataset exists the redelivered message applies
	manager, err := store.RegisterManager(ctx, "late@example.com", "pw")
	require.NoError(t, err)
	pending, err := store.RegisterDataset(ctx, manager, &types.DatasetConfig{
		Name:           "pending",
		Classification: types.ClassificationPublic,
		Compression:    types.CompressionUncompressed,
		Format:         types.FormatCSV,
	})
	require.NoError(t, err)

	sub.batch = []pubsub.ReceivedMessage{msg}
	w.ProcessBatch(ctx)
	require.Len(t, sub.acked, 1)

	_, err = store.FindPartition(ctx, pending, "2024-03-01")
	require.NoError(t, err)
}

func TestLatestObjectNameIgnoredAndAcked(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/latest", "2024-03-01T12:00:00Z", 10),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1, "the reserved name can never index, retrying is pointless")
	_, err := store.FindPartition(ctx, dataset, types.PartitionLatest)
	require.Error(t, err)
}

func TestDescriptorWriteIgnoredAndAcked(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/dd.json", "2024-03-01T12:00:00Z", 10),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1)
	parts, err := store.ListPartitions(ctx, dataset)
	require.NoError(t, err)
	assert.Empty(t, parts, "a descriptor is never a partition")
}

func TestDeleteRemovesPartition(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	_, err := store.RegisterPartition(ctx, dataset, "2024-03-01", "url", 10)
	require.NoError(t, err)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_DELETE", "events/2024-03-01", "2024-03-01T12:00:00Z", 0),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1)
	_, err = store.FindPartition(ctx, dataset, "2024-03-01")
	require.Error(t, err)
}

func TestOverwriteDeleteIgnored(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	_, err := store.RegisterPartition(ctx, dataset, "2024-03-01", "url", 10)
	require.NoError(t, err)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_DELETE", "events/2024-03-01", "2024-03-01T12:00:00Z", 0,
			withAttr("overwrittenByGeneration", "2")),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1)
	p, err := store.FindPartition(ctx, dataset, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Size, "the delete half of an overwrite must not remove the row")
}

func TestDescriptorDeleteRemovesDataset(t *testing.T) {
	ctx := context.Background()
	w, store, sub, dataset := newTestWorker(t)

	_, err := store.RegisterPartition(ctx, dataset, "2024-03-01", "url", 10)
	require.NoError(t, err)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_DELETE", "events/dd.json", "2024-03-01T12:00:00Z", 0),
	}
	w.ProcessBatch(ctx)

	assert.Len(t, sub.acked, 1)
	_, err = store.FindDataset(ctx, "events")
	require.Error(t, err)
}

func TestDeleteUnknownDatasetAcked(t *testing.T) {
	ctx := context.Background()
	w, _, sub, _ := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_DELETE", "ghost/2024-03-01", "2024-03-01T12:00:00Z", 0),
	}
	w.ProcessBatch(ctx)
	assert.Len(t, sub.acked, 1)
}

func TestMalformedNotificationAcked(t *testing.T) {
	ctx := context.Background()
	w, _, sub, _ := newTestWorker(t)

	sub.batch = []pubsub.ReceivedMessage{
		notification("OBJECT_FINALIZE", "events/2024-03-01", "2024-03-01T12:00:00Z", 10,
			withoutAttr("eventType")),
		notification("OBJECT_WHATEVER", "events/2024-03-01", "2024-03-01T12:00:00Z", 10),
	}
	w.ProcessBatch(ctx)
	assert.Len(t, sub.acked, 2, "poison messages are dropped, not retried forever")
}

func TestPullErrorSkipsBatch(t *testing.T) {
	ctx := context.Background()
	w, _, sub, _ := newTestWorker(t)

	sub.pullErr = types.HttpError("pubsub down")
	w.ProcessBatch(ctx)
	assert.Empty(t, sub.acked)
}

func TestStartStop(t *testing.T) {
	w, _, sub, _ := newTestWorker(t)
	_ = sub

	w.interval = time.Millisecond
	w.Start()
	time.Sleep(10 * time.Millisecond)
	w.Stop()
}
