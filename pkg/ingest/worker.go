package ingest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cuemby/datadex/pkg/catalog"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/metrics"
	"github.com/cuemby/datadex/pkg/notify"
	"github.com/cuemby/datadex/pkg/pubsub"
	"github.com/cuemby/datadex/pkg/types"
)

// Subscription is the slice of the pubsub client the worker consumes.
type Subscription interface {
	Pull(ctx context.Context, maxMessages int) ([]pubsub.ReceivedMessage, error)
	Ack(ctx context.Context, ackIDs []string) error
}

// Worker keeps the catalog in sync with the blob store by pulling storage
// notifications and applying them serially. Messages the catalog cannot
// apply yet are left unacknowledged so the broker redelivers them; messages
// that can never apply are acknowledged and dropped.
type Worker struct {
	catalog     catalog.Service
	sub         Subscription
	maxMessages int
	interval    time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWorker creates a worker pulling up to maxMessages per tick.
func NewWorker(cat catalog.Service, sub Subscription, maxMessages int, interval time.Duration) *Worker {
	return &Worker{
		catalog:     cat,
		sub:         sub,
		maxMessages: maxMessages,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the pull loop in a background goroutine.
func (w *Worker) Start() {
	log.WithComponent("ingest").Info().
		Int("max_messages", w.maxMessages).
		Dur("interval", w.interval).
		Msg("starting ingest worker")
	go w.run()
}

// Stop signals the loop to exit and waits for the in-flight batch to
// finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	log.WithComponent("ingest").Info().Msg("ingest worker stopped")
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.ProcessBatch(context.Background())
		}
	}
}

// ProcessBatch pulls one batch and applies it in event-time order.
func (w *Worker) ProcessBatch(ctx context.Context) {
	msgs, err := w.sub.Pull(ctx, w.maxMessages)
	if err != nil {
		metrics.IngestPullErrors.Inc()
		log.WithComponent("ingest").Error().Err(err).Msg("failed to pull notifications")
		return
	}
	if len(msgs) == 0 {
		return
	}
	metrics.IngestBatchSize.Observe(float64(len(msgs)))

	// apply in the order the events happened, not the order of delivery;
	// the stable sort keeps delivery order for equal timestamps
	sort.SliceStable(msgs, func(i, j int) bool {
		return eventTime(msgs[i]).Before(eventTime(msgs[j]))
	})

	for _, msg := range msgs {
		w.processMessage(ctx, msg)
	}
}

// eventTime extracts the sort key for a message, falling back to publish
// time when the attribute is absent or malformed.
func eventTime(msg pubsub.ReceivedMessage) time.Time {
	if t, err := time.Parse(time.RFC3339, msg.Message.Attributes["eventTime"]); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, msg.Message.PublishTime); err == nil {
		return t
	}
	return time.Time{}
}

func (w *Worker) processMessage(ctx context.Context, msg pubsub.ReceivedMessage) {
	logger := log.WithMessageID(msg.Message.MessageID)
	eventType := msg.Message.Attributes["eventType"]
	if eventType == "" {
		eventType = "unknown"
	}

	err := w.handle(ctx, msg.Message)
	switch {
	case err == nil:
		metrics.IngestMessagesTotal.WithLabelValues(eventType, "applied").Inc()
	case errors.Is(err, types.ErrIgnoreAndAck):
		metrics.IngestMessagesTotal.WithLabelValues(eventType, "ignored").Inc()
		logger.Debug().Str("event_type", eventType).Msg("notification ignored")
	default:
		// leave unacknowledged: the broker redelivers after the deadline
		metrics.IngestMessagesTotal.WithLabelValues(eventType, "failed").Inc()
		logger.Error().Err(err).Str("event_type", eventType).Msg("failed to apply notification, leaving for redelivery")
		return
	}

	if err := w.sub.Ack(ctx, []string{msg.AckID}); err != nil {
		metrics.IngestAckErrors.Inc()
		logger.Error().Err(err).Msg("failed to acknowledge notification")
	}
}

// handle applies one notification to the catalog. A nil return means the
// catalog changed; ErrIgnoreAndAck means the message is finished but
// changed nothing; any other error means retry via redelivery.
func (w *Worker) handle(ctx context.Context, msg pubsub.Message) error {
	attrs, err := notify.ParseAttributes(msg.Attributes)
	if err != nil {
		// a malformed message can never be applied, drop it
		log.WithMessageID(msg.MessageID).Warn().Err(err).Msg("dropping malformed notification")
		return types.ErrIgnoreAndAck
	}

	ref, err := notify.Classify(attrs.ObjectID)
	if err != nil {
		log.WithMessageID(msg.MessageID).Warn().Err(err).Msg("dropping notification with unusable object path")
		return types.ErrIgnoreAndAck
	}

	switch attrs.EventType {
	// archival rewrites the object's storage class in place; for the
	// catalog it is a write like any other
	case notify.EventObjectFinalize, notify.EventObjectMetadataUpdate, notify.EventObjectArchive:
		return w.applyWrite(ctx, msg, attrs, ref)
	case notify.EventObjectDelete:
		return w.applyRemoval(ctx, attrs, ref)
	}
	return types.ErrIgnoreAndAck
}

func (w *Worker) applyWrite(ctx context.Context, msg pubsub.Message, attrs *notify.Attributes, ref *notify.ObjectRef) error {
	if ref.Descriptor {
		// descriptors enter the catalog through the registration endpoint;
		// the notification for the upload itself carries no new facts
		return types.ErrIgnoreAndAck
	}
	if ref.Partition == types.PartitionLatest {
		log.WithDataset(ref.Dataset).Warn().Msg("object named 'latest' can never be indexed as a partition")
		return types.ErrIgnoreAndAck
	}

	payload, err := notify.DecodePayload(msg.Data)
	if err != nil {
		log.WithMessageID(msg.MessageID).Warn().Err(err).Msg("dropping notification with undecodable payload")
		return types.ErrIgnoreAndAck
	}
	size, err := payload.SizeBytes()
	if err != nil {
		log.WithMessageID(msg.MessageID).Warn().Err(err).Msg("dropping notification with unusable size")
		return types.ErrIgnoreAndAck
	}

	// an unknown dataset here may be a registration racing the upload, so
	// the lookup failure propagates and the message is redelivered
	dataset, err := w.catalog.FindDataset(ctx, ref.Dataset)
	if err != nil {
		return err
	}

	if _, err := w.catalog.RegisterPartition(ctx, dataset, ref.Partition, payload.SelfLink, size); err != nil {
		return err
	}
	log.WithDataset(ref.Dataset).Info().
		Str("partition", ref.Partition).
		Int64("size", size).
		Msg("partition indexed")
	return nil
}

func (w *Worker) applyRemoval(ctx context.Context, attrs *notify.Attributes, ref *notify.ObjectRef) error {
	// the delete half of an overwrite; the finalize for the new generation
	// carries the state that matters
	if attrs.Overwritten() {
		return types.ErrIgnoreAndAck
	}

	dataset, err := w.catalog.FindDataset(ctx, ref.Dataset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// nothing to remove
			return types.ErrIgnoreAndAck
		}
		return err
	}

	if ref.Descriptor {
		if err := w.catalog.DeleteDataset(ctx, dataset); err != nil {
			return err
		}
		log.WithDataset(ref.Dataset).Info().Msg("dataset removed with its partitions")
		return nil
	}

	if err := w.catalog.DeletePartition(ctx, dataset, ref.Partition); err != nil {
		return err
	}
	log.WithDataset(ref.Dataset).Info().Str("partition", ref.Partition).Msg("partition removed")
	return nil
}
