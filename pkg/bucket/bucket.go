package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cuemby/datadex/pkg/gcp"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/metrics"
	"github.com/cuemby/datadex/pkg/types"
)

// Manager uploads dataset descriptors to the blob store. Each
// classification maps to its own bucket; the descriptor lands at
// "<dataset>/dd.json" inside the bucket for the dataset's classification.
type Manager struct {
	// endpoint is the base URL of the storage service, e.g.
	// "http://localhost:4443" for an emulator.
	endpoint string
	buckets  map[types.Classification]string
	client   *gcp.Client
}

// NewManager returns a bucket manager over the given classification-to-
// bucket mapping.
func NewManager(endpoint string, buckets map[types.Classification]string, client *gcp.Client) *Manager {
	return &Manager{endpoint: endpoint, buckets: buckets, client: client}
}

// Bucket resolves the bucket name for a classification.
func (m *Manager) Bucket(class types.Classification) (string, error) {
	bucket, ok := m.buckets[class]
	if !ok {
		return "", types.InputValidationError("no bucket configured for classification %q", class)
	}
	return bucket, nil
}

// RegisterDataset uploads the dataset config as "<name>/dd.json" to the
// bucket matching its classification. The upload creates the dataset's
// path prefix in the store; registration in the catalog must not proceed
// if it fails.
func (m *Manager) RegisterDataset(ctx context.Context, cfg *types.DatasetConfig) error {
	bucket, err := m.Bucket(cfg.Classification)
	if err != nil {
		return err
	}

	body, err := json.Marshal(cfg)
	if err != nil {
		return types.GenericError(err)
	}

	object := fmt.Sprintf("%s/%s", cfg.Name, types.DescriptorFilename)
	uploadURL := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		m.endpoint, bucket, url.QueryEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body))
	if err != nil {
		return types.GenericError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.DescriptorUploadsTotal.WithLabelValues("error").Inc()
		return types.HttpError("descriptor upload failed: %v", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		metrics.DescriptorUploadsTotal.WithLabelValues("ok").Inc()
		log.WithDataset(cfg.Name).Info().Str("bucket", bucket).Msg("descriptor uploaded")
		return nil
	case http.StatusForbidden:
		metrics.DescriptorUploadsTotal.WithLabelValues("denied").Inc()
		return types.AuthError("access to bucket '%s' denied", bucket)
	case http.StatusNotFound:
		metrics.DescriptorUploadsTotal.WithLabelValues("error").Inc()
		return types.HttpError("bucket '%s' does not exist", bucket)
	default:
		metrics.DescriptorUploadsTotal.WithLabelValues("error").Inc()
		return types.HttpError("unexpected status %d uploading descriptor to '%s'", resp.StatusCode, bucket)
	}
}
