package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/datadex/pkg/types"
)

// Client is a thin JSON client for the catalog API, used by the CLI
// commands.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a client for the API at baseURL. The api key may be empty
// for read-only use.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterManager creates a manager account and returns its api key.
func (c *Client) RegisterManager(ctx context.Context, email, password string) (*types.RestrictedManager, error) {
	var manager types.RestrictedManager
	err := c.call(ctx, http.MethodPost, "/api/manager/register",
		map[string]string{"email": email, "password": password}, &manager)
	if err != nil {
		return nil, err
	}
	return &manager, nil
}

// ManagerDatasets lists the datasets owned by the authenticated manager.
func (c *Client) ManagerDatasets(ctx context.Context) ([]*types.Dataset, error) {
	var datasets []*types.Dataset
	if err := c.call(ctx, http.MethodGet, "/api/manager/datasets", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// RegisterDataset registers a dataset under the authenticated manager.
func (c *Client) RegisterDataset(ctx context.Context, cfg *types.DatasetConfig) (*types.Dataset, error) {
	var dataset types.Dataset
	if err := c.call(ctx, http.MethodPost, "/api/dataset/register", cfg, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ListDatasets lists all datasets.
func (c *Client) ListDatasets(ctx context.Context) ([]*types.Dataset, error) {
	var datasets []*types.Dataset
	if err := c.call(ctx, http.MethodGet, "/api/datasets", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// SearchDatasets matches datasets by name or description.
func (c *Client) SearchDatasets(ctx context.Context, term string) ([]*types.Dataset, error) {
	var datasets []*types.Dataset
	path := "/api/datasets/search?term=" + url.QueryEscape(term)
	if err := c.call(ctx, http.MethodGet, path, nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// FindDataset retrieves one dataset by name.
func (c *Client) FindDataset(ctx context.Context, name string) (*types.Dataset, error) {
	var dataset types.Dataset
	if err := c.call(ctx, http.MethodGet, "/api/dataset/"+url.PathEscape(name), nil, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ListPartitions lists a dataset's partitions.
func (c *Client) ListPartitions(ctx context.Context, dataset string) ([]*types.Partition, error) {
	var partitions []*types.Partition
	path := "/api/dataset/" + url.PathEscape(dataset) + "/partitions"
	if err := c.call(ctx, http.MethodGet, path, nil, &partitions); err != nil {
		return nil, err
	}
	return partitions, nil
}

// LatestPartition retrieves the most recently created partition.
func (c *Client) LatestPartition(ctx context.Context, dataset string) (*types.Partition, error) {
	var partition types.Partition
	path := "/api/dataset/" + url.PathEscape(dataset) + "/latest"
	if err := c.call(ctx, http.MethodGet, path, nil, &partition); err != nil {
		return nil, err
	}
	return &partition, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return types.GenericError(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return types.GenericError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.HttpError("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return types.HttpError("%s (status %d)", apiErr.Message, resp.StatusCode)
		}
		return types.HttpError("unexpected status %d from %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.HttpError("malformed response from %s: %v", path, err)
	}
	return nil
}
