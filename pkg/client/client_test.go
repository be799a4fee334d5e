package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datadex/pkg/types"
)

func TestRegisterDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dataset/register", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))

		var cfg types.DatasetConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cfg))
		json.NewEncoder(w).Encode(types.Dataset{ID: 1, Name: cfg.Name})
	}))
	defer srv.Close()

	ds, err := New(srv.URL, "key-123").RegisterDataset(context.Background(), &types.DatasetConfig{Name: "events"})
	require.NoError(t, err)
	assert.Equal(t, "events", ds.Name)
}

func TestLatestPartition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/dataset/events/latest", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(types.Partition{Name: "2024-03-01"})
	}))
	defer srv.Close()

	p, err := New(srv.URL, "").LatestPartition(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", p.Name)
}

func TestErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 409, "status": "Conflict", "message": "dataset already exists",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key").RegisterDataset(context.Background(), &types.DatasetConfig{Name: "events"})
	require.Error(t, err)
	assert.Equal(t, types.KindHttp, types.KindOf(err))
	assert.Contains(t, err.Error(), "dataset already exists")
}
