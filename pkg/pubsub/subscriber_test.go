package pubsub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/datadex/pkg/gcp"
	"github.com/cuemby/datadex/pkg/types"
)

func newTestSubscriber(endpoint string) *Subscriber {
	return NewSubscriber(Config{
		Endpoint:     endpoint,
		ProjectID:    "test-project",
		Topic:        "dd-events",
		Subscription: "dd-events-sub",
	}, gcp.NewClientWithTokenSource(gcp.StaticTokenSource("test-token")))
}

func TestCreateSubscription(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"created", http.StatusOK, false},
		{"already exists", http.StatusConflict, false},
		{"topic missing", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/v1/projects/test-project/subscriptions/dd-events-sub", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newTestSubscriber(srv.URL).CreateSubscription(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.KindHttp, types.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"topic": "projects/test-project/topics/dd-events"}, gotBody)
		})
	}
}

func TestPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/projects/test-project/subscriptions/dd-events-sub:pull", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 10, body["maxMessages"])

		json.NewEncoder(w).Encode(map[string]any{
			"receivedMessages": []map[string]any{
				{
					"ackId": "ack-1",
					"message": map[string]any{
						"data":        "e30=",
						"attributes":  map[string]string{"eventType": "OBJECT_FINALIZE"},
						"messageId":   "msg-1",
						"publishTime": "2024-03-01T12:00:00Z",
					},
				},
			},
		})
	}))
	defer srv.Close()

	msgs, err := newTestSubscriber(srv.URL).Pull(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ack-1", msgs[0].AckID)
	assert.Equal(t, "msg-1", msgs[0].Message.MessageID)
	assert.Equal(t, "OBJECT_FINALIZE", msgs[0].Message.Attributes["eventType"])
}

func TestPullEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	msgs, err := newTestSubscriber(srv.URL).Pull(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAck(t *testing.T) {
	var gotBody map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/test-project/subscriptions/dd-events-sub:acknowledge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	sub := newTestSubscriber(srv.URL)
	require.NoError(t, sub.Ack(context.Background(), []string{"ack-1", "ack-2"}))
	assert.Equal(t, map[string][]string{"ackIds": {"ack-1", "ack-2"}}, gotBody)

	// acking nothing makes no request
	require.NoError(t, sub.Ack(context.Background(), nil))
}

func TestPullTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestSubscriber(srv.URL).Pull(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, types.KindHttp, types.KindOf(err))
}
