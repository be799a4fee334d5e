package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/datadex/pkg/gcp"
	"github.com/cuemby/datadex/pkg/log"
	"github.com/cuemby/datadex/pkg/types"
)

// Message is one pulled pubsub message.
type Message struct {
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
}

// ReceivedMessage pairs a message with the ack id needed to acknowledge it.
type ReceivedMessage struct {
	AckID   string  `json:"ackId"`
	Message Message `json:"message"`
}

// Config identifies the subscription the service consumes.
type Config struct {
	// Endpoint is the base URL of the pubsub service, e.g.
	// "http://localhost:8085" for the emulator.
	Endpoint     string
	ProjectID    string
	Topic        string
	Subscription string
}

// Subscriber pulls storage notifications over the pubsub REST API. The
// official SDK's transport does not speak to the emulator's REST surface,
// so the three calls the service needs are issued directly.
type Subscriber struct {
	cfg    Config
	client *gcp.Client
}

// NewSubscriber returns a subscriber for the configured subscription.
func NewSubscriber(cfg Config, client *gcp.Client) *Subscriber {
	return &Subscriber{cfg: cfg, client: client}
}

func (s *Subscriber) subscriptionURL(verb string) string {
	return fmt.Sprintf("%s/v1/projects/%s/subscriptions/%s%s", s.cfg.Endpoint, s.cfg.ProjectID, s.cfg.Subscription, verb)
}

// CreateSubscription creates the pull subscription on the configured topic.
// An already-existing subscription is fine; a missing topic is not, since
// the bucket's notification config publishes there.
func (s *Subscriber) CreateSubscription(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"topic": fmt.Sprintf("projects/%s/topics/%s", s.cfg.ProjectID, s.cfg.Topic),
	})
	if err != nil {
		return types.GenericError(err)
	}

	resp, err := s.put(ctx, s.subscriptionURL(""), body)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		log.WithComponent("pubsub").Info().Str("subscription", s.cfg.Subscription).Msg("subscription created")
		return nil
	case http.StatusConflict:
		log.WithComponent("pubsub").Debug().Str("subscription", s.cfg.Subscription).Msg("subscription already exists")
		return nil
	case http.StatusNotFound:
		return types.HttpError("topic '%s' does not exist", s.cfg.Topic)
	default:
		return types.HttpError("unexpected status %d creating subscription '%s'", resp.StatusCode, s.cfg.Subscription)
	}
}

// Pull synchronously pulls up to maxMessages messages. An empty pull is a
// nil slice, not an error.
func (s *Subscriber) Pull(ctx context.Context, maxMessages int) ([]ReceivedMessage, error) {
	body, err := json.Marshal(map[string]int{"maxMessages": maxMessages})
	if err != nil {
		return nil, types.GenericError(err)
	}

	resp, err := s.post(ctx, s.subscriptionURL(":pull"), body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, types.HttpError("unexpected status %d pulling from '%s'", resp.StatusCode, s.cfg.Subscription)
	}

	var pulled struct {
		ReceivedMessages []ReceivedMessage `json:"receivedMessages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pulled); err != nil {
		return nil, types.HttpError("malformed pull response: %v", err)
	}
	return pulled.ReceivedMessages, nil
}

// Ack acknowledges the given ack ids. Unacknowledged messages are
// redelivered after the ack deadline.
func (s *Subscriber) Ack(ctx context.Context, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string][]string{"ackIds": ackIDs})
	if err != nil {
		return types.GenericError(err)
	}

	resp, err := s.post(ctx, s.subscriptionURL(":acknowledge"), body)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return types.HttpError("unexpected status %d acknowledging on '%s'", resp.StatusCode, s.cfg.Subscription)
	}
	return nil
}

func (s *Subscriber) put(ctx context.Context, url string, body []byte) (*http.Response, error) {
	return s.send(ctx, http.MethodPut, url, body)
}

func (s *Subscriber) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	return s.send(ctx, http.MethodPost, url, body)
}

func (s *Subscriber) send(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.GenericError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, types.HttpError("pubsub request failed: %v", err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
