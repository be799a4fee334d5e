package gcp

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// scopeCloudPlatform grants access to both the storage and pubsub REST
// surfaces.
const scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

// Client is an HTTP client that attaches a bearer token from an oauth2
// token source to every request. Both the pubsub subscriber and the bucket
// manager speak their REST APIs through it; emulators accept any token, so
// the same path serves local and deployed runs.
type Client struct {
	httpClient *http.Client
	tokens     oauth2.TokenSource
}

// NewClient builds a client on application default credentials.
func NewClient(ctx context.Context) (*Client, error) {
	tokens, err := google.DefaultTokenSource(ctx, scopeCloudPlatform)
	if err != nil {
		return nil, err
	}
	return NewClientWithTokenSource(tokens), nil
}

// NewClientWithTokenSource builds a client on the given token source. Tests
// and emulator-only deployments inject a static source here.
func NewClientWithTokenSource(tokens oauth2.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     oauth2.ReuseTokenSource(nil, tokens),
	}
}

// StaticTokenSource returns a source that always yields the same token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

// Do sends the request with an Authorization header attached.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	return c.httpClient.Do(req)
}
