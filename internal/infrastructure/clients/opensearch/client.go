package opensearch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/zatekoja/crmdataplatform/pkg/config"
	"github.com/zatekoja/crmdataplatform/pkg/retry"
)

// Client represents an OpenSearch cluster client
type Client struct {
	client *opensearchgo.Client
}

// NewClient connects to the cluster, retrying the initial info request
func NewClient(ctx context.Context, cfg *config.OpenSearchConfig) (*Client, error) {
	c, err := newClient(cfg, nil)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, retry.DefaultConfig(), "opensearch", c.Ping, func(attempt int, err error, next time.Duration) {
		log.Printf("OpenSearch connection attempt %d failed: %v. Retrying in %v...", attempt, err, next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to OpenSearch after retries: %w", err)
	}

	log.Println("Successfully connected to OpenSearch")
	return c, nil
}

// NewWithTransport builds a client without a connectivity check, sending
// requests through transport when it is non-nil
func NewWithTransport(cfg *config.OpenSearchConfig, transport http.RoundTripper) (*Client, error) {
	return newClient(cfg, transport)
}

func newClient(cfg *config.OpenSearchConfig, transport http.RoundTripper) (*Client, error) {
	client, err := opensearchgo.NewClient(opensearchgo.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}
	return &Client{client: client}, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearchgo.Client {
	return c.client
}

// Ping verifies the cluster answers an info request
func (c *Client) Ping(ctx context.Context) error {
	resp, err := opensearchapi.InfoRequest{}.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("opensearch info returned status %d", resp.StatusCode)
	}
	return nil
}
