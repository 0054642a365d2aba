package typesense

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/crmdataplatform/pkg/config"
	"github.com/zatekoja/crmdataplatform/pkg/retry"
)

// TaxonomyCollections are the lookup collections resolved by name
var TaxonomyCollections = []string{"categories", "technologies", "rankings"}

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.Do(ctx, retry.DefaultConfig(), "typesense", func(ctx context.Context) error {
		_, err := client.Health(ctx, 2*time.Second)
		return err
	}, func(attempt int, err error, next time.Duration) {
		log.Printf("Typesense connection attempt %d failed: %v. Retrying in %v...", attempt, err, next)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Println("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures every taxonomy collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	existing := make(map[string]bool, len(collections))
	for _, col := range collections {
		existing[col.Name] = true
	}

	for _, name := range TaxonomyCollections {
		if existing[name] {
			continue
		}
		schema := &api.CollectionSchema{
			Name: name,
			Fields: []api.Field{
				{Name: "taxonomy_id", Type: "int64"},
				{Name: "name", Type: "string"},
				{Name: "name_normalized", Type: "string", Facet: pointer.True()},
			},
			DefaultSortingField: pointer.String("taxonomy_id"),
		}
		if _, err := c.client.Collections().Create(ctx, schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		log.Printf("Created Typesense collection '%s'", name)
	}
	return nil
}

// SearchCollection runs a search against one collection
func (c *Client) SearchCollection(ctx context.Context, collection string, params *api.SearchCollectionParams) (*api.SearchResult, error) {
	return c.client.Collection(collection).Documents().Search(ctx, params)
}

// UpsertTerm indexes one taxonomy entry
func (c *Client) UpsertTerm(ctx context.Context, collection string, id int64, name string) error {
	doc := map[string]interface{}{
		"id":              fmt.Sprintf("%d", id),
		"taxonomy_id":     id,
		"name":            name,
		"name_normalized": NormalizeName(name),
	}
	_, err := c.client.Collection(collection).Documents().Upsert(ctx, doc)
	return err
}

// NormalizeName is the form stored in name_normalized and matched on lookup
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
