package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/zatekoja/crmdataplatform/internal/adapters/search"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/opensearch"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/crmdataplatform/pkg/config"
)

const batchSize = 500

// documentIndexes are the base names loaded from <dir>/<base>.ndjson
var documentIndexes = []string{"companies", "contacts", "categories", "technologies", "rankings"}

func main() {
	var reset bool
	var dir string
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing indices before loading")
	flag.StringVar(&dir, "dir", "", "directory holding <index>.ndjson files")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reloading (e.g. 6h, 30m)")
	flag.Parse()

	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("SEARCH_SEED_DIR"))
	}
	if dir == "" {
		log.Fatalf("A document directory is required (-dir or SEARCH_SEED_DIR)")
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, dir, reset); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, dir string, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	osClient, err := opensearch.NewClient(ctx, &cfg.OpenSearch)
	if err != nil {
		return err
	}
	adapter := search.NewOpenSearchAdapter(osClient.GetClient(), cfg.OpenSearch)

	var tsClient *typesense.Client
	if cfg.Search.TaxonomySource == "typesense" {
		tsClient, err = typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			return err
		}
		if err := tsClient.InitSchema(ctx); err != nil {
			return err
		}
	}

	for _, base := range documentIndexes {
		path := filepath.Join(dir, base+".ndjson")
		name := cfg.App.IndexName(base)

		if reset {
			res, err := opensearchapi.IndicesDeleteRequest{Index: []string{name}}.Do(ctx, osClient.GetClient())
			if err != nil {
				log.Printf("Warning: failed to delete index %s: %v", name, err)
			} else {
				res.Body.Close()
				log.Printf("Deleted index %s (status %d)", name, res.StatusCode)
			}
		}

		docs, err := readFile(path)
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Skipping %s: %s not found", name, path)
			continue
		}
		if err != nil {
			return err
		}

		log.Printf("Indexing %d documents into %s...", len(docs), name)
		for start := 0; start < len(docs); start += batchSize {
			end := min(start+batchSize, len(docs))
			if err := adapter.IndexDocuments(ctx, name, docs[start:end]); err != nil {
				return fmt.Errorf("failed to index %s: %w", name, err)
			}
		}

		if tsClient != nil && isTaxonomy(base) {
			if err := upsertTerms(ctx, tsClient, base, docs); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFile(path string) ([]repositories.SearchHit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return search.ReadDocuments(f)
}

func isTaxonomy(base string) bool {
	for _, name := range typesense.TaxonomyCollections {
		if name == base {
			return true
		}
	}
	return false
}

// upsertTerms mirrors taxonomy documents into the Typesense lookup collection
func upsertTerms(ctx context.Context, client *typesense.Client, collection string, docs []repositories.SearchHit) error {
	for _, d := range docs {
		var term struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(d.Source, &term); err != nil || term.Name == "" {
			log.Printf("Warning: skipping %s term %s without a name", collection, d.ID)
			continue
		}
		if err := client.UpsertTerm(ctx, collection, term.ID, term.Name); err != nil {
			return fmt.Errorf("failed to upsert %s term %d: %w", collection, term.ID, err)
		}
	}
	log.Printf("Upserted %d terms into Typesense collection %s", len(docs), collection)
	return nil
}
