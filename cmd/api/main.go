package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zatekoja/crmdataplatform/internal/adapters/cache"
	"github.com/zatekoja/crmdataplatform/internal/adapters/database"
	"github.com/zatekoja/crmdataplatform/internal/adapters/search"
	"github.com/zatekoja/crmdataplatform/internal/api/handlers"
	"github.com/zatekoja/crmdataplatform/internal/api/routes"
	appservices "github.com/zatekoja/crmdataplatform/internal/application/services"
	"github.com/zatekoja/crmdataplatform/internal/domain/providers"
	"github.com/zatekoja/crmdataplatform/internal/domain/repositories"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/opensearch"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/redis"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
	"github.com/zatekoja/crmdataplatform/internal/query/services"
	"github.com/zatekoja/crmdataplatform/pkg/config"
)

// seedIndexes are the base index names loaded from SEARCH_SEED_DIR
var seedIndexes = []string{"companies", "contacts", "categories", "technologies", "rankings"}

func main() {

	// Load configuration

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.App.ServiceName, cfg.App.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	var cursorStore providers.CursorStore
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Emulated scroll cursors fall back to process memory
		cursorStore = cache.NewMemoryCursorStore()
	} else {
		defer redisClient.Close()
		cursorStore = cache.NewRedisCursorStore(redisClient)
		log.Println("Redis client initialized successfully")
	}

	// Initialize the document index
	index, closeIndex, err := newDocumentIndex(ctx, cfg, cursorStore)
	if err != nil {
		log.Fatalf("Failed to initialize %s document index: %v", cfg.Search.Backend, err)
	}
	defer closeIndex()
	log.Printf("Document index initialized successfully (backend: %s)", cfg.Search.Backend)

	// Initialize taxonomy resolution
	var resolver repositories.TaxonomyResolver
	switch cfg.Search.TaxonomySource {
	case "typesense":
		typesenseClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Fatalf("Failed to initialize Typesense client: %v", err)
		}
		if err := typesenseClient.InitSchema(ctx); err != nil {
			log.Printf("Warning: Failed to initialize Typesense schema: %v", err)
		}
		resolver = search.NewTypesenseTaxonomyAdapter(typesenseClient)
		log.Println("Typesense taxonomy resolver initialized successfully")
	default:
		resolver = appservices.NewIndexTaxonomyResolver(index, cfg.App.IndexName)
	}
	resolver = appservices.NewCachedTaxonomyResolver(resolver, cfg.Search.TaxonomyCacheSize, cfg.Search.TaxonomyCacheTTL, metrics)

	// Initialize services
	executor := services.NewSearchExecutor(index, services.ExecutorConfig{
		MaxResultWindow:  cfg.Search.MaxResultWindow,
		ChunkSize:        cfg.Search.ChunkSize,
		ChunkConcurrency: cfg.Search.ChunkConcurrency,
		ScrollKeepAlive:  cfg.Search.ScrollKeepAlive,
		Timeout:          cfg.Search.Timeout,
	}, metrics)

	companySearch := services.NewCompanySearchService(
		executor,
		appservices.NewCriteriaNormalizer(resolver),
		cfg.App.IndexName("companies"),
	)
	contactSearch := services.NewContactSearchService(executor, cfg.App.IndexName("contacts"))

	refreshAdapter := database.NewRefreshProcessAdapter(pgClient, metrics)
	progressService := appservices.NewRefreshProgressService(refreshAdapter)

	// Initialize handlers

	companyHandler := handlers.NewCompanyHandler(companySearch)
	contactHandler := handlers.NewContactHandler(contactSearch)
	progressHandler := handlers.NewRefreshProgressHandler(progressService)
	streamHandler := handlers.NewProgressStreamHandler(progressService, 0)

	// Set up router

	router := routes.NewRouter(
		companyHandler,
		contactHandler,
		progressHandler,
		streamHandler,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server. WriteTimeout stays unset so progress streams are
	// not cut off; search calls are bounded by the executor timeout.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// newDocumentIndex builds the configured index backend. The memory backend
// emulates scroll cursors in store and is seeded from cfg.Search.SeedDir.
func newDocumentIndex(ctx context.Context, cfg *config.Config, store providers.CursorStore) (repositories.DocumentIndex, func(), error) {
	if cfg.Search.Backend == "memory" {
		bleveAdapter, err := search.NewBleveAdapter()
		if err != nil {
			return nil, nil, err
		}
		if cfg.Search.SeedDir != "" {
			if err := seedMemoryIndex(ctx, bleveAdapter, cfg); err != nil {
				_ = bleveAdapter.Close()
				return nil, nil, err
			}
		}
		closeIndex := func() {
			if err := bleveAdapter.Close(); err != nil {
				log.Printf("Error closing memory index: %v", err)
			}
		}
		return services.NewEmulatedIndex(bleveAdapter, store), closeIndex, nil
	}

	osClient, err := opensearch.NewClient(ctx, &cfg.OpenSearch)
	if err != nil {
		return nil, nil, err
	}
	return search.NewOpenSearchAdapter(osClient.GetClient(), cfg.OpenSearch), func() {}, nil
}

func seedMemoryIndex(ctx context.Context, w search.DocumentWriter, cfg *config.Config) error {
	for _, base := range seedIndexes {
		path := filepath.Join(cfg.Search.SeedDir, base+".ndjson")
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		n, err := search.LoadDocuments(ctx, w, cfg.App.IndexName(base), f, 0)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", path, err)
		}
		log.Printf("Seeded %d documents into %s", n, cfg.App.IndexName(base))
	}
	return nil
}
