package routes

import (
	"net/http"

	"github.com/zatekoja/crmdataplatform/internal/api/handlers"
	"github.com/zatekoja/crmdataplatform/internal/api/middleware"
	"github.com/zatekoja/crmdataplatform/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	companyHandler  *handlers.CompanyHandler
	contactHandler  *handlers.ContactHandler
	progressHandler *handlers.RefreshProgressHandler
	streamHandler   *handlers.ProgressStreamHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	companyHandler *handlers.CompanyHandler,
	contactHandler *handlers.ContactHandler,
	progressHandler *handlers.RefreshProgressHandler,
	streamHandler *handlers.ProgressStreamHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		companyHandler:  companyHandler,
		contactHandler:  contactHandler,
		progressHandler: progressHandler,
		streamHandler:   streamHandler,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Company search endpoints
	r.mux.HandleFunc("POST /api/v0/companies/search", r.companyHandler.Search)
	r.mux.HandleFunc("POST /api/v0/companies/scroll", r.companyHandler.Scroll)
	r.mux.HandleFunc("POST /api/v0/companies/by-ids", r.companyHandler.ByIDs)
	r.mux.HandleFunc("GET /api/v0/companies/autocomplete", r.companyHandler.Autocomplete)
	r.mux.HandleFunc("GET /api/v0/industries", r.companyHandler.DefaultIndustries)
	r.mux.HandleFunc("GET /api/v0/industries/autocomplete", r.companyHandler.IndustryAutocomplete)

	// Contact endpoints
	r.mux.HandleFunc("POST /api/v0/contacts/by-ids", r.contactHandler.ByIDs)

	// Enrichment progress endpoints
	r.mux.HandleFunc("GET /api/v0/companies/{id}/refresh-progress", r.progressHandler.CompanyProgress)
	r.mux.HandleFunc("GET /api/v0/contacts/{id}/refresh-progress", r.progressHandler.ContactProgress)

	if r.streamHandler != nil {
		r.mux.HandleFunc("GET /api/v0/companies/{id}/refresh-progress/stream", r.streamHandler.StreamCompanyProgress)
		r.mux.HandleFunc("GET /api/v0/contacts/{id}/refresh-progress/stream", r.streamHandler.StreamContactProgress)
	}

	// last wrapper runs first; CORS stays outermost so preflights skip tracing
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
