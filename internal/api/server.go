// Package api serves the gateway over REST with a chi router. The MCP
// streamable HTTP handler can be mounted alongside on /mcp.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sqlgate/sqlgate"
)

// Engine is the subset of *sqlgate.Gateway the handlers use.
type Engine interface {
	Execute(ctx context.Context, req sqlgate.QueryRequest) *sqlgate.QueryResponse
	ListTables(ctx context.Context) (*sqlgate.ListTablesOutput, error)
	DescribeTable(ctx context.Context, input sqlgate.DescribeTableInput) (*sqlgate.DescribeTableOutput, error)
	SampleEmployees(ctx context.Context, limit int) (*sqlgate.RowsOutput, error)
	Departments(ctx context.Context) (*sqlgate.RowsOutput, error)
	Stats(ctx context.Context) (*sqlgate.StatsOutput, error)
	Health(ctx context.Context) (*sqlgate.HealthOutput, error)
}

// Options configures NewRouter.
type Options struct {
	// AllowedOrigins lists CORS origins; empty allows every origin.
	AllowedOrigins []string
	// MCP, when set, is mounted on /mcp.
	MCP http.Handler
	// Version is reported by the root endpoint.
	Version string
}

type server struct {
	engine  Engine
	version string
	mcp     bool
}

// NewRouter builds the HTTP handler for every REST route.
func NewRouter(engine Engine, opts Options, logger zerolog.Logger) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	s := &server{engine: engine, version: version, mcp: opts.MCP != nil}

	r := chi.NewRouter()
	r.Use(requestID(logger))
	r.Use(accessLog)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/execute", s.handleExecute)
		r.Get("/tables", s.handleTables)
		r.Get("/table/{name}", s.handleTable)
		r.Get("/employees/sample", s.handleSample)
		r.Get("/departments", s.handleDepartments)
		r.Get("/stats", s.handleStats)
	})
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}
