package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/achou/atlassian-mcp-server/internal/bitbucket"
	"github.com/achou/atlassian-mcp-server/internal/jira"

	_ "github.com/achou/atlassian-mcp-server/docs" // swagger docs
)

// Config holds API server configuration
type Config struct {
	JiraURL            string
	BitbucketWorkspace string
	Port               int
}

// Server is the REST API server
type Server struct {
	config      Config
	router      *chi.Mux
	rateLimiter *RateLimiter
	readOnly    bool

	// sessions caches the per-credential service bundles so the field
	// catalog and issue caches survive across requests
	mu       sync.Mutex
	sessions map[string]*session
}

// session bundles the clients and caches bound to one set of credentials
type session struct {
	jira      *jira.Client
	catalog   *jira.FieldCatalog
	updater   *jira.Updater
	directory *jira.IssueDirectory
	repos     *bitbucket.RepoCache
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	s := &Server{
		config:      config,
		router:      chi.NewRouter(),
		rateLimiter: NewRateLimiter(100, time.Second, 200), // 100 req/sec, burst 200
		readOnly:    os.Getenv("ATLASSIAN_MCP_READ_ONLY") == "true",
		sessions:    make(map[string]*session),
	}
	if s.readOnly {
		slog.Info("read-only mode enabled - write endpoints will be rejected")
	}

	s.setupRoutes()

	// Start rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.rateLimiter.Cleanup(10 * time.Minute)
		}
	}()

	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)          // Security headers
	r.Use(s.rateLimiter.Middleware) // Rate limiting

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Swagger UI - uses swaggo generated docs
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// OpenAPI spec (static inline)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(openAPISpec))
	})

	// API routes with authentication middleware
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Issues
		r.Get("/issues", s.handleSearchIssues)
		r.Get("/issues/{key}", s.handleGetIssue)
		r.Get("/issues/{key}/summary", s.handleGetIssueSummary)
		r.Post("/issues/{key}/comments", s.handleAddComment)
		r.Post("/issues/{key}/update", s.handleUpdateIssue)

		// Custom fields
		r.Get("/fields", s.handleListFields)
		r.Get("/fields/{id}/options", s.handleFieldOptions)

		// Bitbucket
		r.Get("/repositories", s.handleListRepositories)

		// Caches
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleClearCache)
	})
}

// authMiddleware extracts the Jira credentials and resolves the per-credential
// service bundle
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get("X-Jira-Email")
		apiToken := r.Header.Get("X-Jira-API-Token")
		if email == "" || apiToken == "" {
			http.Error(w, `{"error": "Missing X-Jira-Email or X-Jira-API-Token header"}`, http.StatusUnauthorized)
			return
		}

		sess := s.session(email, apiToken, r.Header.Get("X-Bitbucket-API-Key"))
		ctx := withSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// session returns the service bundle for the given credentials, creating it
// on first use. The map key uses a token prefix to avoid holding full keys.
func (s *Server) session(email, apiToken, bbKey string) *session {
	prefix := apiToken
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	key := email + ":" + prefix
	if bbKey != "" {
		key += ":bb"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess
	}

	client := jira.NewClient(s.config.JiraURL, email, apiToken)
	catalog := jira.NewFieldCatalog(client)
	sess := &session{
		jira:      client,
		catalog:   catalog,
		updater:   jira.NewUpdater(client, catalog),
		directory: jira.NewIssueDirectory(client),
	}
	if bbKey != "" && s.config.BitbucketWorkspace != "" {
		bbClient := bitbucket.NewClient("", email, bbKey, s.config.BitbucketWorkspace)
		sess.repos = bitbucket.NewRepoCache(bbClient)
	}
	s.sessions[key] = sess
	return sess
}

// Run starts the API server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	slog.Info("Starting REST API server",
		"address", addr,
		"jira_url", s.config.JiraURL,
		"docs", fmt.Sprintf("http://localhost:%d/docs/index.html", s.config.Port),
	)

	return http.ListenAndServe(addr, s.router)
}

const openAPISpec = `openapi: 3.0.3
info:
  title: Atlassian MCP Server API
  description: REST API for Jira and Bitbucket integration with AI assistants
  version: 1.0.0
servers:
  - url: /api/v1
security:
  - JiraEmail: []
    JiraToken: []
components:
  securitySchemes:
    JiraEmail:
      type: apiKey
      in: header
      name: X-Jira-Email
    JiraToken:
      type: apiKey
      in: header
      name: X-Jira-API-Token
  schemas:
    Error:
      type: object
      properties:
        error:
          type: string
paths:
  /issues:
    get:
      summary: Search issues with JQL
      tags: [Issues]
      parameters:
        - name: jql
          in: query
          required: true
          schema:
            type: string
          description: JQL query string
        - name: maxResults
          in: query
          schema:
            type: integer
            default: 50
        - name: startAt
          in: query
          schema:
            type: integer
            default: 0
      responses:
        '200':
          description: List of matching issues
  /issues/{key}:
    get:
      summary: Get issue details
      tags: [Issues]
      parameters:
        - name: key
          in: path
          required: true
          schema:
            type: string
          description: Issue key (e.g. DEMO-123)
      responses:
        '200':
          description: Issue details with custom fields
  /issues/{key}/summary:
    get:
      summary: Summarize a ticket
      tags: [Issues]
      parameters:
        - name: key
          in: path
          required: true
          schema:
            type: string
      responses:
        '200':
          description: Structured summary with root cause and solution analysis
  /issues/{key}/comments:
    post:
      summary: Add a comment
      tags: [Issues]
      parameters:
        - name: key
          in: path
          required: true
          schema:
            type: string
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [comment]
              properties:
                comment:
                  type: string
      responses:
        '201':
          description: Comment added
  /issues/{key}/update:
    post:
      summary: Update issue fields
      tags: [Issues]
      parameters:
        - name: key
          in: path
          required: true
          schema:
            type: string
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                summary:
                  type: string
                description:
                  type: string
                priority:
                  type: string
                assignee:
                  type: string
                labels:
                  type: array
                  items:
                    type: string
                components:
                  type: array
                  items:
                    type: string
                fixVersions:
                  type: array
                  items:
                    type: string
                customFields:
                  type: object
                  description: Custom fields keyed by field ID
                customFieldsByName:
                  type: object
                  description: Custom fields keyed by display name
                validateDropdowns:
                  type: boolean
                  default: true
                allowPartialUpdates:
                  type: boolean
                dryRun:
                  type: boolean
      responses:
        '200':
          description: Update result with per-field outcome
  /fields:
    get:
      summary: List custom field definitions
      tags: [Custom Fields]
      responses:
        '200':
          description: Custom field catalog with dropdown options
  /fields/{id}/options:
    get:
      summary: List dropdown options for a field
      tags: [Custom Fields]
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
          description: Field ID (e.g. customfield_10001)
      responses:
        '200':
          description: Option list
        '404':
          description: Unknown field
  /repositories:
    get:
      summary: List Bitbucket repositories
      tags: [Bitbucket]
      parameters:
        - name: maxResults
          in: query
          schema:
            type: integer
            default: 50
      responses:
        '200':
          description: Repository list
  /cache/stats:
    get:
      summary: Cache statistics
      tags: [Cache]
      responses:
        '200':
          description: Issue, field and repository cache statistics
  /cache:
    delete:
      summary: Clear all caches
      tags: [Cache]
      responses:
        '200':
          description: Caches cleared
`
