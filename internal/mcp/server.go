package mcp

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/achou/atlassian-mcp-server/internal/bitbucket"
	"github.com/achou/atlassian-mcp-server/internal/jira"
)

const (
	ServerName    = "atlassian-mcp-server"
	ServerVersion = "1.0.0"
)

// Config holds MCP server configuration
type Config struct {
	JiraURL            string
	JiraEmail          string
	JiraAPIToken       string
	BitbucketWorkspace string
	BitbucketAPIKey    string
	Port               int
	SSEMode            bool
}

// Server wraps the MCP server
type Server struct {
	config  Config
	mcp     *server.MCPServer
	handler *ToolHandlers
}

// NewServer creates a new MCP server
func NewServer(config Config) *Server {
	return &Server{
		config: config,
	}
}

// Run starts the MCP server
func (s *Server) Run() error {
	s.mcp = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	if s.config.SSEMode {
		// SSE mode - credentials come per request from headers
		return s.runSSE()
	}

	// Stdio mode - credentials from the environment
	jiraClient := jira.NewClient(s.config.JiraURL, s.config.JiraEmail, s.config.JiraAPIToken)
	s.handler = NewToolHandlers(jiraClient, s.bitbucketClient(s.config.BitbucketAPIKey))
	s.handler.RegisterTools(s.mcp)

	slog.Info("Starting MCP server in stdio mode",
		"jira_url", s.config.JiraURL,
		"bitbucket_workspace", s.config.BitbucketWorkspace,
	)

	return server.ServeStdio(s.mcp)
}

// bitbucketClient builds a Bitbucket client when a workspace and key are
// configured, nil otherwise
func (s *Server) bitbucketClient(apiKey string) *bitbucket.Client {
	if s.config.BitbucketWorkspace == "" || apiKey == "" {
		return nil
	}
	return bitbucket.NewClient("", s.config.JiraEmail, apiKey, s.config.BitbucketWorkspace)
}

// runSSE starts the server in SSE mode
func (s *Server) runSSE() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	slog.Info("Starting MCP server in SSE mode",
		"address", addr,
		"jira_url", s.config.JiraURL,
	)

	sseHandler := &sseHandler{config: s.config}

	// Rate limiter: 100 requests per minute per IP
	rateLimiter := newSimpleRateLimiter(100, time.Minute)

	mux := http.NewServeMux()
	mux.Handle("/sse", sseHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	handler := securityHeadersMiddleware(rateLimiter.middleware(mux))

	return http.ListenAndServe(addr, handler)
}

// sseHandler handles SSE connections with per-request credentials
type sseHandler struct {
	config Config
}

func (h *sseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email := r.Header.Get("X-Jira-Email")
	apiToken := r.Header.Get("X-Jira-API-Token")
	if email == "" || apiToken == "" {
		http.Error(w, "Missing X-Jira-Email or X-Jira-API-Token header", http.StatusUnauthorized)
		return
	}

	jiraClient := jira.NewClient(h.config.JiraURL, email, apiToken)

	// Bitbucket is optional per request too
	var bbClient *bitbucket.Client
	if bbKey := r.Header.Get("X-Bitbucket-API-Key"); bbKey != "" && h.config.BitbucketWorkspace != "" {
		bbClient = bitbucket.NewClient("", email, bbKey, h.config.BitbucketWorkspace)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	handler := NewToolHandlers(jiraClient, bbClient)
	handler.RegisterTools(mcpServer)

	sseServer := server.NewSSEServer(mcpServer)
	sseServer.ServeHTTP(w, r)
}

// GetEnvConfig gets configuration from environment variables
func GetEnvConfig() Config {
	config := Config{
		JiraURL:            os.Getenv("JIRA_BASE_URL"),
		JiraEmail:          os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:       os.Getenv("JIRA_API_TOKEN"),
		BitbucketWorkspace: os.Getenv("BITBUCKET_WORKSPACE"),
		BitbucketAPIKey:    os.Getenv("BITBUCKET_API_KEY"),
		Port:               8080,
	}

	if port := os.Getenv("PORT"); port != "" {
		_, _ = fmt.Sscanf(port, "%d", &config.Port)
	}

	return config
}

// securityHeaders middleware adds security headers
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// simpleRateLimiter for SSE mode
type simpleRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func newSimpleRateLimiter(limit int, window time.Duration) *simpleRateLimiter {
	return &simpleRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *simpleRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var recent []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

func (rl *simpleRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if !rl.allow(key) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
