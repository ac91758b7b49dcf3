package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/achou/atlassian-mcp-server/internal/api"
	"github.com/achou/atlassian-mcp-server/internal/mcp"
)

var (
	version = "1.0.0"

	// Global flags
	jiraURL  string
	port     int
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "atlassian-mcp-server",
		Short:   "Atlassian MCP Server - AI assistant integration for Jira and Bitbucket",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&jiraURL, "jira-url", os.Getenv("JIRA_BASE_URL"), "Jira base URL")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8080, "Server port (for SSE and API modes)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// MCP command
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the MCP server in stdio or SSE mode",
		RunE:  runMCP,
	}

	var sseMode bool
	mcpCmd.Flags().BoolVar(&sseMode, "sse", false, "Run in SSE mode instead of stdio")

	// API command
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Start REST API server",
		Long:  "Start the REST API server for ChatGPT GPT Actions",
		RunE:  runAPI,
	}

	rootCmd.AddCommand(mcpCmd, apiCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func runMCP(cmd *cobra.Command, args []string) error {
	config := mcp.GetEnvConfig()
	if jiraURL != "" {
		config.JiraURL = jiraURL
	}
	config.Port = port
	config.SSEMode, _ = cmd.Flags().GetBool("sse")

	if config.JiraURL == "" {
		return fmt.Errorf("JIRA_BASE_URL is required (set via --jira-url or JIRA_BASE_URL env var)")
	}
	if !config.SSEMode && (config.JiraEmail == "" || config.JiraAPIToken == "") {
		return fmt.Errorf("JIRA_EMAIL and JIRA_API_TOKEN are required for stdio mode")
	}

	server := mcp.NewServer(config)
	return server.Run()
}

func runAPI(cmd *cobra.Command, args []string) error {
	if jiraURL == "" {
		return fmt.Errorf("JIRA_BASE_URL is required (set via --jira-url or JIRA_BASE_URL env var)")
	}

	config := api.Config{
		JiraURL:            jiraURL,
		BitbucketWorkspace: os.Getenv("BITBUCKET_WORKSPACE"),
		Port:               port,
	}

	server := api.NewServer(config)
	return server.Run()
}
