package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/docsearch/mcp-server/internal/config"
	"github.com/docsearch/mcp-server/internal/logging"
	"github.com/docsearch/mcp-server/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	version     = "0.3.0"
	serverName  = "docsearch-mcp-server"
	description = "MCP server for searching generated documentation search indexes"
)

var log = logging.For("server")

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		// Logging to stderr (MCP uses stdout for protocol)
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("Invalid log_level %q, keeping default: %v", cfg.LogLevel, err)
	}
	tools.Configure(cfg)

	log.Infof("%s v%s starting...", serverName, version)
	log.Debugf("Data directory: %s", cfg.DataDir)

	server := createMCPServer()

	if err := registerTools(server); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}
	registerResources(server)

	log.Info("✓ Server ready and waiting for connections")

	// Set up cleanup on shutdown
	defer func() {
		if err := tools.CloseDocSearch(); err != nil {
			log.Errorf("Error closing doc search: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run server with stdio transport
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Errorf("Server error: %v", err)
	}
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil, // Default options
	)

	log.Debugf("Server initialized: %s v%s (%s)", serverName, version, description)
	return server
}

// registerTools registers all MCP tools
func registerTools(server *mcp.Server) error {
	toolCount := 0

	// Search and refresh (2 tools)
	if err := tools.RegisterDocSearchTools(server); err != nil {
		return fmt.Errorf("failed to register doc search tools: %w", err)
	}
	toolCount += 2

	// Page and anchor browsing (3 tools)
	if err := tools.RegisterRecordTools(server); err != nil {
		return fmt.Errorf("failed to register record tools: %w", err)
	}
	toolCount += 3

	// Schema validation (1 tool)
	if err := tools.RegisterValidationTools(server); err != nil {
		return fmt.Errorf("failed to register validation tools: %w", err)
	}
	toolCount++

	// Index status (1 tool)
	tools.RegisterStatusTools(server)
	toolCount++

	log.Infof("✓ All tools registered: %d tools (search + records + validation + status)", toolCount)
	return nil
}

// registerResources registers all MCP resources
func registerResources(server *mcp.Server) {
	count := tools.RegisterResources(server)
	log.Infof("Resources registered: %d", count)
}
