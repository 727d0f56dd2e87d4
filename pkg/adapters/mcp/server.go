// Package mcp exposes snapshots and live stores as MCP tools and resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/blocksync"
	"github.com/aretw0/blocksync/internal/presentation/graph"
	"github.com/aretw0/blocksync/internal/validator"
	"github.com/aretw0/blocksync/pkg/autosave"
	"github.com/aretw0/blocksync/pkg/domain"
	"github.com/aretw0/blocksync/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StoresURI lists the registered live stores.
const StoresURI = "blocksync://stores"

// Server wraps a snapshot manager and a store registry as an MCP server.
type Server struct {
	snapshots *autosave.Manager
	stores    *registry.Registry
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(snapshots *autosave.Manager, stores *registry.Registry) *Server {
	if stores == nil {
		stores = registry.NewRegistry()
	}
	s := &Server{
		snapshots: snapshots,
		stores:    stores,
		mcpServer: server.NewMCPServer("blocksync-mcp", strings.TrimSpace(blocksync.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List the IDs of every saved document."),
	), s.handleListSnapshots)

	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return a saved document as a JSON node list or a Mermaid diagram."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("format", mcp.Description("json (default) or mermaid")),
	), s.handleGetSnapshot)

	s.mcpServer.AddTool(mcp.NewTool("put_snapshot",
		mcp.WithDescription("Validate and save a JSON node list under a document ID."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document ID")),
		mcp.WithString("tree", mcp.Required(), mcp.Description("JSON array of nodes")),
	), s.handlePutSnapshot)

	s.mcpServer.AddTool(mcp.NewTool("delete_snapshot",
		mcp.WithDescription("Remove a saved document."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document ID")),
	), s.handleDeleteSnapshot)

	s.mcpServer.AddTool(mcp.NewTool("store_root",
		mcp.WithDescription("Return the current root list of a live store."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Registered store name")),
	), s.handleStoreRoot)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StoresURI, "Live Stores",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.stores.Names())
		if err != nil {
			return nil, fmt.Errorf("failed to encode stores: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StoresURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func stringArg(request mcp.CallToolRequest, key string) string {
	v, _ := request.GetArguments()[key].(string)
	return v
}

func requireArg(request mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	v := stringArg(request, key)
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("missing required argument %q", key))
	}
	return v, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleListSnapshots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.snapshots.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResult(ids)
}

func (s *Server) handleGetSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, bad := requireArg(request, "doc_id")
	if bad != nil {
		return bad, nil
	}
	tree, err := s.snapshots.Load(ctx, docID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	switch format := stringArg(request, "format"); format {
	case "", "json":
		return jsonResult(tree)
	case "mermaid":
		return mcp.NewToolResultText(graph.GenerateMermaid(docID, tree, nil)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

func (s *Server) handlePutSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, bad := requireArg(request, "doc_id")
	if bad != nil {
		return bad, nil
	}
	raw, bad := requireArg(request, "tree")
	if bad != nil {
		return bad, nil
	}

	tree := domain.NewTree()
	if err := json.Unmarshal([]byte(raw), tree); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}
	if err := validator.ValidateTree(tree); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.snapshots.Save(ctx, docID, tree); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved %s (%d top-level nodes)", docID, tree.Len())), nil
}

func (s *Server) handleDeleteSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, bad := requireArg(request, "doc_id")
	if bad != nil {
		return bad, nil
	}
	if err := s.snapshots.Delete(ctx, docID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText("deleted " + docID), nil
}

func (s *Server) handleStoreRoot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := requireArg(request, "name")
	if bad != nil {
		return bad, nil
	}
	store, err := s.stores.Get(name)
	if errors.Is(err, registry.ErrStoreNotFound) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(store.Root())
}
