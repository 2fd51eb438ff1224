// Command pincerd is the MCP-facing credential gateway daemon: it
// exposes the registered tool surface over streamable HTTP, routing
// every call through the orchestrator's authenticate → validate →
// inject → execute → scrub → audit pipeline.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/VouchlyAI/Pincer-MCP/internal/audit"
	"github.com/VouchlyAI/Pincer-MCP/internal/caller"
	"github.com/VouchlyAI/Pincer-MCP/internal/config"
	"github.com/VouchlyAI/Pincer-MCP/internal/gwlog"
	"github.com/VouchlyAI/Pincer-MCP/internal/orchestrator"
	"github.com/VouchlyAI/Pincer-MCP/internal/schema"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

func main() {
	logger := gwlog.New("pincerd", nil)
	cfg := config.Load()

	s, err := store.Open(cfg.VaultPath)
	if err != nil {
		logger.Fatalf("vault open: %v", err)
	}

	auditLog, err := audit.Open(cfg.AuditPath)
	if err != nil {
		logger.Fatalf("audit open: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	callers := caller.Registry{
		"gemini_generate":    caller.NewGeminiGenerate(httpClient),
		"slack_post_message": caller.NewSlackPostMessage(httpClient),
		"gpg_sign":           caller.NewGPGSign(),
	}

	validator := schema.NewRegistry()
	registerKnownSchemas(validator)

	tools := []orchestrator.ToolDescriptor{
		{Name: "gemini_generate"},
		{Name: "slack_post_message"},
		{Name: "gpg_sign"},
	}

	orch := orchestrator.New(s, validator, callers, auditLog, tools)
	defer orch.Close()

	srv := &gatewayServer{orch: orch, logger: logger}

	impl := &mcp.Implementation{
		Name:    "pincer-gateway",
		Title:   "Pincer Credential Gateway",
		Version: "0.1.0",
	}
	server := mcp.NewServer(impl, &mcp.ServerOptions{HasTools: true})

	for _, tool := range tools {
		name := tool.Name
		mcp.AddTool(server, &mcp.Tool{
			Name:        name,
			Description: "gateway-mediated call to " + name,
		}, srv.handlerFor(name))
	}

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

// gatewayServer adapts the orchestrator's map-based Request/Response to
// the MCP SDK's typed-tool dispatch.
type gatewayServer struct {
	orch   *orchestrator.Orchestrator
	logger *log.Logger
}

// toolArgs is the raw argument bag every gateway-mediated tool accepts.
// The orchestrator's schema validator enforces per-tool shape; the
// wire-level type here stays untyped so the gateway never needs to
// know a tool's argument shape ahead of registering it.
type toolArgs map[string]any

type toolResult struct {
	Output json.RawMessage `json:"output"`
}

func (s *gatewayServer) handlerFor(name string) func(context.Context, *mcp.CallToolRequest, toolArgs) (*mcp.CallToolResult, toolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, in toolArgs) (*mcp.CallToolResult, toolResult, error) {
		meta := map[string]any{}
		if req != nil && req.Params != nil && req.Params.Meta != nil {
			for k, v := range req.Params.Meta {
				meta[k] = v
			}
		}
		resp, err := s.orch.CallTool(ctx, orchestrator.Request{
			Tool:      name,
			Arguments: in,
			Meta:      meta,
		})
		if err != nil {
			return nil, toolResult{}, err
		}
		encoded, encErr := json.Marshal(resp.Output)
		if encErr != nil {
			return nil, toolResult{}, encErr
		}
		return nil, toolResult{Output: encoded}, nil
	}
}

func registerKnownSchemas(r *schema.Registry) {
	_ = r.Register("gemini_generate", []byte(`{
		"type": "object",
		"properties": {"prompt": {"type": "string"}},
		"required": ["prompt"],
		"additionalProperties": true
	}`))
	_ = r.Register("slack_post_message", []byte(`{
		"type": "object",
		"properties": {
			"channel": {"type": "string"},
			"text": {"type": "string"}
		},
		"required": ["channel", "text"],
		"additionalProperties": true
	}`))
	_ = r.Register("gpg_sign", []byte(`{
		"type": "object",
		"properties": {"payload": {"type": "string"}},
		"required": ["payload"],
		"additionalProperties": true
	}`))
}
