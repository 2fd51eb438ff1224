package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/VouchlyAI/Pincer-MCP/internal/audit"
	"github.com/VouchlyAI/Pincer-MCP/internal/caller"
	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
	"github.com/VouchlyAI/Pincer-MCP/internal/keychain"
	"github.com/VouchlyAI/Pincer-MCP/internal/schema"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

type passValidator struct{}

func (passValidator) Validate(tool string, arguments map[string]any) error { return nil }

func setupOrchestrator(t *testing.T, callers caller.Registry) (*Orchestrator, *store.Store) {
	t.Helper()
	keychain.InstallFakeBackendForTests(t)
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	key := make([]byte, 32)
	if err := s.SetMasterKey(key); err != nil {
		t.Fatalf("seed master key: %v", err)
	}

	auditLog, err := audit.Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}

	o := New(s, passValidator{}, callers, auditLog, []ToolDescriptor{{Name: "gemini_generate"}})
	return o, s
}

func TestCallToolHappyPath(t *testing.T) {
	callers := caller.Registry{
		"gemini_generate": caller.CallerFunc(func(ctx context.Context, req *injector.EnrichedRequest) (caller.Response, error) {
			if req.Credentials.APIKey != "AIza-secret" {
				t.Fatalf("expected injected key, got %q", req.Credentials.APIKey)
			}
			return caller.Response{Output: map[string]any{"text": "hi"}}, nil
		}),
	}
	o, s := setupOrchestrator(t, callers)
	ctx := context.Background()
	if err := s.SetSecret(ctx, "gemini_api_key", "default", "AIza-secret"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	resp, err := o.CallTool(ctx, Request{
		Tool:      "gemini_generate",
		Arguments: map[string]any{"prompt": "hi"},
		Meta:      map[string]any{"pincer_token": token},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if resp.Output["text"] != "hi" {
		t.Fatalf("unexpected output: %+v", resp.Output)
	}
}

func TestCallToolAuthFailurePropagatesAndLogs(t *testing.T) {
	o, _ := setupOrchestrator(t, caller.Registry{})
	_, err := o.CallTool(context.Background(), Request{Tool: "gemini_generate"})
	if !gwerrors.Is(err, gwerrors.KindMissingToken) {
		t.Fatalf("expected MissingToken, got %v", err)
	}
}

func TestCallToolScrubsOnCallerError(t *testing.T) {
	boom := errors.New("upstream exploded")
	callers := caller.Registry{
		"gemini_generate": caller.CallerFunc(func(ctx context.Context, req *injector.EnrichedRequest) (caller.Response, error) {
			return caller.Response{}, boom
		}),
	}
	o, s := setupOrchestrator(t, callers)
	ctx := context.Background()
	if err := s.SetSecret(ctx, "gemini_api_key", "default", "AIza-secret"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	_, err = o.CallTool(ctx, Request{
		Tool:      "gemini_generate",
		Arguments: map[string]any{"prompt": "hi"},
		Meta:      map[string]any{"pincer_token": token},
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if o.injector.Outstanding() != 0 {
		t.Fatalf("expected scrub to run even on caller error, outstanding=%d", o.injector.Outstanding())
	}
}

func TestListToolsRequiresNoAuthentication(t *testing.T) {
	o, _ := setupOrchestrator(t, caller.Registry{})
	tools := o.ListTools()
	if len(tools) != 1 || tools[0].Name != "gemini_generate" {
		t.Fatalf("unexpected tool list: %+v", tools)
	}
}

func TestCallToolUnknownToolErrors(t *testing.T) {
	o, s := setupOrchestrator(t, caller.Registry{})
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "mystery_tool", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	_, err = o.CallTool(ctx, Request{Tool: "mystery_tool", Meta: map[string]any{"pincer_token": token}})
	if !gwerrors.Is(err, gwerrors.KindUnknownTool) {
		t.Fatalf("expected UnknownTool, got %v", err)
	}
}

var _ = schema.Validator(passValidator{})
