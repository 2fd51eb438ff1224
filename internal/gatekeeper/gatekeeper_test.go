package gatekeeper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/keychain"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	keychain.InstallFakeBackendForTests(t)
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAuthenticateFromMeta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	gk := New(s)
	req := Request{Tool: "gemini_generate", Meta: map[string]any{"pincer_token": token}}
	agentID, gotToken, err := gk.Authenticate(ctx, req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if agentID != "agent-1" || gotToken != token {
		t.Fatalf("got agentID=%q token=%q", agentID, gotToken)
	}
}

func TestAuthenticateFromArgumentsStripsField(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}

	gk := New(s)
	args := map[string]any{"__pincer_auth__": token, "prompt": "hello"}
	req := Request{Tool: "gemini_generate", Arguments: args}
	if _, _, err := gk.Authenticate(ctx, req); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, ok := args["__pincer_auth__"]; ok {
		t.Fatalf("expected __pincer_auth__ stripped from arguments after extraction")
	}
	if args["prompt"] != "hello" {
		t.Fatalf("unrelated arguments must survive")
	}
}

func TestAuthenticateFromEnv(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	t.Setenv("PINCER_PROXY_TOKEN", token)

	gk := New(s)
	agentID, _, err := gk.Authenticate(ctx, Request{Tool: "gemini_generate"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if agentID != "agent-1" {
		t.Fatalf("got %q want agent-1", agentID)
	}
}

func TestAuthenticatePriorityMetaBeforeArgsBeforeEnv(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	metaToken, err := s.AddAgent(ctx, "meta-agent", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "meta-agent", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	argsToken, err := s.AddAgent(ctx, "args-agent", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "args-agent", "gemini_generate", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	t.Setenv("PINCER_PROXY_TOKEN", "pxr_env-token-should-not-win-12345")

	gk := New(s)
	req := Request{
		Tool:      "gemini_generate",
		Meta:      map[string]any{"pincer_token": metaToken},
		Arguments: map[string]any{"__pincer_auth__": argsToken},
	}
	agentID, _, err := gk.Authenticate(ctx, req)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if agentID != "meta-agent" {
		t.Fatalf("expected meta source to win, got %q", agentID)
	}
}

func TestAuthenticateMissingTokenNamesAllThreeSources(t *testing.T) {
	s := openTestStore(t)
	os.Unsetenv("PINCER_PROXY_TOKEN")
	gk := New(s)
	_, _, err := gk.Authenticate(context.Background(), Request{Tool: "gemini_generate"})
	if !gwerrors.Is(err, gwerrors.KindMissingToken) {
		t.Fatalf("expected MissingToken, got %v", err)
	}
}

func TestAuthenticateBadFormat(t *testing.T) {
	s := openTestStore(t)
	gk := New(s)
	req := Request{Tool: "gemini_generate", Meta: map[string]any{"pincer_token": "not-a-valid-token"}}
	_, _, err := gk.Authenticate(context.Background(), req)
	if !gwerrors.Is(err, gwerrors.KindBadTokenFormat) {
		t.Fatalf("expected BadTokenFormat, got %v", err)
	}
}

func TestAuthenticateUnknownToken(t *testing.T) {
	s := openTestStore(t)
	gk := New(s)
	req := Request{Tool: "gemini_generate", Meta: map[string]any{"pincer_token": "pxr_aaaaaaaaaaaaaaaaaaaaaaaaa"}}
	_, _, err := gk.Authenticate(context.Background(), req)
	if !gwerrors.Is(err, gwerrors.KindUnknownToken) {
		t.Fatalf("expected UnknownToken, got %v", err)
	}
}

func TestAuthenticateForbiddenWhenNotMapped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	gk := New(s)
	req := Request{Tool: "gemini_generate", Meta: map[string]any{"pincer_token": token}}
	_, _, err = gk.Authenticate(ctx, req)
	if !gwerrors.Is(err, gwerrors.KindForbidden) {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}
