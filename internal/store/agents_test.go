package store

import (
	"context"
	"strings"
	"testing"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
)

func TestGenerateProxyTokenShape(t *testing.T) {
	tok, err := GenerateProxyToken()
	if err != nil {
		t.Fatalf("GenerateProxyToken: %v", err)
	}
	if !strings.HasPrefix(tok, "pxr_") {
		t.Fatalf("expected pxr_ prefix, got %q", tok)
	}
	if len(tok) != len("pxr_")+proxyTokenRandLen {
		t.Fatalf("unexpected token length: %q", tok)
	}
}

func TestAddAgentThenGetByToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	agentID, err := s.GetAgentByToken(ctx, token)
	if err != nil {
		t.Fatalf("GetAgentByToken: %v", err)
	}
	if agentID != "agent-1" {
		t.Fatalf("got %q want agent-1", agentID)
	}
}

func TestGetAgentByUnknownTokenReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	agentID, err := s.GetAgentByToken(context.Background(), "pxr_does-not-exist")
	if err != nil {
		t.Fatalf("GetAgentByToken: %v", err)
	}
	if agentID != "" {
		t.Fatalf("expected empty agent id, got %q", agentID)
	}
}

func TestAddAgentDuplicateIDConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if _, err := s.AddAgent(ctx, "agent-1", ""); !gwerrors.Is(err, gwerrors.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestSetMappingAndIsAuthorized(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	ok, err := s.IsAuthorized(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatalf("expected not authorized before mapping exists")
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini", "prod"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	ok, err = s.IsAuthorized(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if !ok {
		t.Fatalf("expected authorized after mapping")
	}
	label, err := s.GetMappingLabel(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("GetMappingLabel: %v", err)
	}
	if label != "prod" {
		t.Fatalf("got %q want prod", label)
	}
}

func TestGetMappingLabelDefaultsWithoutAuthorizing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	label, err := s.GetMappingLabel(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("GetMappingLabel: %v", err)
	}
	if label != "default" {
		t.Fatalf("got %q want default", label)
	}
	ok, err := s.IsAuthorized(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatalf("GetMappingLabel must not act as an authorization gate")
	}
}

func TestRevokeUnknownMappingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.Revoke(ctx, "agent-1", "gemini"); !gwerrors.Is(err, gwerrors.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRevokeRemovesMappingButKeepsAgent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if err := s.Revoke(ctx, "agent-1", "gemini"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, err := s.IsAuthorized(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatalf("expected mapping gone after revoke")
	}
	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected agent to survive revoke, got %d agents", len(agents))
	}
}

func TestRemoveAgentCascadesMappings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	token, err := s.AddAgent(ctx, "agent-1", "")
	if err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if err := s.RemoveAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("RemoveAgent: %v", err)
	}
	agentID, err := s.GetAgentByToken(ctx, token)
	if err != nil {
		t.Fatalf("GetAgentByToken: %v", err)
	}
	if agentID != "" {
		t.Fatalf("expected token gone after RemoveAgent")
	}
	ok, err := s.IsAuthorized(ctx, "agent-1", "gemini")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Fatalf("expected mapping gone after RemoveAgent")
	}
}

func TestRemoveAgentUnknownReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.RemoveAgent(context.Background(), "ghost"); !gwerrors.Is(err, gwerrors.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListAgentsIncludesMappings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := s.SetMapping(ctx, "agent-1", "gemini", "default"); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 || len(agents[0].Tools) != 1 {
		t.Fatalf("unexpected agents: %+v", agents)
	}
	if agents[0].Tools[0].Tool != "gemini" || agents[0].Tools[0].Label != "default" {
		t.Fatalf("unexpected mapping: %+v", agents[0].Tools[0])
	}
}
