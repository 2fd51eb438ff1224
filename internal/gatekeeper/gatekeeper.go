// Package gatekeeper extracts and validates the caller's proxy token
// from an incoming tool request and resolves it to an authorized agent.
package gatekeeper

import (
	"context"
	"os"
	"regexp"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

const (
	metaTokenKey = "pincer_token"
	argsTokenKey = "__pincer_auth__"
	envTokenName = "PINCER_PROXY_TOKEN"
)

var tokenPattern = regexp.MustCompile(`^pxr_[A-Za-z0-9_-]{21,}$`)

// Request is the subset of an incoming tool call the Gatekeeper needs:
// the tool name plus the metadata and arguments maps a token may be
// carried in.
type Request struct {
	Tool      string
	Meta      map[string]any
	Arguments map[string]any
}

// Gatekeeper authenticates requests against the Vault Store.
type Gatekeeper struct {
	store *store.Store
}

func New(s *store.Store) *Gatekeeper {
	return &Gatekeeper{store: s}
}

// Authenticate extracts a proxy token from req (metadata, then
// arguments, then environment, in that priority order), validates its
// format, resolves it to an agent, and checks the agent is authorized
// for req.Tool. When the token is read out of req.Arguments, the
// argsTokenKey entry is deleted from the map before Authenticate
// returns, so it never reaches a downstream caller.
func (g *Gatekeeper) Authenticate(ctx context.Context, req Request) (agentID, token string, err error) {
	token, err = extractToken(req)
	if err != nil {
		return "", "", err
	}
	if !tokenPattern.MatchString(token) {
		return "", "", gwerrors.New(gwerrors.KindBadTokenFormat, "proxy token does not match pxr_<21+ url-safe chars>")
	}

	agentID, err = g.store.GetAgentByToken(ctx, token)
	if err != nil {
		return "", "", err
	}
	if agentID == "" {
		return "", "", gwerrors.New(gwerrors.KindUnknownToken, "proxy token does not resolve to an agent")
	}

	authorized, err := g.store.IsAuthorized(ctx, agentID, req.Tool)
	if err != nil {
		return "", "", err
	}
	if !authorized {
		return "", "", gwerrors.New(gwerrors.KindForbidden, "agent %q is not authorized for tool %q", agentID, req.Tool)
	}
	return agentID, token, nil
}

func extractToken(req Request) (string, error) {
	if v, ok := req.Meta[metaTokenKey]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	if v, ok := req.Arguments[argsTokenKey]; ok {
		delete(req.Arguments, argsTokenKey)
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	if v := os.Getenv(envTokenName); v != "" {
		return v, nil
	}
	return "", gwerrors.New(gwerrors.KindMissingToken,
		"no proxy token found in _meta.%s, arguments.%s, or %s", metaTokenKey, argsTokenKey, envTokenName)
}
