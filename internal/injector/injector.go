// Package injector resolves the vault secret a tool call needs, grafts
// it into an enriched request for the caller, and scrubs it afterward.
package injector

import (
	"context"
	"runtime"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

// secretNames maps an externally visible tool name to the vault key
// identifier it draws from. Unknown tools map to themselves, so a new
// tool works without a registry update as long as its secret is stored
// under the tool's own name.
var secretNames = map[string]string{
	"gemini_generate":    "gemini_api_key",
	"slack_post_message": "slack_bot_token",
	"gpg_sign":           "gpg_signing_key",
}

func secretNameFor(tool string) string {
	if name, ok := secretNames[tool]; ok {
		return name
	}
	return tool
}

// Credentials carries the plaintext secret an EnrichedRequest hands to
// a Caller, plus the agent id it was issued to.
type Credentials struct {
	APIKey  string
	AgentID string
}

// EnrichedRequest is the original request plus resolved credentials.
// Handles are ULIDs purely for introspection; the tracking registry
// below is not a correctness mechanism.
type EnrichedRequest struct {
	handle      ulid.ULID
	Tool        string
	Arguments   map[string]any
	Credentials Credentials
}

// Injector resolves secrets via the Vault Store and tracks outstanding
// enriched requests.
type Injector struct {
	store *store.Store

	mu      sync.Mutex
	tracked map[ulid.ULID]*EnrichedRequest
}

func New(s *store.Store) *Injector {
	return &Injector{store: s, tracked: map[ulid.ULID]*EnrichedRequest{}}
}

// Inject builds an EnrichedRequest carrying the decrypted secret agentID
// is entitled to for tool.
func (inj *Injector) Inject(ctx context.Context, tool string, arguments map[string]any, agentID string) (*EnrichedRequest, error) {
	label, err := inj.store.GetMappingLabel(ctx, agentID, tool)
	if err != nil {
		return nil, err
	}
	secretName := secretNameFor(tool)
	plaintext, err := inj.store.GetSecret(ctx, secretName, label)
	if err != nil {
		return nil, err
	}

	req := &EnrichedRequest{
		handle:    ulid.Make(),
		Tool:      tool,
		Arguments: arguments,
		Credentials: Credentials{
			APIKey:  plaintext,
			AgentID: agentID,
		},
	}
	inj.mu.Lock()
	inj.tracked[req.handle] = req
	inj.mu.Unlock()
	return req, nil
}

// scrubPattern is the fixed-length non-secret byte pattern a scrubbed
// APIKey is overwritten with before the reference is dropped.
const scrubPattern = "SCRUBBED-00000000000000000000000"

// Scrub overwrites req's credential and removes it from the tracking
// registry. It must run on every exit path of a tool call, including
// error paths.
func (inj *Injector) Scrub(req *EnrichedRequest) {
	if req == nil {
		return
	}
	req.Credentials.APIKey = scrubPattern
	req.Credentials = Credentials{}

	inj.mu.Lock()
	delete(inj.tracked, req.handle)
	inj.mu.Unlock()

	runtime.GC()
}

// Outstanding reports how many enriched requests have not yet been
// scrubbed, for introspection only.
func (inj *Injector) Outstanding() int {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	return len(inj.tracked)
}
