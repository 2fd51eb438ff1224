// Package controlplane is the sole writer of administrative state: the
// thin transactions cmd/pincer exposes over internal/store and
// internal/keychain. Destructive operations never prompt themselves —
// that confirmation lives in cmd/pincer — they just execute.
package controlplane

import (
	"context"

	"github.com/VouchlyAI/Pincer-MCP/internal/cipher"
	"github.com/VouchlyAI/Pincer-MCP/internal/store"
)

// ControlPlane wraps a Vault Store handle with the administrative
// operations cmd/pincer drives.
type ControlPlane struct {
	store *store.Store
}

func New(s *store.Store) *ControlPlane {
	return &ControlPlane{store: s}
}

// Open opens an already-initialized vault at vaultPath. It does not
// touch the keychain; secret operations will fail with NotInitialized
// until Init has run once on this host.
func Open(vaultPath string) (*ControlPlane, error) {
	s, err := store.Open(vaultPath)
	if err != nil {
		return nil, err
	}
	return New(s), nil
}

// Init generates a fresh master key and writes it to the keychain via
// the store's underlying Vault Store open path. Open already created
// the database file and schema; Init's job is strictly the key
// material, so it is safe to call once per host.
func Init(vaultPath string) (*ControlPlane, []byte, error) {
	s, err := store.Open(vaultPath)
	if err != nil {
		return nil, nil, err
	}
	key, err := cipher.GenerateKey()
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	if err := s.SetMasterKey(key); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return New(s), key, nil
}

func (cp *ControlPlane) SetSecret(ctx context.Context, tool, label, plaintext string) error {
	return cp.store.SetSecret(ctx, tool, label, plaintext)
}

func (cp *ControlPlane) ListSecrets(ctx context.Context) ([]store.SecretSummary, error) {
	return cp.store.ListSecrets(ctx)
}

func (cp *ControlPlane) AddAgent(ctx context.Context, agentID, customToken string) (string, error) {
	return cp.store.AddAgent(ctx, agentID, customToken)
}

func (cp *ControlPlane) ListAgents(ctx context.Context) ([]store.AgentInfo, error) {
	return cp.store.ListAgents(ctx)
}

func (cp *ControlPlane) Authorize(ctx context.Context, agentID, tool, label string) error {
	return cp.store.SetMapping(ctx, agentID, tool, label)
}

func (cp *ControlPlane) Revoke(ctx context.Context, agentID, tool string) error {
	return cp.store.Revoke(ctx, agentID, tool)
}

func (cp *ControlPlane) RemoveAgent(ctx context.Context, agentID string) error {
	return cp.store.RemoveAgent(ctx, agentID)
}

// ClearAll truncates secrets, tokens, and mappings, keeping the master
// key intact.
func (cp *ControlPlane) ClearAll(ctx context.Context) error {
	return cp.store.ClearAll(ctx)
}

// Reset deletes the master key only. Every secret, agent, and mapping
// row stays on disk, but none of it is readable again until a fresh
// key is provisioned via Init.
func (cp *ControlPlane) Reset(ctx context.Context) error {
	return cp.store.DeleteMasterKey()
}

// Destroy closes the store, deletes the master key from the keychain,
// and removes the database file and its sidecar files. The
// ControlPlane value must not be used afterward.
func (cp *ControlPlane) Destroy() error {
	return cp.store.Destroy()
}

// Close closes the underlying Vault Store handle without destroying
// any state.
func (cp *ControlPlane) Close() error {
	return cp.store.Close()
}
