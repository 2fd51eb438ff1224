package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"os"
	"strings"
	"time"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
)

const (
	proxyTokenPrefix = "pxr_"
	proxyTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	proxyTokenRandLen  = 21
)

// GenerateProxyToken draws a fresh pxr_<21 URL-safe chars> token.
func GenerateProxyToken() (string, error) {
	buf := make([]byte, proxyTokenRandLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(proxyTokenPrefix)
	for _, b := range buf {
		sb.WriteByte(proxyTokenAlphabet[int(b)%len(proxyTokenAlphabet)])
	}
	return sb.String(), nil
}

// AddAgent registers a new agent identity, generating a proxy token
// unless customToken is supplied.
func (s *Store) AddAgent(ctx context.Context, agentID, customToken string) (string, error) {
	token := strings.TrimSpace(customToken)
	if token == "" {
		generated, err := GenerateProxyToken()
		if err != nil {
			return "", err
		}
		token = generated
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proxy_tokens (agent_id, proxy_token, created_at) VALUES (?, ?, ?)
	`, agentID, token, now)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return "", gwerrors.Wrap(gwerrors.KindConflict, err, "agent %q or its token already exists", agentID)
		}
		return "", err
	}
	return token, nil
}

// GetAgentByToken resolves a proxy token to its owning agent id. Returns
// ("", nil) if the token is unknown.
func (s *Store) GetAgentByToken(ctx context.Context, token string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT agent_id FROM proxy_tokens WHERE proxy_token = ?`, token)
	var agentID string
	if err := row.Scan(&agentID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return agentID, nil
}

// SetMapping grants agentID the key label for tool (upsert).
func (s *Store) SetMapping(ctx context.Context, agentID, tool, label string) error {
	if label == "" {
		label = "default"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_mappings (agent_id, tool_name, key_label) VALUES (?, ?, ?)
		ON CONFLICT(agent_id, tool_name) DO UPDATE SET key_label=excluded.key_label
	`, agentID, tool, label)
	return err
}

// IsAuthorized reports whether agentID has any mapping for tool. This is
// the sole authorization gate; GetMappingLabel must never substitute
// for it.
func (s *Store) IsAuthorized(ctx context.Context, agentID, tool string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM agent_mappings WHERE agent_id = ? AND tool_name = ?
	`, agentID, tool)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetMappingLabel returns the key label agentID is entitled to for tool,
// defaulting to "default" if no mapping row exists. Callers must still
// call IsAuthorized to gate access; this method never does.
func (s *Store) GetMappingLabel(ctx context.Context, agentID, tool string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key_label FROM agent_mappings WHERE agent_id = ? AND tool_name = ?
	`, agentID, tool)
	var label string
	if err := row.Scan(&label); err != nil {
		if err == sql.ErrNoRows {
			return "default", nil
		}
		return "", err
	}
	return label, nil
}

// AgentInfo describes one registered agent for list_agents.
type AgentInfo struct {
	AgentID string
	Token   string
	Tools   []ToolLabel
}

// ToolLabel pairs a tool name with the label an agent is mapped to.
type ToolLabel struct {
	Tool  string
	Label string
}

// ListAgents returns every agent with its token and tool mappings.
func (s *Store) ListAgents(ctx context.Context) ([]AgentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, proxy_token FROM proxy_tokens ORDER BY agent_id
	`)
	if err != nil {
		return nil, err
	}
	var agents []AgentInfo
	for rows.Next() {
		var a AgentInfo
		if err := rows.Scan(&a.AgentID, &a.Token); err != nil {
			rows.Close()
			return nil, err
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range agents {
		mrows, err := s.db.QueryContext(ctx, `
			SELECT tool_name, key_label FROM agent_mappings WHERE agent_id = ? ORDER BY tool_name
		`, agents[i].AgentID)
		if err != nil {
			return nil, err
		}
		for mrows.Next() {
			var tl ToolLabel
			if err := mrows.Scan(&tl.Tool, &tl.Label); err != nil {
				mrows.Close()
				return nil, err
			}
			agents[i].Tools = append(agents[i].Tools, tl)
		}
		if err := mrows.Err(); err != nil {
			mrows.Close()
			return nil, err
		}
		mrows.Close()
	}
	return agents, nil
}

// Revoke deletes a single (agent, tool) mapping.
func (s *Store) Revoke(ctx context.Context, agentID, tool string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM agent_mappings WHERE agent_id = ? AND tool_name = ?
	`, agentID, tool)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gwerrors.New(gwerrors.KindNotFound, "no mapping for agent=%q tool=%q", agentID, tool)
	}
	return nil
}

// RemoveAgent deletes all of agentID's mappings then its token record,
// inside a single transaction.
func (s *Store) RemoveAgent(ctx context.Context, agentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_mappings WHERE agent_id = ?`, agentID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM proxy_tokens WHERE agent_id = ?`, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return gwerrors.New(gwerrors.KindNotFound, "no agent %q", agentID)
	}
	return tx.Commit()
}

// ClearAll truncates secrets, tokens, and mappings, keeping the master
// key untouched.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM secrets`,
		`DELETE FROM proxy_tokens`,
		`DELETE FROM agent_mappings`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Destroy closes the store, deletes the master key from the keychain,
// and removes the database file and its sidecar files (WAL/SHM).
func (s *Store) Destroy() error {
	path := s.path
	existed, keyErr := s.keychain.Delete()
	_ = existed
	closeErr := s.Close()
	var firstErr error
	if keyErr != nil {
		firstErr = keyErr
	} else if closeErr != nil {
		firstErr = closeErr
	}
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		_ = removeIfExists(path + suffix)
	}
	return firstErr
}

func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
