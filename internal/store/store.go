// Package store is the Vault Store: the single source of truth for
// encrypted secrets, proxy-token records, and agent-tool mappings,
// backed by an embedded modernc.org/sqlite database file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/VouchlyAI/Pincer-MCP/internal/cipher"
	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/keychain"
)

// Store is the Vault Store handle. It owns the single shared *sql.DB
// connection and a process-local cache of the master key, zeroed on
// Close so no plaintext key material outlives the handle.
type Store struct {
	db        *sql.DB
	path      string
	keychain  *keychain.Adapter
	masterKey []byte
}

// Open opens (creating if absent) the vault database at path and loads
// the master key from the keychain into a process-local cache.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("vault db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, path: path, keychain: keychain.New()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS secrets (
			tool_name  TEXT NOT NULL,
			key_label  TEXT NOT NULL,
			ciphertext BLOB NOT NULL,
			nonce      BLOB NOT NULL,
			auth_tag   BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (tool_name, key_label)
		);`,
		`CREATE TABLE IF NOT EXISTS proxy_tokens (
			agent_id    TEXT NOT NULL UNIQUE,
			proxy_token TEXT NOT NULL UNIQUE,
			created_at  TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_proxy_tokens_token ON proxy_tokens(proxy_token);`,
		`CREATE TABLE IF NOT EXISTS agent_mappings (
			agent_id  TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			key_label TEXT NOT NULL,
			PRIMARY KEY (agent_id, tool_name)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_mappings_lookup ON agent_mappings(agent_id, tool_name);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SetMasterKey writes a freshly generated master key to the keychain
// backing this Store. Used once, by Init.
func (s *Store) SetMasterKey(key []byte) error {
	return s.keychain.Write(key)
}

// DeleteMasterKey removes the master key from the keychain and clears
// the process-local cache, leaving every table in the database intact.
// This is the true reset operation: secrets remain on disk but become
// unreadable until a new master key is provisioned.
func (s *Store) DeleteMasterKey() error {
	_, err := s.keychain.Delete()
	for i := range s.masterKey {
		s.masterKey[i] = 0
	}
	s.masterKey = nil
	return err
}

// masterKeyCache lazily loads and caches the master key for the
// lifetime of this Store handle.
func (s *Store) masterKeyCache() ([]byte, error) {
	if s.masterKey != nil {
		return s.masterKey, nil
	}
	key, err := s.keychain.Read()
	if err != nil {
		return nil, err
	}
	s.masterKey = key
	return s.masterKey, nil
}

// Close closes the DB handle and zeroes the cached master-key buffer.
// This must occur on every shutdown path.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	for i := range s.masterKey {
		s.masterKey[i] = 0
	}
	s.masterKey = nil
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetSecret encrypts plaintext under the current master key and upserts
// it by (tool, label).
func (s *Store) SetSecret(ctx context.Context, tool, label, plaintext string) error {
	if label == "" {
		label = "default"
	}
	key, err := s.masterKeyCache()
	if err != nil {
		return err
	}
	sealed, err := cipher.Encrypt(key, []byte(plaintext))
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secrets (tool_name, key_label, ciphertext, nonce, auth_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tool_name, key_label) DO UPDATE SET
			ciphertext=excluded.ciphertext,
			nonce=excluded.nonce,
			auth_tag=excluded.auth_tag,
			created_at=excluded.created_at
	`, tool, label, sealed.Ciphertext, sealed.Nonce, sealed.Tag, now)
	return err
}

// GetSecret loads and decrypts the record for (tool, label).
func (s *Store) GetSecret(ctx context.Context, tool, label string) (string, error) {
	if label == "" {
		label = "default"
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT ciphertext, nonce, auth_tag FROM secrets WHERE tool_name = ? AND key_label = ?
	`, tool, label)
	var sealed cipher.Sealed
	if err := row.Scan(&sealed.Ciphertext, &sealed.Nonce, &sealed.Tag); err != nil {
		if err == sql.ErrNoRows {
			return "", gwerrors.New(gwerrors.KindSecretMissing, "no secret for tool=%q label=%q", tool, label)
		}
		return "", err
	}
	key, err := s.masterKeyCache()
	if err != nil {
		return "", err
	}
	plaintext, err := cipher.Decrypt(key, sealed)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// SecretSummary describes one tool's registered labels, for list_secrets.
type SecretSummary struct {
	Tool   string
	Labels []string
}

// ListSecrets returns every tool grouped with its sorted labels, sorted
// by tool name.
func (s *Store) ListSecrets(ctx context.Context) ([]SecretSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_name, key_label FROM secrets ORDER BY tool_name, key_label
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecretSummary
	var current *SecretSummary
	for rows.Next() {
		var tool, label string
		if err := rows.Scan(&tool, &label); err != nil {
			return nil, err
		}
		if current == nil || current.Tool != tool {
			out = append(out, SecretSummary{Tool: tool})
			current = &out[len(out)-1]
		}
		current.Labels = append(current.Labels, label)
	}
	return out, rows.Err()
}
