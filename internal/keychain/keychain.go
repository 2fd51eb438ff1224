// Package keychain adapts the host OS credential store to the gateway's
// master-key lifecycle: read, write-once, idempotent delete.
package keychain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
)

// Service and account identify the single keychain entry every Pincer
// process on a host shares, so multiple processes see the same vault.
const (
	Service = "pincer-vault"
	Account = "master-key"
)

const keyLen = 32

// backend is overridden in tests to avoid depending on a real OS
// credential store being present in the test environment.
var backend = struct {
	get    func(service, account string) (string, error)
	set    func(service, account, secret string) error
	delete func(service, account string) (bool, error)
}{keyringGet, keyringSet, keyringDelete}

// Adapter reads, writes, and deletes the 32-byte master key from the host
// OS credential store.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

// Read returns the master key, or a NotInitialized error if the host
// credential store has no entry yet.
func (a *Adapter) Read() ([]byte, error) {
	raw, err := backend.get(Service, Account)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, gwerrors.New(gwerrors.KindNotInitialized, "master key not found in keychain")
		}
		return nil, gwerrors.Wrap(gwerrors.KindKeychainIO, err, "keychain read failed")
	}
	key, err := decodeKey(raw)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindKeychainIO, err, "stored master key is malformed")
	}
	return key, nil
}

// Write stores a new master key. It refuses to overwrite an existing one
// (init is idempotent-rejecting).
func (a *Adapter) Write(key []byte) error {
	if len(key) != keyLen {
		return gwerrors.New(gwerrors.KindKeychainIO, "master key must be %d bytes, got %d", keyLen, len(key))
	}
	if _, err := backend.get(Service, Account); err == nil {
		return gwerrors.New(gwerrors.KindAlreadyInitialized, "master key already present in keychain")
	} else if !errors.Is(err, os.ErrNotExist) {
		return gwerrors.Wrap(gwerrors.KindKeychainIO, err, "keychain probe failed")
	}
	if err := backend.set(Service, Account, hex.EncodeToString(key)); err != nil {
		return gwerrors.Wrap(gwerrors.KindKeychainIO, err, "keychain write failed")
	}
	return nil
}

// Delete removes the master key. It is idempotent from the caller's
// point of view but still reports whether an entry actually existed, so
// operators have a telemetry signal distinguishing "destroyed something"
// from "there was nothing to destroy". Callers must check the bool, not
// just the error.
func (a *Adapter) Delete() (existed bool, err error) {
	existed, delErr := backend.delete(Service, Account)
	if delErr != nil {
		return existed, gwerrors.Wrap(gwerrors.KindKeychainIO, delErr, "keychain delete failed")
	}
	return existed, nil
}

func decodeKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("expected lowercase hex: %w", err)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", keyLen, len(key))
	}
	return key, nil
}
