package keychain

import (
	"os"
	"testing"
)

// InstallFakeBackendForTests swaps the package-level credential-store
// backend for an in-memory stand-in for the duration of t, restoring the
// real backend on cleanup. Exported so internal/store and other
// consumers can exercise keychain-backed code paths without a real OS
// credential store present in CI.
func InstallFakeBackendForTests(t *testing.T) {
	t.Helper()
	entries := map[string]string{}
	orig := backend
	backend.get = func(service, account string) (string, error) {
		v, ok := entries[service+"/"+account]
		if !ok {
			return "", os.ErrNotExist
		}
		return v, nil
	}
	backend.set = func(service, account, secret string) error {
		entries[service+"/"+account] = secret
		return nil
	}
	backend.delete = func(service, account string) (bool, error) {
		key := service + "/" + account
		_, existed := entries[key]
		delete(entries, key)
		return existed, nil
	}
	t.Cleanup(func() { backend = orig })
}
