//go:build !darwin && !linux

package keychain

import (
	"fmt"
	"os"
)

func keyringGet(service, account string) (string, error) {
	_ = service
	_ = account
	return "", os.ErrNotExist
}

func keyringSet(service, account, secret string) error {
	_ = secret
	return fmt.Errorf("keychain backend not supported on this platform (service=%q account=%q)", service, account)
}

func keyringDelete(service, account string) (bool, error) {
	return false, fmt.Errorf("keychain backend not supported on this platform (service=%q account=%q)", service, account)
}
