// Package credentials keeps API tokens in the OS keychain.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "todosync"

const (
	AccountCanvas  = "canvas"
	AccountTracker = "tracker"
)

// ErrUnknownAccount is returned for account names other than canvas and tracker.
var ErrUnknownAccount = errors.New("credentials: unknown account")

// Load retrieves a stored token.
func Load(account string) (string, error) {
	if err := check(account); err != nil {
		return "", err
	}
	return keyring.Get(serviceName, account)
}

// Store persists a token.
func Store(account, token string) error {
	if err := check(account); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("credentials: empty token for %s", account)
	}
	return keyring.Set(serviceName, account, token)
}

// Delete removes a stored token.
func Delete(account string) error {
	if err := check(account); err != nil {
		return err
	}
	return keyring.Delete(serviceName, account)
}

// Resolve returns configured when set, otherwise the keychain token. A
// missing keychain entry yields "" without error.
func Resolve(account, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	token, err := Load(account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("credentials: read %s token: %w", account, err)
	}
	return token, nil
}

func check(account string) error {
	switch account {
	case AccountCanvas, AccountTracker:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAccount, account)
	}
}
