// Package common provides shared constants, types, and utilities
// used across NC Connect.
package common

import "github.com/pkg/errors"

// Sentinel errors for workflow operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Portal errors.
	ErrInvalidHost      = errors.New("invalid portal host")
	ErrUnexpectedPage   = errors.New("unexpected portal page")
	ErrNoForm           = errors.New("portal page has no form")
	ErrNotAuthenticated = errors.New("no authenticated session")

	// Helper process errors.
	ErrHelperRunning    = errors.New("helper process already running")
	ErrHelperNotRunning = errors.New("helper process not running")
	ErrNoSession        = errors.New("helper has no session")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}
