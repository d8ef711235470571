// Package common provides shared constants, types, and utilities
// used across NC Connect.
package common

// CredentialStore defines the interface for credential storage.
// Implementations may use system keyring, encrypted files, etc.
type CredentialStore interface {
	// Store saves the password for an account.
	Store(account, password string) error
	// Get retrieves the password for an account.
	Get(account string) (string, error)
	// Delete removes the password for an account.
	Delete(account string) error
	// Clear removes all stored passwords.
	Clear() error
}

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}

// AccountKey is the keyring account name for a user on a portal host.
func AccountKey(host, username string) string {
	return host + "/" + username
}
