// Package common provides shared constants, types, and utilities
// used across NC Connect.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "io.github.yllada.ncconnect"
	// AppName is the display name of the application.
	AppName = "NC Connect"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "ncconnect"
)

// File names used by the application.
const (
	ConfigFileName      = "config.yaml"
	EnvFileName         = "ncconnect.env"
	CredentialsFileName = ".credentials"
	HistoryFileName     = "history.db"
	LogFileName         = "ncconnect.log"
)

// Default timeouts and intervals.
const (
	// ExitGracePeriod is how long helpers get to exit before the process is terminated.
	ExitGracePeriod = 5 * time.Second
	// PortalTimeout bounds a single round trip to the VPN portal.
	PortalTimeout = 30 * time.Second
	// MailboxSize is the buffer of the orchestrator mailbox.
	MailboxSize = 64
)

// Tray messages shown to the user.
const (
	MessageCouldNotConnect    = "Could not connect"
	MessageInvalidCredentials = "Invalid username or password"
	MessageHelperFailed       = "Could not start Network Connect"
	MessageSettingsNotSaved   = "Could not save settings"
)

// UI constants.
const (
	// DialogMargin is the standard margin for dialog content.
	DialogMargin = 24
	// TrayIconSize is the size of the system tray icon.
	TrayIconSize = 22
)
