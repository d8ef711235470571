package orchestrator

import (
	"context"

	"github.com/yllada/ncconnect/common"
)

// SettingsStore holds the user's preferences.
type SettingsStore interface {
	Save() error
	Host() string
	Username() string
	RememberPassword() bool
	// RememberLogin records the username of a sign-in attempt.
	RememberLogin(username string) error
}

// LoginClient drives the portal's web login handshake. Its network
// methods block and are only called from background tasks; they report
// the resulting page by posting an event.
type LoginClient interface {
	Connect(ctx context.Context) error
	Login(ctx context.Context, username, password, realm string) error
	SubmitOneTimePin(ctx context.Context, pin string) error
	SubmitConfirm(ctx context.Context) error
	Disconnect() error
	Realms(ctx context.Context) ([]string, error)
	CurrentPage() common.PageState
	DSID() string
}

// Supervisor starts and watches one helper process.
type Supervisor interface {
	// SetSession records the portal host and session token handed to the
	// helper on its next start.
	SetSession(host, dsid string)
	StartIfNotRunning(credential string) error
	Start(credential string) error
	Terminate() error
	TerminateIfRunning() error
}

// Tray is the system tray surface.
type Tray interface {
	ShowMessage(text string)
	SetConnected(connected bool)
	EnableSessionInfo()
	Hide()
}

// SettingsDialog edits the settings store and posts
// EventHostSettingsUpdated when the user accepts.
type SettingsDialog interface {
	MakeVisible()
}

// ConnectDialog collects credentials and one-time PINs.
type ConnectDialog interface {
	MakeVisible(view common.DialogView)
	SetVisible(visible bool)
	Username() string
	Password() string
	Realm() string
	OneTimePin() string
	SetRealms(realms []string)
	// Prefill seeds the login view with remembered values.
	Prefill(username, password string)
}

// AdminDialog asks for the local privilege password.
type AdminDialog interface {
	MakeVisible()
	Password() string
}

// SessionDialog shows the active session token.
type SessionDialog interface {
	MakeVisible()
	SetDSID(dsid string)
}

// StatusPublisher receives workflow status changes.
type StatusPublisher interface {
	Publish(status common.Status) error
}

// Deps wires the dispatcher to its collaborators. Credentials and Status
// are optional.
type Deps struct {
	Settings       SettingsStore
	Client         LoginClient
	Service        Supervisor
	UI             Supervisor
	Tray           Tray
	SettingsDialog SettingsDialog
	ConnectDialog  ConnectDialog
	AdminDialog    AdminDialog
	SessionDialog  SessionDialog
	Credentials    common.CredentialStore
	Status         StatusPublisher
}

func (d Deps) validate() error {
	switch {
	case d.Settings == nil:
		return errMissing("settings store")
	case d.Client == nil:
		return errMissing("login client")
	case d.Service == nil:
		return errMissing("service supervisor")
	case d.UI == nil:
		return errMissing("ui supervisor")
	case d.Tray == nil:
		return errMissing("tray")
	case d.SettingsDialog == nil:
		return errMissing("settings dialog")
	case d.ConnectDialog == nil:
		return errMissing("connect dialog")
	case d.AdminDialog == nil:
		return errMissing("admin dialog")
	case d.SessionDialog == nil:
		return errMissing("session dialog")
	}
	return nil
}
