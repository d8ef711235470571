package orchestrator

import (
	"fmt"
	"time"

	"github.com/yllada/ncconnect/common"
)

// Role names a helper supervisor.
type Role string

const (
	RoleService Role = "service"
	RoleUI      Role = "ui"
)

// Command describes one collaborator call. Reduce returns commands as
// data; the dispatcher executes them.
type Command interface {
	fmt.Stringer
	command()
}

type (
	// ShowSettingsDialog shows the settings dialog.
	ShowSettingsDialog struct{}
	// ShowSessionDialog shows the session dialog with the current DSID.
	ShowSessionDialog struct{}
	// ShowAdminDialog asks for the password used to start the helpers.
	ShowAdminDialog struct{}
	// HideConnectDialog hides the connect dialog.
	HideConnectDialog struct{}

	// ShowConnectDialog shows the connect dialog on View. The login view is
	// prefilled with the remembered username and password.
	ShowConnectDialog struct {
		View common.DialogView
	}

	// SetRealms fills the realm choices of the login view.
	SetRealms struct {
		Realms []string
	}

	// TrayMessage shows Text as a notification.
	TrayMessage struct {
		Text string
	}

	// TraySetConnected switches the tray icon and menu.
	TraySetConnected struct {
		Connected bool
	}

	// TrayEnableSessionInfo enables the Session Info menu entry.
	TrayEnableSessionInfo struct{}
	// TrayHide removes the tray icon.
	TrayHide struct{}

	// SaveSettings persists the settings store.
	SaveSettings struct{}
	// ClientDisconnect drops the portal session and cancels running tasks.
	ClientDisconnect struct{}

	// PropagateSession hands the client's DSID to both supervisors and the
	// session dialog.
	PropagateSession struct{}

	// StartHelpers reads the admin password once, starts the service
	// helper if it is not running and then starts the ui helper.
	StartHelpers struct{}

	// TerminateHelper stops the helper of Role. With IfRunning it also
	// stops a helper started outside this process.
	TerminateHelper struct {
		Role      Role
		IfRunning bool
	}

	// RunTask starts a background task of Kind in the current epoch.
	RunTask struct {
		Kind TaskKind
	}

	// ScheduleExit ends the process After the delay, on its own timer.
	ScheduleExit struct {
		After time.Duration
	}

	// Note is logged and otherwise ignored.
	Note struct {
		Message string
	}
)

func (ShowSettingsDialog) command()    {}
func (ShowSessionDialog) command()     {}
func (ShowAdminDialog) command()       {}
func (HideConnectDialog) command()     {}
func (ShowConnectDialog) command()     {}
func (SetRealms) command()             {}
func (TrayMessage) command()           {}
func (TraySetConnected) command()      {}
func (TrayEnableSessionInfo) command() {}
func (TrayHide) command()              {}
func (SaveSettings) command()          {}
func (ClientDisconnect) command()      {}
func (PropagateSession) command()      {}
func (StartHelpers) command()          {}
func (TerminateHelper) command()       {}
func (RunTask) command()               {}
func (ScheduleExit) command()          {}
func (Note) command()                  {}

func (ShowSettingsDialog) String() string { return "show settings dialog" }
func (ShowSessionDialog) String() string  { return "show session dialog" }
func (ShowAdminDialog) String() string    { return "show admin dialog" }
func (HideConnectDialog) String() string  { return "hide connect dialog" }
func (c ShowConnectDialog) String() string {
	return fmt.Sprintf("show connect dialog (%s)", c.View)
}
func (c SetRealms) String() string            { return fmt.Sprintf("set realms %v", c.Realms) }
func (c TrayMessage) String() string          { return fmt.Sprintf("tray message %q", c.Text) }
func (c TraySetConnected) String() string     { return fmt.Sprintf("tray connected=%t", c.Connected) }
func (TrayEnableSessionInfo) String() string  { return "tray enable session info" }
func (TrayHide) String() string               { return "tray hide" }
func (SaveSettings) String() string           { return "save settings" }
func (ClientDisconnect) String() string       { return "disconnect client" }
func (PropagateSession) String() string       { return "propagate session" }
func (StartHelpers) String() string           { return "start helpers" }
func (c RunTask) String() string              { return "run task " + c.Kind.String() }
func (c ScheduleExit) String() string         { return fmt.Sprintf("exit in %s", c.After) }
func (c Note) String() string                 { return "note: " + c.Message }
func (c TerminateHelper) String() string {
	if c.IfRunning {
		return fmt.Sprintf("terminate %s helper if running", c.Role)
	}
	return fmt.Sprintf("terminate %s helper", c.Role)
}
