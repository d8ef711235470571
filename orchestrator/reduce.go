package orchestrator

import (
	"fmt"

	"github.com/yllada/ncconnect/common"
)

// Reduce is the workflow transition table. Given the current state and the
// portal's page, it returns the next state and the commands to execute for
// ev. It has no side effects.
func Reduce(s State, page common.PageState, ev common.Event) (State, []Command) {
	switch ev {
	// Tray
	case common.EventExit:
		s.Exiting = true
		return s, []Command{
			TrayHide{},
			TerminateHelper{Role: RoleUI},
			TerminateHelper{Role: RoleService, IfRunning: true},
			ScheduleExit{After: common.ExitGracePeriod},
		}
	case common.EventTraySettings:
		return s, []Command{ShowSettingsDialog{}}
	case common.EventTrayConnect:
		return showConnectionDialog(s, page)
	case common.EventTrayDisconnect:
		return s, []Command{TerminateHelper{Role: RoleUI}}
	case common.EventTraySession:
		return s, []Command{ShowSessionDialog{}}

	// Settings dialog
	case common.EventHostSettingsUpdated:
		return s, []Command{SaveSettings{}}

	// Connect dialog
	case common.EventConnectOkay:
		if s.View != common.ViewLogin && s.View != common.ViewConnecting {
			return s, notef("login ignored: connect dialog is on the %s view", s.View)
		}
		return startTask(s, TaskLogin)
	case common.EventConnectCanceled, common.EventConnectOneTimePinCanceled:
		s.View = common.ViewHidden
		return endSession(s), []Command{ClientDisconnect{}}
	case common.EventConnectOneTimePinOkay:
		if s.View != common.ViewOneTimePin {
			return s, notef("one-time PIN ignored: connect dialog is on the %s view", s.View)
		}
		return startTask(s, TaskSubmitPin)

	// Session dialog: closing it needs no action.
	case common.EventSessionClose:
		return s, nil

	// Portal
	case common.EventCommunicatorTimeout:
		// Accepted without a transition; the pending task reports its own
		// failure.
		return s, nil
	case common.EventCommunicatorInvalidURL:
		s.View = common.ViewHidden
		return s, []Command{
			TrayMessage{Text: common.MessageCouldNotConnect},
			HideConnectDialog{},
		}
	case common.EventCommunicatorLogin, common.EventCommunicatorOneTimePin:
		return showConnectionDialog(s, page)
	case common.EventCommunicatorConfirm:
		return startTask(s, TaskSubmitConfirm)
	case common.EventCommunicatorLoginSuccessful:
		s.View = common.ViewHidden
		s.SessionActive = true
		return s, []Command{
			PropagateSession{},
			HideConnectDialog{},
			ShowAdminDialog{},
			TrayEnableSessionInfo{},
		}
	case common.EventCommunicatorInvalidUsernamePassword:
		s.View = common.ViewHidden
		return endSession(s), []Command{
			TrayMessage{Text: common.MessageInvalidCredentials},
			HideConnectDialog{},
			ClientDisconnect{},
		}

	// Admin dialog
	case common.EventAdminOkay:
		return s, []Command{StartHelpers{}}
	case common.EventAdminCanceled:
		return endSession(s), []Command{ClientDisconnect{}}

	// Helper supervisors
	case common.EventHelperStarted:
		s.Connected = true
		return s, []Command{TraySetConnected{Connected: true}}
	case common.EventHelperStopped:
		s.Connected = false
		return endSession(s), []Command{ClientDisconnect{}, TraySetConnected{Connected: false}}
	}

	return s, notef("unhandled event %s", ev)
}

// ReduceResult folds a finished background task into the state.
func ReduceResult(s State, r TaskResult) (State, []Command) {
	if r.Epoch != s.epoch {
		return s, notef("%s result of an abandoned session ignored", r.Kind)
	}
	s.inFlight = s.inFlight.without(r.Kind)

	if r.Kind == TaskFetchRealms {
		if r.Err != nil {
			return s, notef("couldn't fetch the realm information: %v", r.Err)
		}
		return s, []Command{SetRealms{Realms: r.Realms}}
	}

	if r.Err != nil {
		return s, notef("%s task failed: %v", r.Kind, r.Err)
	}
	return s, nil
}

// endSession clears the session and forgets every running task. It goes
// with a ClientDisconnect command.
func endSession(s State) State {
	s.SessionActive = false
	s.inFlight = 0
	s.epoch++
	return s
}

// showConnectionDialog picks the connect dialog view for the portal's page.
func showConnectionDialog(s State, page common.PageState) (State, []Command) {
	var cmds []Command
	switch page {
	case common.PageNone:
		s.View = common.ViewConnecting
		s, cmds = startTask(s, TaskConnect)
		return s, append([]Command{ShowConnectDialog{View: common.ViewConnecting}}, cmds...)
	case common.PageLogin:
		s.View = common.ViewLogin
		s, cmds = startTask(s, TaskFetchRealms)
		return s, append([]Command{ShowConnectDialog{View: common.ViewLogin}}, cmds...)
	case common.PageOneTimePin:
		s.View = common.ViewOneTimePin
		return s, []Command{ShowConnectDialog{View: common.ViewOneTimePin}}
	}
	// Confirm and complete pages are driven by portal events.
	return s, nil
}

// startTask marks k in flight and returns the command that runs it. A
// guarded task is dropped while another guarded task is running.
func startTask(s State, k TaskKind) (State, []Command) {
	if k.guarded() && s.Busy() {
		return s, notef("%s dropped: a login step is already in progress", k)
	}
	s.inFlight = s.inFlight.with(k)
	return s, []Command{RunTask{Kind: k}}
}

func notef(format string, args ...interface{}) []Command {
	return []Command{Note{Message: fmt.Sprintf(format, args...)}}
}
