// Package common provides shared constants, types, and utilities
// used across NC Connect.
package common

import "time"

// Event is a tagged notification posted into the orchestrator mailbox.
// Events carry no payload; values are read from the emitting
// collaborator when the event is handled.
type Event int

const (
	// Tray.
	EventExit Event = iota
	EventTraySettings
	EventTrayConnect
	EventTrayDisconnect
	EventTraySession

	// Settings dialog.
	EventHostSettingsUpdated

	// Connect dialog.
	EventConnectOkay
	EventConnectCanceled
	EventConnectOneTimePinOkay
	EventConnectOneTimePinCanceled

	// Session dialog.
	EventSessionClose

	// Web login client.
	EventCommunicatorTimeout
	EventCommunicatorInvalidURL
	EventCommunicatorLogin
	EventCommunicatorOneTimePin
	EventCommunicatorConfirm
	EventCommunicatorLoginSuccessful
	EventCommunicatorInvalidUsernamePassword

	// Admin dialog.
	EventAdminOkay
	EventAdminCanceled

	// UI helper supervisor.
	EventHelperStarted
	EventHelperStopped
)

var eventNames = [...]string{
	EventExit:                                "exit",
	EventTraySettings:                        "tray.settings",
	EventTrayConnect:                         "tray.connect",
	EventTrayDisconnect:                      "tray.disconnect",
	EventTraySession:                         "tray.session",
	EventHostSettingsUpdated:                 "settings.updated",
	EventConnectOkay:                         "connect.okay",
	EventConnectCanceled:                     "connect.canceled",
	EventConnectOneTimePinOkay:               "connect.otp.okay",
	EventConnectOneTimePinCanceled:           "connect.otp.canceled",
	EventSessionClose:                        "session.close",
	EventCommunicatorTimeout:                 "portal.timeout",
	EventCommunicatorInvalidURL:              "portal.invalid_url",
	EventCommunicatorLogin:                   "portal.login",
	EventCommunicatorOneTimePin:              "portal.otp",
	EventCommunicatorConfirm:                 "portal.confirm",
	EventCommunicatorLoginSuccessful:         "portal.login_successful",
	EventCommunicatorInvalidUsernamePassword: "portal.invalid_credentials",
	EventAdminOkay:                           "admin.okay",
	EventAdminCanceled:                       "admin.canceled",
	EventHelperStarted:                       "helper.started",
	EventHelperStopped:                       "helper.stopped",
}

// Events returns every event tag in declaration order.
func Events() []Event {
	all := make([]Event, len(eventNames))
	for i := range eventNames {
		all[i] = Event(i)
	}
	return all
}

// String returns the dotted event name.
func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// EventSink accepts events from any goroutine.
type EventSink interface {
	Post(Event)
}

// PageState is the step the remote web login session is on.
type PageState int

const (
	PageNone PageState = iota
	PageLogin
	PageOneTimePin
	PageConfirmContinue
	PageLoginComplete
)

// String returns a human-readable page state.
func (p PageState) String() string {
	switch p {
	case PageNone:
		return "None"
	case PageLogin:
		return "Login"
	case PageOneTimePin:
		return "One-Time PIN"
	case PageConfirmContinue:
		return "Confirm"
	case PageLoginComplete:
		return "Logged in"
	default:
		return "Unknown"
	}
}

// DialogView selects which part of the connect dialog is shown.
type DialogView int

const (
	ViewHidden DialogView = iota
	ViewConnecting
	ViewLogin
	ViewOneTimePin
)

// String returns a human-readable view name.
func (v DialogView) String() string {
	switch v {
	case ViewHidden:
		return "Hidden"
	case ViewConnecting:
		return "Connecting"
	case ViewLogin:
		return "Login"
	case ViewOneTimePin:
		return "One-Time PIN"
	default:
		return "Unknown"
	}
}

// Status is the observable summary of the workflow, published after
// every change.
type Status struct {
	Page          PageState  `json:"page"`
	View          DialogView `json:"view"`
	Connected     bool       `json:"connected"`
	SessionActive bool       `json:"session_active"`
	Busy          bool       `json:"busy"`
	At            time.Time  `json:"at"`
}

// SameAs reports whether two statuses differ only in their timestamp.
func (s Status) SameAs(o Status) bool {
	return s.Page == o.Page && s.View == o.View && s.Connected == o.Connected &&
		s.SessionActive == o.SessionActive && s.Busy == o.Busy
}
