// Package ui provides the desktop front-end of NC Connect.
//
// There is no main window. A system tray icon offers Connect, Disconnect,
// Session Info, Settings and Quit; everything else happens in four small
// dialogs:
//
//   - SettingsDialog: portal host, password policy and helper paths
//   - ConnectDialog: connecting spinner, login form and one-time PIN
//   - AdminDialog: local password for the privileged helpers
//   - SessionDialog: the active session token
//
// # Threading
//
// The surfaces are driven by the orchestrator's dispatch goroutine, not
// the GTK main thread. Every widget change is scheduled with
// glib.IdleAdd, and values the user entered are copied into
// mutex-guarded fields when a dialog is accepted, so the getters never
// touch a widget.
package ui
