package ui

import (
	"sync"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/yllada/ncconnect/common"
)

// SessionDialog shows the portal host and the active session token.
type SessionDialog struct {
	owner *App

	mu   sync.Mutex
	dsid string

	// Main thread only.
	window    *adw.ApplicationWindow
	hostLabel *gtk.Label
	dsidLabel *gtk.Label
}

func newSessionDialog(owner *App) *SessionDialog {
	return &SessionDialog{owner: owner}
}

// SetDSID records the session token shown by the dialog.
func (d *SessionDialog) SetDSID(dsid string) {
	d.mu.Lock()
	d.dsid = dsid
	d.mu.Unlock()

	glib.IdleAdd(func() {
		if d.dsidLabel != nil {
			d.dsidLabel.SetText(dsidText(dsid))
		}
	})
}

// MakeVisible shows the dialog.
func (d *SessionDialog) MakeVisible() {
	d.mu.Lock()
	dsid := d.dsid
	d.mu.Unlock()

	glib.IdleAdd(func() {
		d.ensure()
		d.hostLabel.SetText(d.owner.settings.Host())
		d.dsidLabel.SetText(dsidText(dsid))
		d.window.Present()
	})
}

func (d *SessionDialog) ensure() {
	if d.window != nil {
		return
	}

	box := contentBox(8)

	box.Append(fieldLabel("Portal"))
	d.hostLabel = gtk.NewLabel("")
	d.hostLabel.SetXAlign(0)
	d.hostLabel.SetSelectable(true)
	d.hostLabel.SetMarginBottom(12)
	box.Append(d.hostLabel)

	box.Append(fieldLabel("Session (DSID)"))
	d.dsidLabel = gtk.NewLabel("")
	d.dsidLabel.SetXAlign(0)
	d.dsidLabel.SetSelectable(true)
	d.dsidLabel.SetWrap(true)
	d.dsidLabel.AddCSSClass("session-token")
	box.Append(d.dsidLabel)

	closeBtn := gtk.NewButtonWithLabel("Close")
	box.Append(buttonBar(closeBtn))

	d.window = d.owner.newWindow("Session Info", box, func() {
		d.owner.sink.Post(common.EventSessionClose)
	})
	d.window.SetDefaultSize(420, -1)

	closeBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
		d.owner.sink.Post(common.EventSessionClose)
	})
}

func dsidText(dsid string) string {
	if dsid == "" {
		return "No active session"
	}
	return dsid
}
