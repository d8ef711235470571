package ui

import (
	"sync"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/yllada/ncconnect/common"
)

// AdminDialog asks for the local password used to start the helpers with
// elevated privileges.
type AdminDialog struct {
	owner *App

	mu       sync.Mutex
	password string

	// Main thread only.
	window        *adw.ApplicationWindow
	passwordEntry *gtk.PasswordEntry
}

func newAdminDialog(owner *App) *AdminDialog {
	return &AdminDialog{owner: owner}
}

// MakeVisible shows the dialog with an empty password field.
func (d *AdminDialog) MakeVisible() {
	glib.IdleAdd(func() {
		d.ensure()
		d.passwordEntry.SetText("")
		d.window.Present()
		d.passwordEntry.GrabFocus()
	})
}

// Password returns the password the user accepted.
func (d *AdminDialog) Password() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.password
}

func (d *AdminDialog) ensure() {
	if d.window != nil {
		return
	}

	box := contentBox(8)

	header := gtk.NewBox(gtk.OrientationHorizontal, 12)
	icon := gtk.NewImage()
	icon.SetFromIconName("dialog-password-symbolic")
	icon.SetPixelSize(28)
	header.Append(icon)
	title := gtk.NewLabel("Administrator Password")
	title.AddCSSClass("title-3")
	header.Append(title)
	box.Append(header)

	info := gtk.NewLabel("Network Connect needs administrator rights to create the tunnel.")
	info.SetWrap(true)
	info.SetXAlign(0)
	info.AddCSSClass("dim-label")
	info.SetMarginBottom(12)
	box.Append(info)

	box.Append(fieldLabel("Password"))
	d.passwordEntry = gtk.NewPasswordEntry()
	d.passwordEntry.SetShowPeekIcon(true)
	box.Append(d.passwordEntry)

	cancelBtn := gtk.NewButtonWithLabel("Cancel")
	okBtn := gtk.NewButtonWithLabel("Start")
	okBtn.AddCSSClass("suggested-action")
	box.Append(buttonBar(cancelBtn, okBtn))

	d.window = d.owner.newWindow("Authentication Required", box, func() {
		d.owner.sink.Post(common.EventAdminCanceled)
	})
	d.window.SetDefaultSize(400, -1)

	cancelBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
		d.owner.sink.Post(common.EventAdminCanceled)
	})
	okBtn.ConnectClicked(d.accept)
	d.passwordEntry.ConnectActivate(d.accept)
}

func (d *AdminDialog) accept() {
	d.mu.Lock()
	d.password = d.passwordEntry.Text()
	d.mu.Unlock()

	d.passwordEntry.SetText("")
	d.window.SetVisible(false)
	d.owner.sink.Post(common.EventAdminOkay)
}
