package ui

import (
	"strings"
	"sync"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/yllada/ncconnect/common"
)

// Stack page names of the connect dialog.
const (
	pageConnecting = "connecting"
	pageLogin      = "login"
	pageOneTimePin = "otp"
)

// ConnectDialog walks the user through the portal sign-in. Its values are
// captured on the main thread when the user accepts a view and read by the
// dispatcher through the getters.
type ConnectDialog struct {
	owner *App

	mu       sync.Mutex
	view     common.DialogView
	username string
	password string
	realm    string
	pin      string
	realms   []string

	// Main thread only.
	window        *adw.ApplicationWindow
	stack         *gtk.Stack
	spinner       *gtk.Spinner
	usernameEntry *gtk.Entry
	passwordEntry *gtk.PasswordEntry
	realmRow      *gtk.Box
	realmDropDown *gtk.DropDown
	pinEntry      *gtk.Entry
}

func newConnectDialog(owner *App) *ConnectDialog {
	return &ConnectDialog{owner: owner}
}

// MakeVisible shows the dialog on view.
func (d *ConnectDialog) MakeVisible(view common.DialogView) {
	d.mu.Lock()
	d.view = view
	d.mu.Unlock()

	glib.IdleAdd(func() {
		d.ensure()
		d.show(view)
	})
}

// SetVisible shows or hides the dialog on its current view.
func (d *ConnectDialog) SetVisible(visible bool) {
	d.mu.Lock()
	if !visible {
		d.view = common.ViewHidden
	}
	view := d.view
	d.mu.Unlock()

	glib.IdleAdd(func() {
		if !visible {
			if d.window != nil {
				d.spinner.Stop()
				d.window.SetVisible(false)
			}
			return
		}
		d.ensure()
		d.show(view)
	})
}

// Username returns the username of the last accepted login view.
func (d *ConnectDialog) Username() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.username
}

// Password returns the password of the last accepted login view.
func (d *ConnectDialog) Password() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.password
}

// Realm returns the selected realm, empty when the portal offers none.
func (d *ConnectDialog) Realm() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.realm
}

// OneTimePin returns the PIN of the last accepted one-time PIN view.
func (d *ConnectDialog) OneTimePin() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pin
}

// SetRealms replaces the realm choices.
func (d *ConnectDialog) SetRealms(realms []string) {
	d.mu.Lock()
	d.realms = append([]string(nil), realms...)
	if common.IndexOf(d.realms, d.realm) < 0 {
		d.realm = ""
		if len(d.realms) > 0 {
			d.realm = d.realms[0]
		}
	}
	realms, selected := d.realms, d.realm
	d.mu.Unlock()

	glib.IdleAdd(func() {
		d.ensure()
		d.fillRealms(realms, selected)
	})
}

// Prefill seeds the login view with remembered values.
func (d *ConnectDialog) Prefill(username, password string) {
	d.mu.Lock()
	d.username = username
	d.password = password
	d.mu.Unlock()

	glib.IdleAdd(func() {
		d.ensure()
		d.usernameEntry.SetText(username)
		d.passwordEntry.SetText(password)
	})
}

func (d *ConnectDialog) ensure() {
	if d.window != nil {
		return
	}

	d.stack = gtk.NewStack()
	d.stack.SetTransitionType(gtk.StackTransitionTypeCrossfade)
	d.stack.AddNamed(d.buildConnecting(), pageConnecting)
	d.stack.AddNamed(d.buildLogin(), pageLogin)
	d.stack.AddNamed(d.buildOneTimePin(), pageOneTimePin)

	d.window = d.owner.newWindow("Connect - "+common.AppName, d.stack, d.closed)
	d.window.SetDefaultSize(400, -1)
}

func (d *ConnectDialog) buildConnecting() gtk.Widgetter {
	box := contentBox(16)

	d.spinner = gtk.NewSpinner()
	d.spinner.SetSizeRequest(32, 32)
	box.Append(d.spinner)

	label := gtk.NewLabel("Contacting the VPN portal…")
	label.AddCSSClass("dim-label")
	box.Append(label)

	cancelBtn := gtk.NewButtonWithLabel("Cancel")
	cancelBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
		d.owner.sink.Post(common.EventConnectCanceled)
	})
	box.Append(buttonBar(cancelBtn))
	return box
}

func (d *ConnectDialog) buildLogin() gtk.Widgetter {
	box := contentBox(8)

	header := gtk.NewBox(gtk.OrientationHorizontal, 12)
	icon := gtk.NewImage()
	icon.SetFromIconName("network-vpn-symbolic")
	icon.SetPixelSize(28)
	header.Append(icon)
	title := gtk.NewLabel("Sign in")
	title.AddCSSClass("title-2")
	header.Append(title)
	box.Append(header)

	sep := gtk.NewSeparator(gtk.OrientationHorizontal)
	sep.SetMarginTop(12)
	sep.SetMarginBottom(12)
	box.Append(sep)

	box.Append(fieldLabel("Username"))
	d.usernameEntry = gtk.NewEntry()
	d.usernameEntry.SetPlaceholderText("username")
	d.usernameEntry.SetMarginBottom(12)
	box.Append(d.usernameEntry)

	box.Append(fieldLabel("Password"))
	d.passwordEntry = gtk.NewPasswordEntry()
	d.passwordEntry.SetShowPeekIcon(true)
	d.passwordEntry.SetMarginBottom(12)
	box.Append(d.passwordEntry)

	d.realmRow = gtk.NewBox(gtk.OrientationVertical, 8)
	d.realmRow.Append(fieldLabel("Realm"))
	d.realmDropDown = gtk.NewDropDown(gtk.NewStringList(nil), nil)
	d.realmRow.Append(d.realmDropDown)
	d.realmRow.SetVisible(false)
	box.Append(d.realmRow)

	cancelBtn := gtk.NewButtonWithLabel("Cancel")
	cancelBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
		d.owner.sink.Post(common.EventConnectCanceled)
	})
	okBtn := gtk.NewButtonWithLabel("Sign In")
	okBtn.AddCSSClass("suggested-action")
	okBtn.ConnectClicked(d.acceptLogin)
	d.passwordEntry.ConnectActivate(d.acceptLogin)
	box.Append(buttonBar(cancelBtn, okBtn))
	return box
}

func (d *ConnectDialog) buildOneTimePin() gtk.Widgetter {
	box := contentBox(16)

	header := gtk.NewBox(gtk.OrientationHorizontal, 12)
	header.SetHAlign(gtk.AlignCenter)
	icon := gtk.NewImage()
	icon.SetFromIconName("security-high-symbolic")
	icon.SetPixelSize(32)
	header.Append(icon)
	title := gtk.NewLabel("One-Time PIN")
	title.AddCSSClass("title-3")
	header.Append(title)
	box.Append(header)

	info := gtk.NewLabel("Enter the code from your token")
	info.AddCSSClass("dim-label")
	box.Append(info)

	d.pinEntry = gtk.NewEntry()
	d.pinEntry.SetPlaceholderText("000000")
	d.pinEntry.SetHAlign(gtk.AlignCenter)
	d.pinEntry.SetWidthChars(10)
	d.pinEntry.AddCSSClass("otp-entry")
	box.Append(d.pinEntry)

	cancelBtn := gtk.NewButtonWithLabel("Cancel")
	cancelBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
		d.owner.sink.Post(common.EventConnectOneTimePinCanceled)
	})
	okBtn := gtk.NewButtonWithLabel("Continue")
	okBtn.AddCSSClass("suggested-action")
	okBtn.ConnectClicked(d.acceptOneTimePin)
	d.pinEntry.ConnectActivate(d.acceptOneTimePin)
	box.Append(buttonBar(cancelBtn, okBtn))
	return box
}

func (d *ConnectDialog) show(view common.DialogView) {
	page := pageFor(view)
	if page == "" {
		d.window.SetVisible(false)
		return
	}

	if view == common.ViewConnecting {
		d.spinner.Start()
	} else {
		d.spinner.Stop()
	}
	if view == common.ViewOneTimePin {
		d.pinEntry.SetText("")
	}
	d.stack.SetVisibleChildName(page)
	d.window.Present()

	switch {
	case view == common.ViewOneTimePin:
		d.pinEntry.GrabFocus()
	case view == common.ViewLogin && d.usernameEntry.Text() != "":
		d.passwordEntry.GrabFocus()
	case view == common.ViewLogin:
		d.usernameEntry.GrabFocus()
	}
}

func (d *ConnectDialog) fillRealms(realms []string, selected string) {
	d.realmDropDown.SetModel(gtk.NewStringList(realms))
	if i := common.IndexOf(realms, selected); i >= 0 {
		d.realmDropDown.SetSelected(uint(i))
	}
	d.realmRow.SetVisible(len(realms) > 0)
}

func (d *ConnectDialog) acceptLogin() {
	username := strings.TrimSpace(d.usernameEntry.Text())
	if username == "" {
		d.usernameEntry.GrabFocus()
		return
	}

	d.mu.Lock()
	d.username = username
	d.password = d.passwordEntry.Text()
	d.realm = realmAt(d.realms, d.realmDropDown.Selected())
	d.mu.Unlock()

	d.owner.sink.Post(common.EventConnectOkay)
}

func (d *ConnectDialog) acceptOneTimePin() {
	pin := strings.TrimSpace(d.pinEntry.Text())
	if pin == "" {
		d.pinEntry.GrabFocus()
		return
	}

	d.mu.Lock()
	d.pin = pin
	d.mu.Unlock()

	d.owner.sink.Post(common.EventConnectOneTimePinOkay)
}

// closed posts the cancel event of the view the user closed.
func (d *ConnectDialog) closed() {
	d.spinner.Stop()

	d.mu.Lock()
	view := d.view
	d.view = common.ViewHidden
	d.mu.Unlock()

	if ev, ok := cancelEventFor(view); ok {
		d.owner.sink.Post(ev)
	}
}

func pageFor(view common.DialogView) string {
	switch view {
	case common.ViewConnecting:
		return pageConnecting
	case common.ViewLogin:
		return pageLogin
	case common.ViewOneTimePin:
		return pageOneTimePin
	default:
		return ""
	}
}

func cancelEventFor(view common.DialogView) (common.Event, bool) {
	switch view {
	case common.ViewConnecting, common.ViewLogin:
		return common.EventConnectCanceled, true
	case common.ViewOneTimePin:
		return common.EventConnectOneTimePinCanceled, true
	default:
		return 0, false
	}
}

// realmAt returns the realm at a drop-down position, or "" when the
// position is out of range (including GTK_INVALID_LIST_POSITION).
func realmAt(realms []string, pos uint) string {
	if pos >= uint(len(realms)) {
		return ""
	}
	return realms[pos]
}
