package ui

import (
	"strings"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
)

// SettingsDialog edits the portal host and helper settings. Accepting it
// updates the settings store in memory and posts EventHostSettingsUpdated;
// persisting is left to the dispatcher.
type SettingsDialog struct {
	owner *App

	// Main thread only.
	window         *adw.ApplicationWindow
	hostEntry      *gtk.Entry
	rememberSwitch *gtk.Switch
	notifySwitch   *gtk.Switch
	serviceEntry   *gtk.Entry
	uiEntry        *gtk.Entry
	certEntry      *gtk.Entry
}

func newSettingsDialog(owner *App) *SettingsDialog {
	return &SettingsDialog{owner: owner}
}

// MakeVisible shows the dialog with the current settings.
func (d *SettingsDialog) MakeVisible() {
	glib.IdleAdd(func() {
		d.ensure()
		d.load(d.owner.settings.Snapshot())
		d.window.Present()
		d.hostEntry.GrabFocus()
	})
}

func (d *SettingsDialog) ensure() {
	if d.window != nil {
		return
	}

	mainBox := contentBox(20)

	portal := createSection("Portal", "network-vpn-symbolic")
	portalCard := createCard()
	d.hostEntry = gtk.NewEntry()
	d.hostEntry.SetPlaceholderText("vpn.example.com")
	d.hostEntry.SetHExpand(true)
	portalCard.Append(createEntryRow("Host", d.hostEntry))
	portalCard.Append(createSeparator())
	d.rememberSwitch = gtk.NewSwitch()
	d.rememberSwitch.SetVAlign(gtk.AlignCenter)
	portalCard.Append(createSettingRow(
		"Remember Password",
		"Keep the portal password in the system keyring",
		d.rememberSwitch,
	))
	portal.Append(portalCard)
	mainBox.Append(portal)

	notify := createSection("Notifications", "preferences-system-notifications-symbolic")
	notifyCard := createCard()
	d.notifySwitch = gtk.NewSwitch()
	d.notifySwitch.SetVAlign(gtk.AlignCenter)
	notifyCard.Append(createSettingRow(
		"Desktop Alerts",
		"Show tray messages as desktop notifications",
		d.notifySwitch,
	))
	notify.Append(notifyCard)
	mainBox.Append(notify)

	helpers := createSection("Network Connect", "system-run-symbolic")
	helpersCard := createCard()
	d.serviceEntry = gtk.NewEntry()
	d.serviceEntry.SetHExpand(true)
	helpersCard.Append(createEntryRow("ncsvc", d.serviceEntry))
	helpersCard.Append(createSeparator())
	d.uiEntry = gtk.NewEntry()
	d.uiEntry.SetHExpand(true)
	helpersCard.Append(createEntryRow("ncui", d.uiEntry))
	helpersCard.Append(createSeparator())
	d.certEntry = gtk.NewEntry()
	d.certEntry.SetPlaceholderText("Optional")
	d.certEntry.SetHExpand(true)
	helpersCard.Append(createEntryRow("Certificate", d.certEntry))
	helpers.Append(helpersCard)
	mainBox.Append(helpers)

	cancelBtn := gtk.NewButtonWithLabel("Cancel")
	saveBtn := gtk.NewButtonWithLabel("Save")
	saveBtn.AddCSSClass("suggested-action")
	mainBox.Append(buttonBar(cancelBtn, saveBtn))

	d.window = d.owner.newWindow("Settings", mainBox, nil)
	d.window.SetDefaultSize(480, -1)

	cancelBtn.ConnectClicked(func() {
		d.window.SetVisible(false)
	})
	saveBtn.ConnectClicked(d.save)
	d.hostEntry.ConnectActivate(d.save)
}

func (d *SettingsDialog) load(cfg config.Config) {
	d.hostEntry.SetText(cfg.Host)
	d.rememberSwitch.SetActive(cfg.RememberPassword)
	d.notifySwitch.SetActive(cfg.ShowNotifications)
	d.serviceEntry.SetText(cfg.ServiceBinary)
	d.uiEntry.SetText(cfg.UIBinary)
	d.certEntry.SetText(cfg.CertFile)
}

func (d *SettingsDialog) save() {
	host := strings.TrimSpace(d.hostEntry.Text())
	if host == "" {
		d.hostEntry.AddCSSClass("error")
		d.hostEntry.GrabFocus()
		return
	}
	d.hostEntry.RemoveCSSClass("error")

	remember := d.rememberSwitch.Active()
	notify := d.notifySwitch.Active()
	service := strings.TrimSpace(d.serviceEntry.Text())
	ui := strings.TrimSpace(d.uiEntry.Text())
	cert := strings.TrimSpace(d.certEntry.Text())

	d.owner.settings.Update(func(c *config.Config) {
		c.Host = host
		c.RememberPassword = remember
		c.ShowNotifications = notify
		if service != "" {
			c.ServiceBinary = service
		}
		if ui != "" {
			c.UIBinary = ui
		}
		c.CertFile = cert
	})

	d.window.SetVisible(false)
	d.owner.sink.Post(common.EventHostSettingsUpdated)
}

// createSection creates a section with icon and title.
func createSection(title, iconName string) *gtk.Box {
	section := gtk.NewBox(gtk.OrientationVertical, 8)

	header := gtk.NewBox(gtk.OrientationHorizontal, 8)
	icon := gtk.NewImage()
	icon.SetFromIconName(iconName)
	icon.SetPixelSize(18)
	icon.AddCSSClass("dim-label")
	header.Append(icon)

	label := gtk.NewLabel(title)
	label.SetXAlign(0)
	label.AddCSSClass("heading")
	label.AddCSSClass("dim-label")
	header.Append(label)

	section.Append(header)
	return section
}

// createCard creates a styled card container for settings.
func createCard() *gtk.Box {
	card := gtk.NewBox(gtk.OrientationVertical, 0)
	card.AddCSSClass("card")
	card.AddCSSClass("preferences-card")
	return card
}

// createSettingRow creates a row with title, description, and widget.
func createSettingRow(title, description string, widget gtk.Widgetter) *gtk.Box {
	row := settingRow()

	textBox := gtk.NewBox(gtk.OrientationVertical, 4)
	textBox.SetHExpand(true)

	titleLabel := gtk.NewLabel(title)
	titleLabel.SetXAlign(0)
	titleLabel.AddCSSClass("settings-title")
	textBox.Append(titleLabel)

	descLabel := gtk.NewLabel(description)
	descLabel.SetXAlign(0)
	descLabel.AddCSSClass("dim-label")
	descLabel.AddCSSClass("caption")
	descLabel.SetWrap(true)
	textBox.Append(descLabel)

	row.Append(textBox)
	row.Append(widget)
	return row
}

// createEntryRow creates a row with a fixed-width title and an entry.
func createEntryRow(title string, entry *gtk.Entry) *gtk.Box {
	row := settingRow()

	label := gtk.NewLabel(title)
	label.SetXAlign(0)
	label.SetWidthChars(12)
	label.AddCSSClass("settings-title")
	row.Append(label)
	row.Append(entry)
	return row
}

func settingRow() *gtk.Box {
	row := gtk.NewBox(gtk.OrientationHorizontal, 12)
	row.SetMarginTop(14)
	row.SetMarginBottom(14)
	row.SetMarginStart(16)
	row.SetMarginEnd(16)
	return row
}

// createSeparator creates a styled separator for cards.
func createSeparator() *gtk.Separator {
	sep := gtk.NewSeparator(gtk.OrientationHorizontal)
	sep.SetMarginStart(16)
	sep.SetMarginEnd(16)
	return sep
}
