package ui

import (
	"context"
	"os"
	"path/filepath"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/pkg/errors"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
)

// App is the GTK front-end: a tray icon plus the workflow dialogs. It has
// no main window; the application is held open while the tray runs.
type App struct {
	app      *adw.Application
	sink     common.EventSink
	settings *config.Store
	version  string
	notifier *Notifier

	Tray     *Tray
	Settings *SettingsDialog
	Connect  *ConnectDialog
	Admin    *AdminDialog
	Session  *SessionDialog
}

// NewApp creates the front-end. Every user action is posted to sink.
func NewApp(sink common.EventSink, settings *config.Store, version string) *App {
	a := &App{
		sink:     sink,
		settings: settings,
		version:  version,
	}
	a.notifier = NewNotifier(common.AppName, func() bool {
		return settings.Snapshot().ShowNotifications
	})

	a.Tray = newTray(sink, a.notifier)
	a.Settings = newSettingsDialog(a)
	a.Connect = newConnectDialog(a)
	a.Admin = newAdminDialog(a)
	a.Session = newSessionDialog(a)

	a.app = adw.NewApplication(common.AppID, gio.ApplicationFlagsNone)
	a.app.ConnectActivate(a.onActivate)
	return a
}

// Run runs the GTK main loop on the calling goroutine until Quit is
// called or ctx is done.
func (a *App) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			a.Quit()
		case <-stop:
		}
	}()

	if code := a.app.Run(os.Args[:1]); code != 0 {
		return errors.Errorf("gtk application exited with status %d", code)
	}
	return nil
}

// Quit stops the main loop. Safe from any goroutine.
func (a *App) Quit() {
	glib.IdleAdd(func() {
		a.app.Quit()
	})
}

// Version returns the version shown in the tray tooltip.
func (a *App) Version() string {
	return a.version
}

func (a *App) onActivate() {
	// Tray-only application: keep running without windows.
	a.app.Hold()

	a.setupAppIcon()
	LoadStyles()

	go a.Tray.Run()
	common.LogInfo("UI: activated")
}

// setupAppIcon adds the bundled icon directories to the icon theme.
func (a *App) setupAppIcon() {
	display := gdk.DisplayGetDefault()
	if display == nil {
		return
	}
	iconTheme := gtk.IconThemeGetForDisplay(display)
	if iconTheme == nil {
		return
	}

	if execPath, err := os.Executable(); err == nil {
		iconTheme.AddSearchPath(filepath.Join(filepath.Dir(execPath), "assets", "icons"))
	}
	if cwd, err := os.Getwd(); err == nil {
		iconTheme.AddSearchPath(filepath.Join(cwd, "assets", "icons"))
	}
	gtk.WindowSetDefaultIconName("ncconnect")
}

// newWindow builds a dialog window with a header bar. onClose runs when
// the user closes the window; the window is hidden, never destroyed.
func (a *App) newWindow(title string, content gtk.Widgetter, onClose func()) *adw.ApplicationWindow {
	win := adw.NewApplicationWindow(&a.app.Application)
	win.SetTitle(title)
	win.SetResizable(false)

	toolbar := adw.NewToolbarView()
	toolbar.AddTopBar(adw.NewHeaderBar())
	toolbar.SetContent(content)
	win.SetContent(toolbar)

	win.ConnectCloseRequest(func() bool {
		win.SetVisible(false)
		if onClose != nil {
			onClose()
		}
		return true
	})
	return win
}

// buttonBar returns a right-aligned row of dialog buttons.
func buttonBar(buttons ...*gtk.Button) *gtk.Box {
	bar := gtk.NewBox(gtk.OrientationHorizontal, 12)
	bar.SetHAlign(gtk.AlignEnd)
	bar.SetMarginTop(16)
	bar.AddCSSClass("dialog-action-area")
	for _, b := range buttons {
		b.AddCSSClass("dialog-button")
		bar.Append(b)
	}
	return bar
}

// contentBox returns the padded vertical container used by every dialog.
func contentBox(spacing int) *gtk.Box {
	box := gtk.NewBox(gtk.OrientationVertical, spacing)
	box.SetMarginTop(common.DialogMargin)
	box.SetMarginBottom(common.DialogMargin)
	box.SetMarginStart(common.DialogMargin)
	box.SetMarginEnd(common.DialogMargin)
	return box
}

// fieldLabel returns a dim caption placed above an entry.
func fieldLabel(text string) *gtk.Label {
	l := gtk.NewLabel(text)
	l.SetXAlign(0)
	l.AddCSSClass("dim-label")
	return l
}
