package ui

import (
	"sync"

	"fyne.io/systray"

	"github.com/yllada/ncconnect/common"
)

// Pre-generated icons.
var (
	iconConnected    = TrayIcon(true)
	iconDisconnected = TrayIcon(false)
)

// Tray is the system tray icon and menu. Menu clicks are posted as events;
// the methods below are called by the dispatcher.
type Tray struct {
	sink     common.EventSink
	notifier common.Notifier

	mu          sync.Mutex
	ready       bool
	connected   bool
	sessionInfo bool
	message     string

	statusItem     *systray.MenuItem
	connectItem    *systray.MenuItem
	disconnectItem *systray.MenuItem
	sessionItem    *systray.MenuItem
}

func newTray(sink common.EventSink, notifier common.Notifier) *Tray {
	return &Tray{sink: sink, notifier: notifier}
}

// Run starts the tray. It blocks until Hide is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle(common.AppName)

	t.statusItem = systray.AddMenuItem(statusTitle(false), "Tunnel status")
	t.statusItem.Disable()
	systray.AddSeparator()

	t.connectItem = systray.AddMenuItem("Connect", "Sign in to the VPN portal")
	t.disconnectItem = systray.AddMenuItem("Disconnect", "Close the VPN session")
	t.sessionItem = systray.AddMenuItem("Session Info", "Show the active session")
	t.sessionItem.Disable()
	systray.AddSeparator()

	settingsItem := systray.AddMenuItem("Settings", "Edit the portal settings")
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)

	go t.forward(t.connectItem, common.EventTrayConnect)
	go t.forward(t.disconnectItem, common.EventTrayDisconnect)
	go t.forward(t.sessionItem, common.EventTraySession)
	go t.forward(settingsItem, common.EventTraySettings)
	go t.forward(quitItem, common.EventExit)

	t.mu.Lock()
	t.ready = true
	t.apply()
	t.mu.Unlock()
	common.LogInfo("Tray: ready")
}

func (t *Tray) onExit() {
	common.LogInfo("Tray: closed")
}

// forward posts ev for every click on item.
func (t *Tray) forward(item *systray.MenuItem, ev common.Event) {
	for range item.ClickedCh {
		t.sink.Post(ev)
	}
}

// apply pushes the recorded state to the menu. Callers must hold t.mu.
func (t *Tray) apply() {
	if !t.ready {
		return
	}

	if t.connected {
		systray.SetIcon(iconConnected)
	} else {
		systray.SetIcon(iconDisconnected)
	}
	systray.SetTooltip(tooltip(t.connected, t.message))
	t.statusItem.SetTitle(statusTitle(t.connected))

	if t.sessionInfo {
		t.sessionItem.Enable()
	} else {
		t.sessionItem.Disable()
	}
}

// ShowMessage shows text in the tooltip and as a desktop notification.
func (t *Tray) ShowMessage(text string) {
	common.LogInfo("Tray: %s", text)

	t.mu.Lock()
	t.message = text
	t.apply()
	t.mu.Unlock()

	if t.notifier == nil {
		return
	}
	// D-Bus calls may block; never stall the caller.
	go func() {
		if err := t.notifier.Notify(common.AppName, text); err != nil {
			common.LogWarn("Tray: notification failed: %v", err)
		}
	}()
}

// SetConnected switches the icon between the tunnel states.
func (t *Tray) SetConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = connected
	if !connected {
		t.sessionInfo = false
	}
	t.message = ""
	t.apply()
}

// EnableSessionInfo enables the Session Info menu item.
func (t *Tray) EnableSessionInfo() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionInfo = true
	t.apply()
}

// Hide removes the tray icon.
func (t *Tray) Hide() {
	t.mu.Lock()
	ready := t.ready
	t.ready = false
	t.mu.Unlock()
	if ready {
		systray.Quit()
	}
}

func statusTitle(connected bool) string {
	if connected {
		return "●  Connected"
	}
	return "○  Not Connected"
}

func tooltip(connected bool, message string) string {
	text := common.AppName + " - Disconnected"
	if connected {
		text = common.AppName + " - Connected"
	}
	if message != "" {
		text += "\n" + message
	}
	return text
}
