package ui

import (
	"os/exec"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"

	"github.com/yllada/ncconnect/common"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = notifyDest + ".Notify"
)

// urgencyNormal is the "normal" level of the notification urgency hint.
const urgencyNormal byte = 1

// Notifier sends desktop notifications over the session bus, falling back
// to notify-send when the bus is unreachable.
type Notifier struct {
	appName string
	enabled func() bool

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewNotifier creates a notifier. enabled, if set, is consulted before
// every notification.
func NewNotifier(appName string, enabled func() bool) *Notifier {
	return &Notifier{appName: appName, enabled: enabled}
}

// Notify shows a notification with the given title and message.
func (n *Notifier) Notify(title, message string) error {
	if n.enabled != nil && !n.enabled() {
		return nil
	}

	conn, err := n.session()
	if err != nil {
		common.LogDebug("Notifier: session bus unavailable: %v", err)
		return n.notifySend(title, message)
	}

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyNormal),
	}
	call := conn.Object(notifyDest, notifyPath).Call(notifyMethod, 0,
		n.appName, uint32(0), "network-vpn", title, message,
		[]string{}, hints, int32(-1))
	if call.Err != nil {
		return errors.Wrap(call.Err, "sending notification")
	}
	return nil
}

func (n *Notifier) session() (*dbus.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && n.conn.Connected() {
		return n.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	n.conn = conn
	return conn, nil
}

func (n *Notifier) notifySend(title, message string) error {
	cmd := exec.Command("notify-send",
		"--app-name="+n.appName,
		"--icon=network-vpn",
		"--urgency=normal",
		title,
		message,
	)
	return errors.Wrap(cmd.Run(), "notify-send")
}

// Close releases the session bus connection.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
