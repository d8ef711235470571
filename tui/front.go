// Package tui is a terminal front-end for NC Connect. It offers the same
// surfaces as the desktop tray and dialogs, rendered with Bubble Tea.
package tui

import (
	"context"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
)

// ErrNotTerminal is returned by Run when stdin or stdout is not a
// terminal.
var ErrNotTerminal = errors.New("tui: not a terminal")

// outboxSize bounds surface updates queued for the program.
const outboxSize = 64

// Front owns the Bubble Tea program and the surfaces the orchestrator
// drives. Surface methods never block: updates are queued and forwarded
// to the program in order.
type Front struct {
	sink     common.EventSink
	settings *config.Store
	values   *values
	program  *tea.Program
	outbox   chan tea.Msg
	statuses <-chan common.Status

	Tray     *Tray
	Settings *SettingsDialog
	Connect  *ConnectDialog
	Admin    *AdminDialog
	Session  *SessionDialog
}

// Option configures a Front.
type Option func(*Front)

// WithStatus feeds workflow status snapshots into the status line.
func WithStatus(statuses <-chan common.Status) Option {
	return func(f *Front) { f.statuses = statuses }
}

// WithProgramOptions passes options to tea.NewProgram.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(f *Front) {
		f.program = tea.NewProgram(newModel(f.sink, f.settings, f.values), opts...)
	}
}

// New creates the terminal front-end. User actions are posted to sink.
func New(sink common.EventSink, settings *config.Store, opts ...Option) *Front {
	f := &Front{
		sink:     sink,
		settings: settings,
		values:   &values{},
		outbox:   make(chan tea.Msg, outboxSize),
	}
	f.Tray = &Tray{f: f}
	f.Settings = &SettingsDialog{f: f}
	f.Connect = &ConnectDialog{f: f}
	f.Admin = &AdminDialog{f: f}
	f.Session = &SessionDialog{f: f}

	for _, opt := range opts {
		opt(f)
	}
	if f.program == nil {
		f.program = tea.NewProgram(newModel(sink, settings, f.values), tea.WithAltScreen())
	}
	return f
}

// Run runs the program until Quit is called or ctx is done.
func (f *Front) Run(ctx context.Context) error {
	if err := requireTerminal(os.Stdin, os.Stdout); err != nil {
		return err
	}
	return f.run(ctx)
}

// requireTerminal fails with ErrNotTerminal naming the first file that is
// not a terminal. Keys are read from stdin and the screen drawn on stdout.
func requireTerminal(files ...*os.File) error {
	for _, file := range files {
		if !term.IsTerminal(int(file.Fd())) {
			return errors.Wrap(ErrNotTerminal, file.Name())
		}
	}
	return nil
}

func (f *Front) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go f.forward(ctx)
	go func() {
		<-ctx.Done()
		f.program.Quit()
	}()

	_, err := f.program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "running terminal ui")
	}
	return nil
}

// forward delivers queued updates and status snapshots to the program.
func (f *Front) forward(ctx context.Context) {
	statuses := f.statuses
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.outbox:
			f.program.Send(msg)
		case s, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			f.program.Send(statusMsg(s))
		}
	}
}

// Quit stops the program. Safe from any goroutine.
func (f *Front) Quit() {
	f.program.Quit()
}

func (f *Front) send(msg tea.Msg) {
	select {
	case f.outbox <- msg:
	default:
		common.LogWarn("TUI: dropping update %T, outbox full", msg)
	}
}

// values holds what the user accepted, written by the model and read by
// the dispatcher.
type values struct {
	mu            sync.Mutex
	username      string
	password      string
	realm         string
	pin           string
	adminPassword string
}

func (v *values) get(field *string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return *field
}

func (v *values) set(fn func(*values)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v)
}

// Tray is the status line and key bindings of the main screen.
type Tray struct{ f *Front }

func (t *Tray) ShowMessage(text string) {
	common.LogInfo("Tray: %s", text)
	t.f.send(trayMessageMsg(text))
}

func (t *Tray) SetConnected(connected bool) { t.f.send(connectedMsg(connected)) }
func (t *Tray) EnableSessionInfo()          { t.f.send(sessionInfoMsg{}) }
func (t *Tray) Hide()                       { t.f.send(hideMsg{}) }

// SettingsDialog edits the portal host.
type SettingsDialog struct{ f *Front }

func (d *SettingsDialog) MakeVisible() { d.f.send(showMsg{screen: screenSettings}) }

// ConnectDialog is the sign-in screen.
type ConnectDialog struct{ f *Front }

func (d *ConnectDialog) MakeVisible(view common.DialogView) {
	d.f.send(connectViewMsg{view: view})
}

func (d *ConnectDialog) SetVisible(visible bool) {
	d.f.send(connectVisibleMsg(visible))
}

func (d *ConnectDialog) Username() string   { return d.f.values.get(&d.f.values.username) }
func (d *ConnectDialog) Password() string   { return d.f.values.get(&d.f.values.password) }
func (d *ConnectDialog) Realm() string      { return d.f.values.get(&d.f.values.realm) }
func (d *ConnectDialog) OneTimePin() string { return d.f.values.get(&d.f.values.pin) }

func (d *ConnectDialog) SetRealms(realms []string) {
	d.f.send(realmsMsg(append([]string(nil), realms...)))
}

func (d *ConnectDialog) Prefill(username, password string) {
	d.f.values.set(func(v *values) {
		v.username = username
		v.password = password
	})
	d.f.send(prefillMsg{username: username, password: password})
}

// AdminDialog asks for the local privilege password.
type AdminDialog struct{ f *Front }

func (d *AdminDialog) MakeVisible()     { d.f.send(showMsg{screen: screenAdmin}) }
func (d *AdminDialog) Password() string { return d.f.values.get(&d.f.values.adminPassword) }

// SessionDialog shows the session token.
type SessionDialog struct{ f *Front }

func (d *SessionDialog) MakeVisible()        { d.f.send(showMsg{screen: screenSession}) }
func (d *SessionDialog) SetDSID(dsid string) { d.f.send(dsidMsg(dsid)) }
