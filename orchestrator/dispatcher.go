package orchestrator

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/yllada/ncconnect/common"
)

func errMissing(what string) error {
	return errors.Errorf("orchestrator: missing %s", what)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithExitFunc replaces the final process termination.
func WithExitFunc(fn func()) Option {
	return func(d *Dispatcher) { d.exit = fn }
}

// WithAfterFunc replaces time.AfterFunc for the exit timer.
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(d *Dispatcher) { d.afterFunc = fn }
}

// WithTaskTimeout bounds every background task.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.taskTimeout = timeout }
}

// Dispatcher is the single consumer of the mailbox. It owns the workflow
// State and is the only code that calls the collaborators in Deps.
type Dispatcher struct {
	mailbox *Mailbox
	deps    Deps
	runner  *Runner

	exit        func()
	afterFunc   func(time.Duration, func())
	taskTimeout time.Duration

	state      State
	lastStatus common.Status
	published  bool
}

// New creates a dispatcher reading from mb. The collaborators in deps
// should already hold mb as their event sink.
func New(mb *Mailbox, deps Deps, opts ...Option) (*Dispatcher, error) {
	if mb == nil {
		return nil, errMissing("mailbox")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		mailbox:     mb,
		deps:        deps,
		exit:        defaultExit,
		afterFunc:   func(after time.Duration, fn func()) { time.AfterFunc(after, fn) },
		taskTimeout: common.PortalTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.runner = NewRunner(d.taskTimeout, mb.complete)
	return d, nil
}

func defaultExit() {
	common.LogInfo("Exiting")
	common.CloseLogger()
	os.Exit(0)
}

// Run processes mailbox items one at a time until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	common.LogInfo("Dispatcher started")
	defer func() {
		d.mailbox.Close()
		d.runner.Stop()
		common.LogInfo("Dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case it := <-d.mailbox.ch:
			d.handle(it)
		}
	}
}

// State returns the workflow state. It must only be called from the
// dispatch goroutine or after Run has returned.
func (d *Dispatcher) State() State {
	return d.state
}

func (d *Dispatcher) handle(it item) {
	defer func() {
		if p := recover(); p != nil {
			common.LogError("Dispatcher: recovered while handling input: %v", p)
		}
	}()

	var cmds []Command
	if it.result != nil {
		r := *it.result
		common.LogDebug("Task %s (%s) finished", r.Kind, r.ID)
		d.state, cmds = ReduceResult(d.state, r)
	} else {
		page := d.deps.Client.CurrentPage()
		common.LogDebug("Event %s (page %s, view %s)", it.event, page, d.state.View)
		d.state, cmds = Reduce(d.state, page, it.event)
	}

	for _, cmd := range cmds {
		d.execute(cmd)
	}
	d.publishStatus()
}

func (d *Dispatcher) publishStatus() {
	if d.deps.Status == nil {
		return
	}
	status := common.Status{
		Page:          d.deps.Client.CurrentPage(),
		View:          d.state.View,
		Connected:     d.state.Connected,
		SessionActive: d.state.SessionActive,
		Busy:          d.state.Busy(),
		At:            time.Now(),
	}
	if d.published && status.SameAs(d.lastStatus) {
		return
	}
	if err := d.deps.Status.Publish(status); err != nil {
		common.LogWarn("Dispatcher: could not publish status: %v", err)
		return
	}
	d.lastStatus = status
	d.published = true
}

// execute performs one command. A failing or panicking collaborator is
// logged and never stops the dispatcher.
func (d *Dispatcher) execute(cmd Command) {
	defer func() {
		if p := recover(); p != nil {
			common.LogError("Dispatcher: %s panicked: %v", cmd, p)
		}
	}()
	common.LogDebug("Dispatcher: %s", cmd)

	switch c := cmd.(type) {
	case ShowSettingsDialog:
		d.deps.SettingsDialog.MakeVisible()
	case ShowSessionDialog:
		d.deps.SessionDialog.MakeVisible()
	case ShowAdminDialog:
		d.deps.AdminDialog.MakeVisible()
	case HideConnectDialog:
		d.deps.ConnectDialog.SetVisible(false)
	case ShowConnectDialog:
		if c.View == common.ViewLogin {
			d.prefillLogin()
		}
		d.deps.ConnectDialog.MakeVisible(c.View)
	case SetRealms:
		d.deps.ConnectDialog.SetRealms(c.Realms)
	case TrayMessage:
		d.deps.Tray.ShowMessage(c.Text)
	case TraySetConnected:
		d.deps.Tray.SetConnected(c.Connected)
	case TrayEnableSessionInfo:
		d.deps.Tray.EnableSessionInfo()
	case TrayHide:
		d.deps.Tray.Hide()
	case SaveSettings:
		if err := d.deps.Settings.Save(); err != nil {
			common.LogError("Settings: %v", err)
			d.deps.Tray.ShowMessage(common.MessageSettingsNotSaved)
		}
	case ClientDisconnect:
		// Drop the session first so canceled round trips are seen as stale.
		if err := d.deps.Client.Disconnect(); err != nil {
			common.LogWarn("Portal: disconnect: %v", err)
		}
		d.runner.CancelAll()
	case PropagateSession:
		d.propagateSession()
	case StartHelpers:
		d.startHelpers()
	case TerminateHelper:
		d.terminateHelper(c)
	case RunTask:
		d.runTask(c.Kind)
	case ScheduleExit:
		d.afterFunc(c.After, d.exit)
	case Note:
		common.LogInfo("%s", c.Message)
	default:
		common.LogWarn("Dispatcher: unknown command %T", cmd)
	}
}

func (d *Dispatcher) prefillLogin() {
	username := d.deps.Settings.Username()
	password := ""
	if d.deps.Settings.RememberPassword() && username != "" && d.deps.Credentials != nil {
		key := common.AccountKey(d.deps.Settings.Host(), username)
		if p, err := d.deps.Credentials.Get(key); err == nil {
			password = p
		} else if !errors.Is(err, common.ErrCredentialsNotFound) {
			common.LogWarn("Keyring: %v", err)
		}
	}
	d.deps.ConnectDialog.Prefill(username, password)
}

func (d *Dispatcher) propagateSession() {
	dsid := d.deps.Client.DSID()
	host := d.deps.Settings.Host()
	d.deps.Service.SetSession(host, dsid)
	d.deps.UI.SetSession(host, dsid)
	d.deps.SessionDialog.SetDSID(dsid)
}

func (d *Dispatcher) startHelpers() {
	password := d.deps.AdminDialog.Password()

	if err := d.deps.Service.StartIfNotRunning(password); err != nil {
		common.LogError("Helper %s: %v", RoleService, err)
		d.deps.Tray.ShowMessage(common.MessageHelperFailed)
		return
	}
	if err := d.deps.UI.Start(password); err != nil {
		common.LogError("Helper %s: %v", RoleUI, err)
		d.deps.Tray.ShowMessage(common.MessageHelperFailed)
	}
}

func (d *Dispatcher) terminateHelper(c TerminateHelper) {
	sup := d.deps.UI
	if c.Role == RoleService {
		sup = d.deps.Service
	}

	var err error
	if c.IfRunning {
		err = sup.TerminateIfRunning()
	} else {
		err = sup.Terminate()
	}
	if err != nil {
		common.LogWarn("Helper %s: terminate: %v", c.Role, err)
	}
}

// runTask builds the thunk for kind. Values entered in the connect dialog
// are read here, on the dispatch goroutine, when the task is invoked.
func (d *Dispatcher) runTask(kind TaskKind) {
	client := d.deps.Client

	var fn Thunk
	switch kind {
	case TaskConnect:
		fn = func(ctx context.Context) ([]string, error) {
			return nil, client.Connect(ctx)
		}
	case TaskFetchRealms:
		fn = client.Realms
	case TaskLogin:
		username := d.deps.ConnectDialog.Username()
		password := d.deps.ConnectDialog.Password()
		realm := d.deps.ConnectDialog.Realm()
		remember := d.rememberFunc(username, password)
		fn = func(ctx context.Context) ([]string, error) {
			remember()
			return nil, client.Login(ctx, username, password, realm)
		}
	case TaskSubmitPin:
		pin := d.deps.ConnectDialog.OneTimePin()
		fn = func(ctx context.Context) ([]string, error) {
			return nil, client.SubmitOneTimePin(ctx, pin)
		}
	case TaskSubmitConfirm:
		fn = func(ctx context.Context) ([]string, error) {
			return nil, client.SubmitConfirm(ctx)
		}
	default:
		common.LogWarn("Dispatcher: unknown task %s", kind)
		return
	}

	id := d.runner.Go(kind, d.state.epoch, fn)
	common.LogDebug("Task %s scheduled as %s", kind, id)
}

// rememberFunc returns the keyring and settings updates for a login
// attempt. It runs inside the login task since keyring access may block.
func (d *Dispatcher) rememberFunc(username, password string) func() {
	settings := d.deps.Settings
	creds := d.deps.Credentials
	if !settings.RememberPassword() || username == "" {
		return func() {}
	}
	key := common.AccountKey(settings.Host(), username)

	return func() {
		if err := settings.RememberLogin(username); err != nil {
			common.LogWarn("Settings: %v", err)
		}
		if creds == nil || password == "" {
			return
		}
		if err := creds.Store(key, password); err != nil {
			common.LogWarn("Keyring: %v", err)
		}
	}
}
