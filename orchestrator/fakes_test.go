package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yllada/ncconnect/common"
)

// calls records collaborator calls in order across goroutines.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *calls) index(call string) int {
	return common.IndexOf(c.all(), call)
}

func (c *calls) has(call string) bool {
	return c.index(call) >= 0
}

func (c *calls) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}

type fakeSettings struct {
	calls    *calls
	host     string
	username string
	remember bool
	saveErr  error
}

func (f *fakeSettings) Save() error {
	f.calls.add("settings.save")
	return f.saveErr
}
func (f *fakeSettings) Host() string           { return f.host }
func (f *fakeSettings) Username() string       { return f.username }
func (f *fakeSettings) RememberPassword() bool { return f.remember }
func (f *fakeSettings) RememberLogin(username string) error {
	f.calls.add("settings.remember(%s)", username)
	f.username = username
	return nil
}

// fakeClient mimics the portal: each step moves the page and posts the
// matching event.
type fakeClient struct {
	calls *calls
	sink  common.EventSink

	mu        sync.Mutex
	page      common.PageState
	dsid      string
	afterStep common.PageState
	realms    []string
	realmsErr error
	block     chan struct{}
	gen       int
}

func (f *fakeClient) setPage(p common.PageState) {
	f.mu.Lock()
	f.page = p
	f.mu.Unlock()
}

func (f *fakeClient) report(p common.PageState, repeat common.PageState) {
	f.setPage(p)
	switch {
	case p == repeat:
		f.sink.Post(common.EventCommunicatorInvalidUsernamePassword)
	case p == common.PageOneTimePin:
		f.sink.Post(common.EventCommunicatorOneTimePin)
	case p == common.PageConfirmContinue:
		f.sink.Post(common.EventCommunicatorConfirm)
	case p == common.PageLoginComplete:
		f.sink.Post(common.EventCommunicatorLoginSuccessful)
	default:
		f.sink.Post(common.EventCommunicatorInvalidURL)
	}
}

func (f *fakeClient) setBlock(block chan struct{}) {
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()
}

// Connect discards its round trip when Disconnect ran meanwhile, like the
// portal client does.
func (f *fakeClient) Connect(ctx context.Context) error {
	f.calls.add("client.connect")
	f.mu.Lock()
	block, gen := f.block, f.gen
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return errors.New("session was disconnected")
	}
	f.page = common.PageLogin
	f.sink.Post(common.EventCommunicatorLogin)
	return nil
}

func (f *fakeClient) Login(_ context.Context, username, password, realm string) error {
	f.calls.add("client.login(%s,%s,%s)", username, password, realm)
	f.report(f.afterStep, common.PageLogin)
	return nil
}

func (f *fakeClient) SubmitOneTimePin(_ context.Context, pin string) error {
	f.calls.add("client.pin(%s)", pin)
	f.report(common.PageLoginComplete, common.PageOneTimePin)
	return nil
}

func (f *fakeClient) SubmitConfirm(context.Context) error {
	f.calls.add("client.confirm")
	f.report(common.PageLoginComplete, common.PageNone)
	return nil
}

func (f *fakeClient) Disconnect() error {
	f.calls.add("client.disconnect")
	f.mu.Lock()
	f.page = common.PageNone
	f.dsid = ""
	f.gen++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Realms(context.Context) ([]string, error) {
	f.calls.add("client.realms")
	return f.realms, f.realmsErr
}

func (f *fakeClient) CurrentPage() common.PageState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *fakeClient) DSID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.page != common.PageLoginComplete {
		return ""
	}
	return f.dsid
}

type fakeSupervisor struct {
	calls    *calls
	role     Role
	startErr error
}

func (f *fakeSupervisor) SetSession(host, dsid string) {
	f.calls.add("%s.session(%s,%s)", f.role, host, dsid)
}
func (f *fakeSupervisor) StartIfNotRunning(cred string) error {
	f.calls.add("%s.startIfNotRunning(%s)", f.role, cred)
	return f.startErr
}
func (f *fakeSupervisor) Start(cred string) error {
	f.calls.add("%s.start(%s)", f.role, cred)
	return f.startErr
}
func (f *fakeSupervisor) Terminate() error {
	f.calls.add("%s.terminate", f.role)
	return nil
}
func (f *fakeSupervisor) TerminateIfRunning() error {
	f.calls.add("%s.terminateIfRunning", f.role)
	return nil
}

type fakeTray struct{ calls *calls }

func (f *fakeTray) ShowMessage(text string)     { f.calls.add("tray.message(%s)", text) }
func (f *fakeTray) SetConnected(connected bool) { f.calls.add("tray.connected(%t)", connected) }
func (f *fakeTray) EnableSessionInfo()          { f.calls.add("tray.sessionInfo") }
func (f *fakeTray) Hide()                       { f.calls.add("tray.hide") }

type fakeSettingsDialog struct{ calls *calls }

func (f *fakeSettingsDialog) MakeVisible() { f.calls.add("settingsDialog.show") }

type fakeConnectDialog struct {
	calls    *calls
	username string
	password string
	realm    string
	pin      string
	realms   []string
}

func (f *fakeConnectDialog) MakeVisible(view common.DialogView) {
	f.calls.add("connectDialog.show(%s)", view)
}
func (f *fakeConnectDialog) SetVisible(visible bool) {
	f.calls.add("connectDialog.visible(%t)", visible)
}
func (f *fakeConnectDialog) Username() string   { return f.username }
func (f *fakeConnectDialog) Password() string   { return f.password }
func (f *fakeConnectDialog) Realm() string      { return f.realm }
func (f *fakeConnectDialog) OneTimePin() string { return f.pin }
func (f *fakeConnectDialog) SetRealms(realms []string) {
	f.calls.add("connectDialog.realms(%v)", realms)
	f.realms = realms
}
func (f *fakeConnectDialog) Prefill(username, password string) {
	f.calls.add("connectDialog.prefill(%s,%s)", username, password)
}

type fakeAdminDialog struct {
	calls    *calls
	password string
}

func (f *fakeAdminDialog) MakeVisible() { f.calls.add("adminDialog.show") }
func (f *fakeAdminDialog) Password() string {
	f.calls.add("adminDialog.password")
	return f.password
}

type fakeSessionDialog struct{ calls *calls }

func (f *fakeSessionDialog) MakeVisible()        { f.calls.add("sessionDialog.show") }
func (f *fakeSessionDialog) SetDSID(dsid string) { f.calls.add("sessionDialog.dsid(%s)", dsid) }

type fakeCredentials struct {
	mu    sync.Mutex
	store map[string]string
}

func (f *fakeCredentials) Store(account, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[account] = password
	return nil
}
func (f *fakeCredentials) Get(account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.store[account]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return p, nil
}
func (f *fakeCredentials) Delete(account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, account)
	return nil
}
func (f *fakeCredentials) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store = map[string]string{}
	return nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses []common.Status
}

func (f *fakeStatus) Publish(s common.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, s)
	return nil
}

// harness wires a dispatcher to fakes and drives it synchronously.
type harness struct {
	t        *testing.T
	calls    *calls
	mailbox  *Mailbox
	d        *Dispatcher
	settings *fakeSettings
	client   *fakeClient
	connect  *fakeConnectDialog
	admin    *fakeAdminDialog
	service  *fakeSupervisor
	ui       *fakeSupervisor
	creds    *fakeCredentials
	status   *fakeStatus

	timers []time.Duration
	fire   []func()
	exits  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &calls{}
	mb := NewMailbox(64)
	h := &harness{
		t:        t,
		calls:    c,
		mailbox:  mb,
		settings: &fakeSettings{calls: c, host: "vpn.example.com"},
		client:   &fakeClient{calls: c, sink: mb, afterStep: common.PageLoginComplete, dsid: "xyz"},
		connect:  &fakeConnectDialog{calls: c},
		admin:    &fakeAdminDialog{calls: c},
		service:  &fakeSupervisor{calls: c, role: RoleService},
		ui:       &fakeSupervisor{calls: c, role: RoleUI},
		creds:    &fakeCredentials{store: map[string]string{}},
		status:   &fakeStatus{},
	}

	d, err := New(mb, Deps{
		Settings:       h.settings,
		Client:         h.client,
		Service:        h.service,
		UI:             h.ui,
		Tray:           &fakeTray{calls: c},
		SettingsDialog: &fakeSettingsDialog{calls: c},
		ConnectDialog:  h.connect,
		AdminDialog:    h.admin,
		SessionDialog:  &fakeSessionDialog{calls: c},
		Credentials:    h.creds,
		Status:         h.status,
	},
		WithExitFunc(func() { h.exits++ }),
		WithAfterFunc(func(after time.Duration, fn func()) {
			h.timers = append(h.timers, after)
			h.fire = append(h.fire, fn)
		}),
		WithTaskTimeout(5*time.Second),
	)
	require.NoError(t, err)
	h.d = d
	t.Cleanup(func() {
		mb.Close()
		d.runner.Stop()
	})
	return h
}

// post handles ev and everything it causes until the mailbox is quiet.
func (h *harness) post(ev common.Event) {
	h.d.handle(item{event: ev})
	h.settle()
}

func (h *harness) settle() {
	for {
		h.d.runner.Wait()
		select {
		case it := <-h.mailbox.ch:
			h.d.handle(it)
		default:
			return
		}
	}
}
