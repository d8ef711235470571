package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ncconnect/common"
)

const loginPage = `<html><body>
<form name="frmLogin" action="login.cgi" method="POST">
  <input type="hidden" name="tz_offset" value="60">
  <input type="text" name="username">
  <input type="password" name="password">
  <select name="realm">
    <option value="corp">Corporate</option>
    <option>guest</option>
  </select>
  <input type="submit" name="btnSubmit" value="Sign In">
</form></body></html>`

const pinPage = `<html><body>
<form action="login.cgi" method="POST">
  <input type="hidden" name="key" value="">
  <input type="password" name="password#2">
  <input type="submit" name="totpactionEnter" value="Sign In">
</form></body></html>`

const confirmPage = `<html><body>
<form action="confirm.cgi" method="POST">
  <input type="hidden" name="FormDataStr" value="state-123">
  <input type="submit" name="btnContinue" value="Continue the session">
</form></body></html>`

type sink struct {
	mu     sync.Mutex
	events []common.Event
}

func (s *sink) Post(ev common.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sink) last() common.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return common.Event(-1)
	}
	return s.events[len(s.events)-1]
}

type host string

func (h host) Host() string { return string(h) }

// fakePortal serves a minimal sign-in flow. User "alice" gets straight in,
// "bob" needs a one-time PIN and "carol" has a session to confirm.
type fakePortal struct {
	logouts atomic.Int32
	form    atomic.Value
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/login.cgi", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.form.Store(r.PostForm)

		if pin := r.PostForm.Get("password#2"); pin != "" || r.PostForm.Has("totpactionEnter") {
			if pin == "123456" {
				p.grant(w)
				return
			}
			fmt.Fprint(w, pinPage)
			return
		}

		if r.PostForm.Get("password") != "secret" {
			fmt.Fprint(w, loginPage)
			return
		}
		switch r.PostForm.Get("username") {
		case "alice":
			p.grant(w)
		case "bob":
			fmt.Fprint(w, pinPage)
		case "carol":
			fmt.Fprint(w, confirmPage)
		default:
			fmt.Fprint(w, loginPage)
		}
	})
	mux.HandleFunc("/confirm.cgi", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.form.Store(r.PostForm)
		if r.PostForm.Get("FormDataStr") == "state-123" && r.PostForm.Get("btnContinue") != "" {
			p.grant(w)
			return
		}
		fmt.Fprint(w, confirmPage)
	})
	mux.HandleFunc("/dana-na/auth/logout.cgi", func(w http.ResponseWriter, r *http.Request) {
		p.logouts.Add(1)
		fmt.Fprint(w, "bye")
	})
	return mux
}

func (p *fakePortal) grant(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "DSID", Value: "abc123", Path: "/"})
	fmt.Fprint(w, `<html><body>Welcome</body></html>`)
}

func newTestClient(t *testing.T) (*Client, *sink, *fakePortal) {
	t.Helper()
	portal := &fakePortal{}
	srv := httptest.NewTLSServer(portal.handler())
	t.Cleanup(srv.Close)

	s := &sink{}
	c := New(s, host(srv.URL), WithHTTPClient(srv.Client()))
	return c, s, portal
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host    string
		want    string
		wantErr bool
	}{
		{host: "vpn.example.com", want: "https://vpn.example.com/"},
		{host: "  vpn.example.com ", want: "https://vpn.example.com/"},
		{host: "https://vpn.example.com/corp", want: "https://vpn.example.com/corp/"},
		{host: "http://127.0.0.1:8080", want: "http://127.0.0.1:8080/"},
		{host: "", wantErr: true},
		{host: "ftp://vpn.example.com", wantErr: true},
		{host: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			u, err := BaseURL(tt.host)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidHost)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestConnect_ReachesLoginPage(t *testing.T) {
	c, s, _ := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, common.EventCommunicatorLogin, s.last())
	assert.Equal(t, common.PageLogin, c.CurrentPage())

	realms, err := c.Realms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"corp", "guest"}, realms)
}

func TestConnect_InvalidHost(t *testing.T) {
	s := &sink{}
	c := New(s, host(""))

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidHost)
	assert.Equal(t, common.EventCommunicatorInvalidURL, s.last())
	assert.Equal(t, common.PageNone, c.CurrentPage())
}

func TestConnect_UnreachableHost(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	s := &sink{}
	c := New(s, host(addr), WithHTTPClient(&http.Client{Timeout: time.Second}))

	require.Error(t, c.Connect(context.Background()))
	assert.Equal(t, common.EventCommunicatorInvalidURL, s.last())
}

func TestConnect_NotAPortal(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>It works!</body></html>")
	}))
	t.Cleanup(srv.Close)

	s := &sink{}
	c := New(s, host(srv.URL), WithHTTPClient(srv.Client()))

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, common.ErrUnexpectedPage)
	assert.Equal(t, common.EventCommunicatorInvalidURL, s.last())
}

func TestConnect_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	s := &sink{}
	c := New(s, host(srv.URL), WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.Error(t, c.Connect(ctx))
	assert.Equal(t, common.EventCommunicatorTimeout, s.last())
}

func TestLogin_Success(t *testing.T) {
	c, s, portal := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Login(context.Background(), "alice", "secret", "guest"))

	assert.Equal(t, common.EventCommunicatorLoginSuccessful, s.last())
	assert.Equal(t, common.PageLoginComplete, c.CurrentPage())
	assert.Equal(t, "abc123", c.DSID())

	sent := portal.form.Load().(url.Values)
	assert.Equal(t, []string{"guest"}, sent["realm"])
	assert.Equal(t, []string{"60"}, sent["tz_offset"], "hidden inputs are preserved")
	assert.Equal(t, []string{"Sign In"}, sent["btnSubmit"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c, s, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Login(context.Background(), "alice", "wrong", "corp"))

	assert.Equal(t, common.EventCommunicatorInvalidUsernamePassword, s.last())
	assert.Empty(t, c.DSID())
}

func TestLogin_OneTimePin(t *testing.T) {
	c, s, _ := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Login(context.Background(), "bob", "secret", "corp"))
	assert.Equal(t, common.EventCommunicatorOneTimePin, s.last())
	assert.Equal(t, common.PageOneTimePin, c.CurrentPage())

	require.NoError(t, c.SubmitOneTimePin(context.Background(), "000000"))
	assert.Equal(t, common.EventCommunicatorInvalidUsernamePassword, s.last())

	require.NoError(t, c.SubmitOneTimePin(context.Background(), "123456"))
	assert.Equal(t, common.EventCommunicatorLoginSuccessful, s.last())
	assert.Equal(t, "abc123", c.DSID())
}

func TestLogin_ConfirmSession(t *testing.T) {
	c, s, portal := newTestClient(t)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Login(context.Background(), "carol", "secret", ""))
	assert.Equal(t, common.EventCommunicatorConfirm, s.last())
	assert.Equal(t, common.PageConfirmContinue, c.CurrentPage())

	require.NoError(t, c.SubmitConfirm(context.Background()))
	assert.Equal(t, common.EventCommunicatorLoginSuccessful, s.last())

	sent := portal.form.Load().(url.Values)
	assert.Equal(t, []string{"Continue the session"}, sent["btnContinue"])
}

func TestLogin_WrongPage(t *testing.T) {
	c, s, _ := newTestClient(t)

	err := c.Login(context.Background(), "alice", "secret", "")
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
	assert.Empty(t, s.events)

	require.NoError(t, c.Connect(context.Background()))
	err = c.SubmitOneTimePin(context.Background(), "123456")
	assert.ErrorIs(t, err, common.ErrUnexpectedPage)
}

func TestDisconnect(t *testing.T) {
	c, _, portal := newTestClient(t)

	// Nothing to do without a session.
	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Disconnect())
	assert.Equal(t, int32(0), portal.logouts.Load())

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Login(context.Background(), "alice", "secret", "corp"))

	require.NoError(t, c.Disconnect())
	assert.Equal(t, common.PageNone, c.CurrentPage())
	assert.Empty(t, c.DSID())
	require.Eventually(t, func() bool { return portal.logouts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Disconnect())
	assert.Equal(t, int32(1), portal.logouts.Load())
}

func TestDisconnect_DiscardsInFlightConnect(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, loginPage)
	}))
	t.Cleanup(srv.Close)

	s := &sink{}
	c := New(s, host(srv.URL), WithHTTPClient(srv.Client()))

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.hc != nil
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Disconnect())
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, common.PageNone, c.CurrentPage())
	assert.Empty(t, s.events, "a dropped session reports nothing")
}

func TestEventAfter(t *testing.T) {
	tests := []struct {
		from, to common.PageState
		want     common.Event
	}{
		{common.PageLogin, common.PageLoginComplete, common.EventCommunicatorLoginSuccessful},
		{common.PageLogin, common.PageLogin, common.EventCommunicatorInvalidUsernamePassword},
		{common.PageLogin, common.PageOneTimePin, common.EventCommunicatorOneTimePin},
		{common.PageLogin, common.PageConfirmContinue, common.EventCommunicatorConfirm},
		{common.PageLogin, common.PageNone, common.EventCommunicatorInvalidURL},
		{common.PageOneTimePin, common.PageOneTimePin, common.EventCommunicatorInvalidUsernamePassword},
		{common.PageOneTimePin, common.PageLogin, common.EventCommunicatorInvalidUsernamePassword},
		{common.PageConfirmContinue, common.PageConfirmContinue, common.EventCommunicatorInvalidURL},
	}

	for _, tt := range tests {
		name := strings.ReplaceAll(tt.from.String()+"->"+tt.to.String(), " ", "")
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, eventAfter(tt.from, tt.to))
		})
	}
}
