// Package portal implements the web sign-in handshake against a Network
// Connect portal. The Client keeps one cookie session, tracks which page of
// the sign-in it is on and reports every step to an event sink.
package portal

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/yllada/ncconnect/common"
)

// HostSource supplies the portal host when a handshake starts.
type HostSource interface {
	Host() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses hc for requests. Its Jar is replaced per session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithLogoutTimeout bounds the sign-out request made by Disconnect.
func WithLogoutTimeout(d time.Duration) Option {
	return func(c *Client) { c.logoutTimeout = d }
}

// Client talks to the portal. Network methods block and are meant to run
// on background tasks; CurrentPage and DSID never block on the network.
type Client struct {
	sink          common.EventSink
	hosts         HostSource
	base          *http.Client
	logoutTimeout time.Duration

	mu   sync.Mutex
	gen  uint64
	hc   *http.Client
	root *url.URL
	cur  *page
	dsid string
}

// New creates a client posting to sink and reading the host from hosts.
func New(sink common.EventSink, hosts HostSource, opts ...Option) *Client {
	c := &Client{
		sink:          sink,
		hosts:         hosts,
		base:          &http.Client{Timeout: common.PortalTimeout},
		logoutTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL turns a configured host into the portal's root URL. A bare host
// becomes https://host/; a value with a scheme is used as given.
func BaseURL(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.Wrap(common.ErrInvalidHost, "no host configured")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host + "/"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, errors.Wrapf(common.ErrInvalidHost, "%q: %v", host, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, errors.Wrapf(common.ErrInvalidHost, "%q", host)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// CurrentPage returns the page the session is on.
func (c *Client) CurrentPage() common.PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return common.PageNone
	}
	return c.cur.state
}

// DSID returns the session token, or "" before the sign-in completes.
func (c *Client) DSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dsid
}

// Connect starts a new session and loads the sign-in page.
func (c *Client) Connect(ctx context.Context) error {
	root, err := BaseURL(c.hosts.Host())
	if err != nil {
		common.LogWarn("Portal: %v", err)
		c.sink.Post(common.EventCommunicatorInvalidURL)
		return err
	}

	gen, hc := c.reset(root)
	common.LogInfo("Portal: connecting to %s", root)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root.String(), nil)
	if err != nil {
		return c.fail(gen, err)
	}
	p, err := c.fetch(hc, req)
	if err != nil {
		return c.fail(gen, err)
	}
	if !c.commit(gen, p) {
		return nil
	}

	if p.state != common.PageLogin {
		c.sink.Post(common.EventCommunicatorInvalidURL)
		return errors.Wrapf(common.ErrUnexpectedPage, "connect reached %s", p.state)
	}
	c.sink.Post(common.EventCommunicatorLogin)
	return nil
}

// Realms returns the realms offered by the sign-in page.
func (c *Client) Realms(ctx context.Context) ([]string, error) {
	gen, hc, cur, err := c.expect(common.PageLogin)
	if err != nil {
		return nil, err
	}
	if len(cur.realms) > 0 {
		return append([]string(nil), cur.realms...), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cur.url.String(), nil)
	if err != nil {
		return nil, err
	}
	p, err := c.fetch(hc, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen && c.cur != nil {
		c.cur.realms = p.realms
	}
	c.mu.Unlock()
	return append([]string(nil), p.realms...), nil
}

// Login submits the credentials on the sign-in page.
func (c *Client) Login(ctx context.Context, username, password, realm string) error {
	overrides := map[string]string{
		fieldUsername: username,
		fieldPassword: password,
	}
	if realm != "" {
		overrides[fieldRealm] = realm
	}
	return c.submit(ctx, common.PageLogin, overrides)
}

// SubmitOneTimePin submits the token code on the one-time PIN page.
func (c *Client) SubmitOneTimePin(ctx context.Context, pin string) error {
	c.mu.Lock()
	field := fieldPinKey
	if c.cur != nil && c.cur.form.has(fieldPin2) {
		field = fieldPin2
	}
	c.mu.Unlock()

	return c.submit(ctx, common.PageOneTimePin, map[string]string{field: pin})
}

// SubmitConfirm continues past the "session already active" page.
func (c *Client) SubmitConfirm(ctx context.Context) error {
	c.mu.Lock()
	value := "Continue the session"
	if c.cur != nil && c.cur.form != nil {
		if v := c.cur.form.values.Get(fieldContinue); v != "" {
			value = v
		}
	}
	c.mu.Unlock()

	return c.submit(ctx, common.PageConfirmContinue, map[string]string{fieldContinue: value})
}

// Disconnect drops the session. A held DSID is signed out in the
// background. It does nothing when there is no session.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.hc == nil && c.cur == nil && c.dsid == "" {
		c.mu.Unlock()
		return nil
	}
	hc, root, dsid := c.hc, c.root, c.dsid
	c.gen++
	c.hc, c.root, c.cur, c.dsid = nil, nil, nil, ""
	c.mu.Unlock()

	common.LogInfo("Portal: disconnected")
	if dsid != "" && hc != nil && root != nil {
		go c.logout(hc, root)
	}
	return nil
}

func (c *Client) logout(hc *http.Client, root *url.URL) {
	ctx, cancel := context.WithTimeout(context.Background(), c.logoutTimeout)
	defer cancel()

	u, err := root.Parse(logoutPath)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return
	}
	resp, err := hc.Do(req)
	if err != nil {
		common.LogDebug("Portal: sign out: %v", err)
		return
	}
	resp.Body.Close()
}

// submit posts the current page's form with overrides and reports where
// the portal went next.
func (c *Client) submit(ctx context.Context, from common.PageState, overrides map[string]string) error {
	gen, hc, cur, err := c.expect(from)
	if err != nil {
		return err
	}
	if cur.form == nil {
		return errors.Wrapf(common.ErrNoForm, "%s page", from)
	}

	req, err := newFormRequest(ctx, cur.form, cur.form.with(overrides))
	if err != nil {
		return err
	}
	p, err := c.fetch(hc, req)
	if err != nil {
		return c.fail(gen, err)
	}
	if !c.commit(gen, p) {
		return nil
	}

	common.LogInfo("Portal: %s page led to %s", from, p.state)
	c.sink.Post(eventAfter(from, p.state))
	return nil
}

// eventAfter maps the page reached from a submission to the event posted.
func eventAfter(from, to common.PageState) common.Event {
	switch {
	case to == common.PageLoginComplete:
		return common.EventCommunicatorLoginSuccessful
	case to == from && from == common.PageConfirmContinue:
		return common.EventCommunicatorInvalidURL
	case to == from, to == common.PageLogin:
		return common.EventCommunicatorInvalidUsernamePassword
	case to == common.PageOneTimePin:
		return common.EventCommunicatorOneTimePin
	case to == common.PageConfirmContinue:
		return common.EventCommunicatorConfirm
	default:
		return common.EventCommunicatorInvalidURL
	}
}

func newFormRequest(ctx context.Context, f *form, values url.Values) (*http.Request, error) {
	if f.method == http.MethodPost {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.action.String(),
			strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	u := *f.action
	u.RawQuery = values.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// fetch performs req and parses the response.
func (c *Client) fetch(hc *http.Client, req *http.Request) (*page, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("portal returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parsing portal page")
	}

	pageURL := resp.Request.URL
	dsid := findDSID(hc.Jar, pageURL)
	p := parsePage(doc, pageURL, dsid != "")
	p.dsid = dsid
	return p, nil
}

func findDSID(jar http.CookieJar, u *url.URL) string {
	if jar == nil {
		return ""
	}
	root := *u
	root.Path = "/"
	root.RawQuery = ""
	for _, ck := range jar.Cookies(&root) {
		if ck.Name == cookieDSID && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// reset starts a new session generation with an empty cookie jar.
func (c *Client) reset(root *url.URL) (uint64, *http.Client) {
	jar, _ := cookiejar.New(nil)
	hc := *c.base
	hc.Jar = jar

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.hc = &hc
	c.root = root
	c.cur = nil
	c.dsid = ""
	return c.gen, &hc
}

// expect returns the session if it is on the given page.
func (c *Client) expect(state common.PageState) (uint64, *http.Client, *page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hc == nil || c.cur == nil {
		return 0, nil, nil, errors.Wrapf(common.ErrNotAuthenticated, "expected %s page", state)
	}
	if c.cur.state != state {
		return 0, nil, nil, errors.Wrapf(common.ErrUnexpectedPage, "on %s page, expected %s", c.cur.state, state)
	}
	cur := *c.cur
	return c.gen, c.hc, &cur, nil
}

// commit stores p unless the session was reset since gen.
func (c *Client) commit(gen uint64, p *page) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		common.LogDebug("Portal: discarding %s page from a dropped session", p.state)
		return false
	}
	c.cur = p
	c.dsid = p.dsid
	return true
}

// fail reports a transport error for a live session.
func (c *Client) fail(gen uint64, err error) error {
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		return err
	}

	common.LogWarn("Portal: %v", err)
	if isTimeout(err) {
		c.sink.Post(common.EventCommunicatorTimeout)
	} else {
		c.sink.Post(common.EventCommunicatorInvalidURL)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr) && uerr.Timeout()
}
