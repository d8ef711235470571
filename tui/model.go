package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
)

// Surface updates.
type (
	trayMessageMsg    string
	connectedMsg      bool
	sessionInfoMsg    struct{}
	hideMsg           struct{}
	connectViewMsg    struct{ view common.DialogView }
	connectVisibleMsg bool
	realmsMsg         []string
	prefillMsg        struct{ username, password string }
	dsidMsg           string
	statusMsg         common.Status
	showMsg           struct{ screen screen }
)

type screen int

const (
	screenMain screen = iota
	screenSettings
	screenConnecting
	screenLogin
	screenOneTimePin
	screenAdmin
	screenSession
)

const maxMessages = 5

// Login form fields in focus order.
const (
	fieldUsername = iota
	fieldPassword
	fieldCount
)

type model struct {
	sink     common.EventSink
	settings *config.Store
	values   *values

	screen      screen
	connectView common.DialogView
	connected   bool
	sessionInfo bool
	exiting     bool
	status      common.Status
	haveStatus  bool
	messages    []string
	dsid        string
	width       int

	host     textinput.Model
	remember bool
	login    [fieldCount]textinput.Model
	focus    int
	realms   []string
	realmIdx int
	pin      textinput.Model
	admin    textinput.Model
	spinner  spinner.Model
}

func newModel(sink common.EventSink, settings *config.Store, v *values) model {
	host := textinput.New()
	host.Placeholder = "vpn.example.com"
	host.Prompt = "Host: "
	host.CharLimit = 253

	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "

	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	pin := textinput.New()
	pin.Placeholder = "000000"
	pin.Prompt = "PIN: "
	pin.CharLimit = 16

	admin := textinput.New()
	admin.Prompt = "Password: "
	admin.EchoMode = textinput.EchoPassword
	admin.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return model{
		sink:     sink,
		settings: settings,
		values:   v,
		host:     host,
		login:    [fieldCount]textinput.Model{username, password},
		pin:      pin,
		admin:    admin,
		spinner:  sp,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.screen != screenConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case trayMessageMsg:
		m.messages = append(m.messages, string(msg))
		if len(m.messages) > maxMessages {
			m.messages = m.messages[len(m.messages)-maxMessages:]
		}
	case connectedMsg:
		m.connected = bool(msg)
		if !m.connected {
			m.sessionInfo = false
		}
	case sessionInfoMsg:
		m.sessionInfo = true
	case hideMsg:
		m.exiting = true
		m.screen = screenMain
	case statusMsg:
		m.status = common.Status(msg)
		m.haveStatus = true
	case dsidMsg:
		m.dsid = string(msg)
	case prefillMsg:
		m.login[fieldUsername].SetValue(msg.username)
		m.login[fieldPassword].SetValue(msg.password)
	case realmsMsg:
		m.realms = []string(msg)
		if m.realmIdx >= len(m.realms) {
			m.realmIdx = 0
		}
	case connectVisibleMsg:
		if !bool(msg) {
			m.connectView = common.ViewHidden
			if isConnectScreen(m.screen) {
				m.screen = screenMain
			}
			return m, nil
		}
		return m.showConnect(m.connectView)
	case connectViewMsg:
		return m.showConnect(msg.view)
	case showMsg:
		return m.show(msg.screen)
	}
	return m, nil
}

func (m model) show(s screen) (tea.Model, tea.Cmd) {
	m.screen = s
	switch s {
	case screenSettings:
		cfg := m.settings.Snapshot()
		m.host.SetValue(cfg.Host)
		m.host.CursorEnd()
		m.remember = cfg.RememberPassword
		return m, m.host.Focus()
	case screenAdmin:
		m.admin.SetValue("")
		return m, m.admin.Focus()
	}
	return m, nil
}

func (m model) showConnect(view common.DialogView) (tea.Model, tea.Cmd) {
	m.connectView = view
	switch view {
	case common.ViewConnecting:
		m.screen = screenConnecting
		return m, m.spinner.Tick
	case common.ViewLogin:
		m.screen = screenLogin
		m.focus = fieldUsername
		if m.login[fieldUsername].Value() != "" {
			m.focus = fieldPassword
		}
		return m, m.focusLogin()
	case common.ViewOneTimePin:
		m.screen = screenOneTimePin
		m.pin.SetValue("")
		return m, m.pin.Focus()
	default:
		if isConnectScreen(m.screen) {
			m.screen = screenMain
		}
		return m, nil
	}
}

func (m *model) focusLogin() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.login {
		if i == m.focus {
			cmd = m.login[i].Focus()
		} else {
			m.login[i].Blur()
		}
	}
	return cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.sink.Post(common.EventExit)
		return m, nil
	}

	switch m.screen {
	case screenMain:
		return m.mainKey(msg)
	case screenSettings:
		return m.settingsKey(msg)
	case screenConnecting:
		if msg.String() == "esc" {
			m.screen = screenMain
			m.sink.Post(common.EventConnectCanceled)
		}
		return m, nil
	case screenLogin:
		return m.loginKey(msg)
	case screenOneTimePin:
		return m.pinKey(msg)
	case screenAdmin:
		return m.adminKey(msg)
	case screenSession:
		switch msg.String() {
		case "esc", "enter", "q":
			m.screen = screenMain
			m.sink.Post(common.EventSessionClose)
		}
		return m, nil
	}
	return m, nil
}

func (m model) mainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.exiting {
		return m, nil
	}
	switch msg.String() {
	case "c":
		m.sink.Post(common.EventTrayConnect)
	case "d":
		m.sink.Post(common.EventTrayDisconnect)
	case "i":
		if m.sessionInfo {
			m.sink.Post(common.EventTraySession)
		}
	case "s":
		m.sink.Post(common.EventTraySettings)
	case "q":
		m.sink.Post(common.EventExit)
	}
	return m, nil
}

func (m model) settingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.host.Blur()
		m.screen = screenMain
		return m, nil
	case "ctrl+r":
		m.remember = !m.remember
		return m, nil
	case "enter":
		host := strings.TrimSpace(m.host.Value())
		if host == "" {
			return m, nil
		}
		remember := m.remember
		m.settings.Update(func(c *config.Config) {
			c.Host = host
			c.RememberPassword = remember
		})
		m.host.Blur()
		m.screen = screenMain
		m.sink.Post(common.EventHostSettingsUpdated)
		return m, nil
	}

	var cmd tea.Cmd
	m.host, cmd = m.host.Update(msg)
	return m, cmd
}

func (m model) loginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenMain
		m.sink.Post(common.EventConnectCanceled)
		return m, nil
	case "tab", "down":
		m.focus = (m.focus + 1) % fieldCount
		return m, m.focusLogin()
	case "shift+tab", "up":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, m.focusLogin()
	case "ctrl+n":
		if len(m.realms) > 0 {
			m.realmIdx = (m.realmIdx + 1) % len(m.realms)
		}
		return m, nil
	case "ctrl+p":
		if len(m.realms) > 0 {
			m.realmIdx = (m.realmIdx + len(m.realms) - 1) % len(m.realms)
		}
		return m, nil
	case "enter":
		username := strings.TrimSpace(m.login[fieldUsername].Value())
		if username == "" {
			m.focus = fieldUsername
			return m, m.focusLogin()
		}
		password := m.login[fieldPassword].Value()
		realm := ""
		if m.realmIdx < len(m.realms) {
			realm = m.realms[m.realmIdx]
		}
		m.values.set(func(v *values) {
			v.username = username
			v.password = password
			v.realm = realm
		})
		m.sink.Post(common.EventConnectOkay)
		return m, nil
	}

	var cmd tea.Cmd
	m.login[m.focus], cmd = m.login[m.focus].Update(msg)
	return m, cmd
}

func (m model) pinKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenMain
		m.sink.Post(common.EventConnectOneTimePinCanceled)
		return m, nil
	case "enter":
		pin := strings.TrimSpace(m.pin.Value())
		if pin == "" {
			return m, nil
		}
		m.values.set(func(v *values) { v.pin = pin })
		m.sink.Post(common.EventConnectOneTimePinOkay)
		return m, nil
	}

	var cmd tea.Cmd
	m.pin, cmd = m.pin.Update(msg)
	return m, cmd
}

func (m model) adminKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.admin.Blur()
		m.screen = screenMain
		m.sink.Post(common.EventAdminCanceled)
		return m, nil
	case "enter":
		password := m.admin.Value()
		m.values.set(func(v *values) { v.adminPassword = password })
		m.admin.SetValue("")
		m.admin.Blur()
		m.screen = screenMain
		m.sink.Post(common.EventAdminOkay)
		return m, nil
	}

	var cmd tea.Cmd
	m.admin, cmd = m.admin.Update(msg)
	return m, cmd
}

func isConnectScreen(s screen) bool {
	return s == screenConnecting || s == screenLogin || s == screenOneTimePin
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("  ")
	if m.connected {
		b.WriteString(connectedStyle.Render("● Connected"))
	} else {
		b.WriteString(disconnectedStyle.Render("○ Not Connected"))
	}
	b.WriteString("\n")
	if m.haveStatus {
		b.WriteString(dimStyle.Render(statusLine(m.status)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(panelStyle.Render(m.body()))
	b.WriteString("\n")

	for _, msg := range m.messages {
		b.WriteString(messageStyle.Render("! " + msg))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m model) body() string {
	switch m.screen {
	case screenSettings:
		check := "[ ]"
		if m.remember {
			check = "[x]"
		}
		return headingStyle.Render("Settings") + "\n\n" +
			m.host.View() + "\n" +
			check + " Remember password"
	case screenConnecting:
		return m.spinner.View() + " Contacting the VPN portal…"
	case screenLogin:
		var b strings.Builder
		b.WriteString(headingStyle.Render("Sign in"))
		b.WriteString("\n\n")
		for i := range m.login {
			b.WriteString(m.login[i].View())
			b.WriteString("\n")
		}
		if len(m.realms) > 0 {
			b.WriteString(fmt.Sprintf("Realm: %s", m.realms[m.realmIdx]))
			if len(m.realms) > 1 {
				b.WriteString(dimStyle.Render(fmt.Sprintf("  (%d/%d)", m.realmIdx+1, len(m.realms))))
			}
		}
		return strings.TrimRight(b.String(), "\n")
	case screenOneTimePin:
		return headingStyle.Render("One-Time PIN") + "\n\n" + m.pin.View()
	case screenAdmin:
		return headingStyle.Render("Administrator Password") + "\n" +
			dimStyle.Render("Network Connect needs administrator rights.") + "\n\n" +
			m.admin.View()
	case screenSession:
		dsid := m.dsid
		if dsid == "" {
			dsid = "No active session"
		}
		return headingStyle.Render("Session Info") + "\n\n" +
			"Portal: " + m.settings.Host() + "\n" +
			"DSID:   " + tokenStyle.Render(dsid)
	}

	if m.exiting {
		return "Exiting…"
	}
	host := m.settings.Host()
	if host == "" {
		host = dimStyle.Render("(not configured)")
	}
	return "Portal: " + host
}

func (m model) help() string {
	switch m.screen {
	case screenSettings:
		return "enter save • ctrl+r toggle remember • esc cancel"
	case screenConnecting:
		return "esc cancel"
	case screenLogin:
		if len(m.realms) > 1 {
			return "enter sign in • tab next field • ctrl+n/ctrl+p realm • esc cancel"
		}
		return "enter sign in • tab next field • esc cancel"
	case screenOneTimePin, screenAdmin:
		return "enter continue • esc cancel"
	case screenSession:
		return "enter close"
	}
	keys := "c connect • d disconnect • s settings • q quit"
	if m.sessionInfo {
		keys = "c connect • d disconnect • i session • s settings • q quit"
	}
	return keys
}

func statusLine(s common.Status) string {
	line := fmt.Sprintf("page: %s  view: %s", s.Page, s.View)
	if s.SessionActive {
		line += "  session: active"
	}
	if s.Busy {
		line += "  busy"
	}
	return line
}
