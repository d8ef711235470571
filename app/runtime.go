// Package app wires the orchestrator to its collaborators and runs it next
// to a front-end.
package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/yllada/ncconnect/bus"
	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
	"github.com/yllada/ncconnect/helper"
	"github.com/yllada/ncconnect/history"
	"github.com/yllada/ncconnect/keyring"
	"github.com/yllada/ncconnect/orchestrator"
	"github.com/yllada/ncconnect/portal"
)

// Options configures a Runtime.
type Options struct {
	// ConfigPath overrides the settings file location.
	ConfigPath string
	// HistoryPath overrides the history database location.
	HistoryPath string
	// Elevate starts the helpers through sudo with the admin password.
	Elevate bool
}

// Frontend is a user interface driving the surfaces. Run must be called
// on the main goroutine and return after Quit.
type Frontend interface {
	Run(ctx context.Context) error
	Quit()
}

// Surfaces are the front-end collaborators of the orchestrator.
type Surfaces struct {
	Tray           orchestrator.Tray
	SettingsDialog orchestrator.SettingsDialog
	ConnectDialog  orchestrator.ConnectDialog
	AdminDialog    orchestrator.AdminDialog
	SessionDialog  orchestrator.SessionDialog
}

// Runtime holds every long-lived collaborator.
type Runtime struct {
	Mailbox     *orchestrator.Mailbox
	Settings    *config.Store
	Credentials *keyring.Store
	Portal      *portal.Client
	Service     *helper.Supervisor
	UI          *helper.Supervisor
	Bus         *bus.Bus
	History     *history.Store

	exitOnce sync.Once
	exit     chan struct{}
	stopped  chan struct{}
	opts     []orchestrator.Option

	// quitTimeout is how long the front-end gets to return after the exit
	// sequence before forceExit ends the process.
	quitTimeout time.Duration
	forceExit   func()
}

// defaultQuitTimeout bounds the front-end shutdown after the helpers'
// grace period.
const defaultQuitTimeout = 3 * time.Second

func exitProcess() {
	common.LogWarn("Front-end did not stop, exiting")
	common.CloseLogger()
	os.Exit(0)
}

// New opens the settings, keyring and history stores and creates the
// portal client and helper supervisors.
func New(opts Options) (*Runtime, error) {
	path := opts.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	settings, err := config.Open(path)
	if err != nil {
		return nil, err
	}

	creds, err := keyring.Default()
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}

	historyPath := opts.HistoryPath
	if historyPath == "" {
		if historyPath, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	hist, err := history.Open(historyPath)
	if err != nil {
		return nil, err
	}

	mb := orchestrator.NewMailbox(common.MailboxSize)
	cfg := settings.Snapshot()

	rt := &Runtime{
		Mailbox:     mb,
		Settings:    settings,
		Credentials: creds,
		Portal:      portal.New(mb, settings),
		Service: helper.New(helper.Config{
			Role:    helper.RoleService,
			Binary:  cfg.ServiceBinary,
			Elevate: opts.Elevate,
		}),
		UI: helper.New(helper.Config{
			Role:     helper.RoleUI,
			Binary:   cfg.UIBinary,
			CertFile: cfg.CertFile,
			Elevate:  opts.Elevate,
			Events:   mb,
		}),
		Bus:     bus.New(),
		History:     hist,
		exit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		quitTimeout: defaultQuitTimeout,
		forceExit:   exitProcess,
	}
	return rt, nil
}

// Exit requests an orderly shutdown, as if the user chose Quit.
func (rt *Runtime) Exit() {
	rt.Mailbox.Post(common.EventExit)
}

// Run runs the dispatcher and the history recorder in the background and
// front on the calling goroutine. It returns once the exit sequence has
// finished or ctx is done. Run must be called at most once.
func (rt *Runtime) Run(ctx context.Context, front Frontend, s Surfaces) error {
	defer close(rt.stopped)

	d, err := orchestrator.New(rt.Mailbox, orchestrator.Deps{
		Settings:       rt.Settings,
		Client:         rt.Portal,
		Service:        rt.Service,
		UI:             rt.UI,
		Tray:           s.Tray,
		SettingsDialog: s.SettingsDialog,
		ConnectDialog:  s.ConnectDialog,
		AdminDialog:    s.AdminDialog,
		SessionDialog:  s.SessionDialog,
		Credentials:    rt.Credentials,
		Status:         rt.Bus,
	}, append([]orchestrator.Option{orchestrator.WithExitFunc(rt.finish)}, rt.opts...)...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statuses, err := rt.Bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Run(gctx)
	})
	g.Go(func() error {
		return history.NewRecorder(rt.History, rt.Settings.Host).Run(gctx, statuses)
	})
	go func() {
		select {
		case <-rt.exit:
		case <-gctx.Done():
		}
		front.Quit()
	}()

	common.LogInfo("Starting %s", common.AppName)
	runErr := front.Run(gctx)
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// finish ends the exit sequence once the helpers had their grace period.
// The front-end is asked to quit; if Run has not returned quitTimeout
// later, the process is terminated.
func (rt *Runtime) finish() {
	rt.exitOnce.Do(func() {
		common.LogInfo("Exiting")
		close(rt.exit)
		time.AfterFunc(rt.quitTimeout, func() {
			select {
			case <-rt.stopped:
			default:
				rt.forceExit()
			}
		})
	})
}

// Close releases the stores and the bus.
func (rt *Runtime) Close() error {
	var errs []error
	if err := rt.Bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.History.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Wrap(errs[0], "closing runtime")
	}
	return nil
}
