// Package cli provides the command-line entry points of NC Connect: the
// desktop front-end, the terminal front-end and a few inspection commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yllada/ncconnect/app"
	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/tui"
	"github.com/yllada/ncconnect/ui"
)

// BuildInfo is injected by main.
type BuildInfo struct {
	Version string
	Time    string
	Commit  string
}

type rootOptions struct {
	build       BuildInfo
	verbose     bool
	configPath  string
	historyPath string
	elevate     bool
}

func (o *rootOptions) appOptions() app.Options {
	return app.Options{
		ConfigPath:  o.configPath,
		HistoryPath: o.historyPath,
		Elevate:     o.elevate,
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	o := &rootOptions{build: build}

	root := &cobra.Command{
		Use:           "ncconnect",
		Short:         "Sign in to a Network Connect VPN portal and run its tunnel helpers",
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.initLogger(cmd.Name() == "tui")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			common.CloseLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDesktop(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&o.configPath, "config", "", "Settings file (default: user config dir)")
	flags.StringVar(&o.historyPath, "history", "", "History database (default: user data dir)")
	o.addRunFlags(root.Flags())

	root.AddCommand(
		newTUICommand(o),
		newStatusCommand(o),
		newHistoryCommand(o),
		newForgetCommand(o),
		newVersionCommand(o),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(build BuildInfo) int {
	if err := NewRootCommand(build).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// initLogger sets up file logging. The terminal front-end owns the
// screen, so its console output is discarded.
func (o *rootOptions) initLogger(quietConsole bool) error {
	level := common.LevelInfo
	if o.verbose {
		level = common.LevelDebug
	}

	cfg := common.LogConfig{
		Level:      level,
		EnableFile: true,
	}
	if quietConsole {
		cfg.Console = io.Discard
	}
	if err := common.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	return nil
}

func (o *rootOptions) runDesktop(ctx context.Context) error {
	rt, err := app.New(o.appOptions())
	if err != nil {
		return err
	}
	defer rt.Close()

	front := ui.NewApp(rt.Mailbox, rt.Settings, o.build.Version)
	return run(ctx, rt, front, app.Surfaces{
		Tray:           front.Tray,
		SettingsDialog: front.Settings,
		ConnectDialog:  front.Connect,
		AdminDialog:    front.Admin,
		SessionDialog:  front.Session,
	})
}

func newTUICommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.New(o.appOptions())
			if err != nil {
				return err
			}
			defer rt.Close()

			statuses, err := rt.Bus.Subscribe(cmd.Context())
			if err != nil {
				return err
			}
			front := tui.New(rt.Mailbox, rt.Settings, tui.WithStatus(statuses))
			return run(cmd.Context(), rt, front, app.Surfaces{
				Tray:           front.Tray,
				SettingsDialog: front.Settings,
				ConnectDialog:  front.Connect,
				AdminDialog:    front.Admin,
				SessionDialog:  front.Session,
			})
		},
	}
	o.addRunFlags(cmd.Flags())
	return cmd
}

// addRunFlags adds the flags of the commands that start the helpers.
func (o *rootOptions) addRunFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&o.elevate, "elevate", false, "Start the helpers through sudo")
}

// run runs rt with front until the exit sequence completes. The first
// SIGINT or SIGTERM starts the exit sequence; a second one aborts it.
func run(ctx context.Context, rt *app.Runtime, front app.Frontend, s app.Surfaces) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			common.LogInfo("Received signal %v, shutting down", sig)
			rt.Exit()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigChan:
			common.LogWarn("Second signal, aborting")
			cancel()
		case <-ctx.Done():
		}
	}()

	return rt.Run(ctx, front, s)
}
