package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
	"github.com/yllada/ncconnect/helper"
	"github.com/yllada/ncconnect/history"
	"github.com/yllada/ncconnect/keyring"
)

func (o *rootOptions) openSettings() (*config.Store, error) {
	path := o.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Open(path)
}

func (o *rootOptions) openHistory() (*history.Store, error) {
	path := o.historyPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func newStatusCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the portal and helper status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := o.openSettings()
			if err != nil {
				return err
			}
			cfg := settings.Snapshot()

			helpers := []*helper.Supervisor{
				helper.New(helper.Config{Role: helper.RoleService, Binary: cfg.ServiceBinary}),
				helper.New(helper.Config{Role: helper.RoleUI, Binary: cfg.UIBinary}),
			}

			var last *history.Entry
			if store, err := o.openHistory(); err == nil {
				if entries, err := store.Recent(cmd.Context(), 1); err == nil && len(entries) > 0 {
					last = &entries[0]
				}
				store.Close()
			}

			printStatus(cmd.OutOrStdout(), cfg, helpers, last)
			return nil
		},
	}
}

func printStatus(out io.Writer, cfg config.Config, helpers []*helper.Supervisor, last *history.Entry) {
	host := cfg.Host
	if host == "" {
		host = "(not configured)"
	}
	fmt.Fprintf(out, "Portal:   %s\n", host)
	if cfg.Username != "" {
		fmt.Fprintf(out, "Username: %s\n", cfg.Username)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HELPER\tBINARY\tSTATUS")
	fmt.Fprintln(w, "------\t------\t------")
	for _, h := range helpers {
		binary := cfg.ServiceBinary
		if h.Role() == helper.RoleUI {
			binary = cfg.UIBinary
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Role(), binary, h.Status())
	}
	w.Flush()

	if last != nil {
		fmt.Fprintf(out, "\nLast event: %s %s (%s ago)\n",
			last.Kind, last.Detail, formatDuration(time.Since(last.At)))
	}
}

func newHistoryCommand(o *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent session and tunnel events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func printHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tDETAIL")
	fmt.Fprintln(w, "----\t-----\t------")
	for _, e := range entries {
		detail := e.Detail
		if detail == "" {
			detail = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.At.Format("2006-01-02 15:04:05"), e.Kind, detail)
	}
	w.Flush()
}

func newForgetCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete every remembered portal password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := keyring.Default()
			if err != nil {
				return err
			}
			if err := creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Remembered passwords deleted")
			return nil
		},
	}
}

func newVersionCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s v%s\n", common.AppName, o.build.Version)
			if o.build.Time != "" && o.build.Time != "unknown" {
				fmt.Fprintf(out, "  Build:  %s\n", o.build.Time)
				fmt.Fprintf(out, "  Commit: %s\n", o.build.Commit)
			}
		},
	}
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
