package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/config"
	"github.com/yllada/ncconnect/helper"
	"github.com/yllada/ncconnect/history"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(BuildInfo{Version: "1.2.3", Time: "2026-01-02", Commit: "abc123"})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, common.AppName+" v1.2.3")
	assert.Contains(t, out, "Commit: abc123")
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), common.HistoryFileName)
	store, err := history.Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	require.NoError(t, store.RecordAt(ctx, base, history.KindSessionStarted, "host=vpn.example.com"))
	require.NoError(t, store.RecordAt(ctx, base.Add(time.Minute), history.KindTunnelUp, ""))
	require.NoError(t, store.Close())

	out := execute(t, "--history", path, "history", "-n", "1")
	assert.Contains(t, out, string(history.KindTunnelUp))
	assert.NotContains(t, out, string(history.KindSessionStarted))

	out = execute(t, "--history", path, "history")
	assert.Contains(t, out, "host=vpn.example.com")
	assert.Contains(t, out, "2026-03-01 09:01:00")
}

func TestPrintHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	printHistory(&out, nil)
	assert.Equal(t, "No history yet.\n", out.String())
}

func TestPrintStatus(t *testing.T) {
	cfg := config.Config{
		Host:          "vpn.example.com",
		Username:      "alice",
		ServiceBinary: "/nonexistent/ncsvc-test",
		UIBinary:      "/nonexistent/ncui-test",
	}
	helpers := []*helper.Supervisor{
		helper.New(helper.Config{Role: helper.RoleService, Binary: cfg.ServiceBinary}),
		helper.New(helper.Config{Role: helper.RoleUI, Binary: cfg.UIBinary}),
	}
	last := &history.Entry{At: time.Now().Add(-90 * time.Second), Kind: history.KindTunnelDown}

	var out bytes.Buffer
	printStatus(&out, cfg, helpers, last)

	s := out.String()
	assert.Contains(t, s, "Portal:   vpn.example.com")
	assert.Contains(t, s, "Username: alice")
	assert.Contains(t, s, "/nonexistent/ncui-test")
	assert.Contains(t, s, helper.StatusStopped.String())
	assert.Contains(t, s, "Last event: tunnel_down")
}

func TestPrintStatus_NotConfigured(t *testing.T) {
	var out bytes.Buffer
	printStatus(&out, config.Config{}, nil, nil)
	assert.Contains(t, out.String(), "(not configured)")
	assert.NotContains(t, out.String(), "Username:")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 2m 3s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
