package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/yllada/ncconnect/common"
	"github.com/yllada/ncconnect/orchestrator"
)

type fakeFront struct {
	quit     chan struct{}
	quitOnce sync.Once
	started  chan struct{}
}

func newFakeFront() *fakeFront {
	return &fakeFront{quit: make(chan struct{}), started: make(chan struct{})}
}

func (f *fakeFront) Run(ctx context.Context) error {
	close(f.started)
	<-f.quit
	return nil
}

func (f *fakeFront) Quit() {
	f.quitOnce.Do(func() { close(f.quit) })
}

type fakeSurfaces struct {
	mu     sync.Mutex
	hidden bool
}

func (s *fakeSurfaces) ShowMessage(string) {}
func (s *fakeSurfaces) SetConnected(bool)  {}
func (s *fakeSurfaces) EnableSessionInfo() {}
func (s *fakeSurfaces) MakeVisible()       {}
func (s *fakeSurfaces) SetDSID(string)     {}
func (s *fakeSurfaces) Password() string   { return "" }

func (s *fakeSurfaces) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = true
}

func (s *fakeSurfaces) isHidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

type fakeConnect struct{}

func (fakeConnect) MakeVisible(common.DialogView) {}
func (fakeConnect) SetVisible(bool)               {}
func (fakeConnect) Username() string              { return "" }
func (fakeConnect) Password() string              { return "" }
func (fakeConnect) Realm() string                 { return "" }
func (fakeConnect) OneTimePin() string            { return "" }
func (fakeConnect) SetRealms([]string)            {}
func (fakeConnect) Prefill(string, string)        {}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	gokeyring.MockInit()

	dir := t.TempDir()
	rt, err := New(Options{
		ConfigPath:  filepath.Join(dir, common.ConfigFileName),
		HistoryPath: filepath.Join(dir, common.HistoryFileName),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	// Skip the helper grace period.
	rt.opts = append(rt.opts, orchestrator.WithAfterFunc(func(_ time.Duration, fn func()) { fn() }))
	return rt
}

func TestNew_WiresCollaborators(t *testing.T) {
	rt := newTestRuntime(t)

	assert.NotNil(t, rt.Portal)
	assert.Equal(t, "service", string(rt.Service.Role()))
	assert.Equal(t, "ui", string(rt.UI.Role()))
	assert.FileExists(t, rt.Settings.Path(), "defaults are written on first start")
}

func TestRun_ExitSequence(t *testing.T) {
	rt := newTestRuntime(t)
	front := newFakeFront()
	s := &fakeSurfaces{}

	done := make(chan error, 1)
	go func() {
		done <- rt.Run(context.Background(), front, Surfaces{
			Tray:           s,
			SettingsDialog: s,
			ConnectDialog:  fakeConnect{},
			AdminDialog:    s,
			SessionDialog:  s,
		})
	}()

	<-front.started
	rt.Exit()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop after exit")
	}
	assert.True(t, s.isHidden(), "the tray is hidden during exit")
}

func TestRun_ContextCancel(t *testing.T) {
	rt := newTestRuntime(t)
	front := newFakeFront()
	s := &fakeSurfaces{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rt.Run(ctx, front, Surfaces{
			Tray:           s,
			SettingsDialog: s,
			ConnectDialog:  fakeConnect{},
			AdminDialog:    s,
			SessionDialog:  s,
		})
	}()

	<-front.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop after cancel")
	}
}

func TestRun_MissingSurfaces(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Run(context.Background(), newFakeFront(), Surfaces{})
	assert.Error(t, err)
}

// stuckFront ignores Quit, like a toolkit loop that never returns.
type stuckFront struct {
	started chan struct{}
	release chan struct{}
}

func (f *stuckFront) Run(ctx context.Context) error {
	close(f.started)
	<-f.release
	return nil
}

func (f *stuckFront) Quit() {}

func TestRun_ForcesExitWhenFrontendHangs(t *testing.T) {
	rt := newTestRuntime(t)
	front := &stuckFront{started: make(chan struct{}), release: make(chan struct{})}
	forced := make(chan struct{})
	rt.quitTimeout = 50 * time.Millisecond
	rt.forceExit = func() {
		close(forced)
		close(front.release)
	}
	s := &fakeSurfaces{}

	done := make(chan error, 1)
	go func() {
		done <- rt.Run(context.Background(), front, Surfaces{
			Tray:           s,
			SettingsDialog: s,
			ConnectDialog:  fakeConnect{},
			AdminDialog:    s,
			SessionDialog:  s,
		})
	}()

	<-front.started
	rt.Exit()

	select {
	case <-forced:
	case <-time.After(10 * time.Second):
		t.Fatal("process was not terminated after the front-end hung")
	}
	require.NoError(t, <-done)
}

func TestRun_NoForcedExitAfterCleanStop(t *testing.T) {
	rt := newTestRuntime(t)
	rt.quitTimeout = 20 * time.Millisecond
	rt.forceExit = func() { t.Error("process terminated after a clean stop") }

	front := newFakeFront()
	s := &fakeSurfaces{}
	done := make(chan error, 1)
	go func() {
		done <- rt.Run(context.Background(), front, Surfaces{
			Tray:           s,
			SettingsDialog: s,
			ConnectDialog:  fakeConnect{},
			AdminDialog:    s,
			SessionDialog:  s,
		})
	}()

	<-front.started
	rt.Exit()
	require.NoError(t, <-done)

	// Give the quit timer a chance to fire.
	time.Sleep(100 * time.Millisecond)
}
