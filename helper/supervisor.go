// Package helper supervises the Network Connect helper processes. The
// service helper (ncsvc) hosts the tunnel; the ui helper (ncui) attaches it
// to an authenticated portal session.
package helper

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/yllada/ncconnect/common"
)

// Re-exported for callers matching on helper failures.
var (
	ErrRunning    = common.ErrHelperRunning
	ErrNotRunning = common.ErrHelperNotRunning
	ErrNoSession  = common.ErrNoSession
)

// Role names a helper.
type Role string

const (
	RoleService Role = "service"
	RoleUI      Role = "ui"
)

// Status is the lifecycle state of a supervised helper.
type Status int

const (
	// StatusStopped indicates no helper process is attached.
	StatusStopped Status = iota
	// StatusRunning indicates the supervisor's own child is running.
	StatusRunning
	// StatusExternal indicates a helper started elsewhere is running.
	StatusExternal
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusRunning:
		return "Running"
	case StatusExternal:
		return "Running (external)"
	default:
		return "Unknown"
	}
}

// Config describes one helper.
type Config struct {
	Role   Role
	Binary string
	// CertFile is passed to the ui helper with -f.
	CertFile string
	// Elevate runs the helper through sudo, feeding the credential to
	// sudo's stdin.
	Elevate bool
	// Events receives EventHelperStarted/EventHelperStopped. Nil disables
	// notifications.
	Events common.EventSink
}

// Supervisor starts, watches and stops one helper process.
type Supervisor struct {
	cfg Config

	mu         sync.RWMutex
	cmd        *exec.Cmd
	done       chan struct{}
	startTime  time.Time
	host       string
	dsid       string
	logHandler func(string)
}

// New creates a supervisor for cfg.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Role returns the helper's role.
func (s *Supervisor) Role() Role {
	return s.cfg.Role
}

// SetSession records the portal host and DSID used by the next start.
func (s *Supervisor) SetSession(host, dsid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
	s.dsid = dsid
}

// SetLogHandler sets a handler receiving every output line.
func (s *Supervisor) SetLogHandler(handler func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logHandler = handler
}

// Status reports whether the helper runs, as our child or externally.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	own := s.cmd != nil
	s.mu.RUnlock()
	if own {
		return StatusRunning
	}
	if p, _ := findProcess(s.processName()); p != nil {
		return StatusExternal
	}
	return StatusStopped
}

// Uptime returns how long our child has been running.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cmd == nil {
		return 0
	}
	return time.Since(s.startTime)
}

// StartIfNotRunning starts the helper unless it is already running, either
// as our child or as a process with the helper's name.
func (s *Supervisor) StartIfNotRunning(credential string) error {
	switch st := s.Status(); st {
	case StatusRunning, StatusExternal:
		common.LogInfo("Helper %s: already running (%s)", s.cfg.Role, st)
		return nil
	}
	return s.Start(credential)
}

// Start launches the helper with credential on its stdin.
func (s *Supervisor) Start(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrRunning
	}

	args, err := s.args()
	if err != nil {
		return err
	}

	name := s.cfg.Binary
	if s.cfg.Elevate {
		args = append([]string{"-S", "-p", "", "--", s.cfg.Binary}, args...)
		name = "sudo"
	}
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "stderr pipe")
	}

	common.LogInfo("Helper %s: starting %s", s.cfg.Role, s.cfg.Binary)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s helper", s.cfg.Role)
	}
	common.LogInfo("Helper %s: process started with PID %d", s.cfg.Role, cmd.Process.Pid)

	go func() {
		defer stdin.Close()
		fmt.Fprintf(stdin, "%s\n", credential)
	}()

	var readers sync.WaitGroup
	readers.Add(2)
	go s.monitorOutput(stdout, &readers)
	go s.monitorOutput(stderr, &readers)

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done
	s.startTime = time.Now()
	go s.wait(cmd, done, &readers)
	return nil
}

// args builds the helper's command line. Callers must hold s.mu.
func (s *Supervisor) args() ([]string, error) {
	if s.cfg.Role != RoleUI {
		return nil, nil
	}
	if s.dsid == "" {
		return nil, ErrNoSession
	}

	args := []string{"-h", s.host, "-c", "DSID=" + s.dsid}
	if s.cfg.CertFile != "" {
		args = append(args, "-f", s.cfg.CertFile)
	}
	return args, nil
}

// wait reports the start, reaps the process and reports the stop.
func (s *Supervisor) wait(cmd *exec.Cmd, done chan struct{}, readers *sync.WaitGroup) {
	s.post(common.EventHelperStarted)

	readers.Wait()
	err := cmd.Wait()
	if err != nil {
		common.LogWarn("Helper %s: terminated with error: %v", s.cfg.Role, err)
	} else {
		common.LogInfo("Helper %s: terminated normally", s.cfg.Role)
	}

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd = nil
		s.done = nil
	}
	s.mu.Unlock()
	close(done)

	s.post(common.EventHelperStopped)
}

func (s *Supervisor) post(ev common.Event) {
	if s.cfg.Events != nil {
		s.cfg.Events.Post(ev)
	}
}

// monitorOutput logs the helper's output line by line.
func (s *Supervisor) monitorOutput(pipe io.Reader, readers *sync.WaitGroup) {
	defer readers.Done()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		common.LogDebug("%s: %s", s.processName(), line)

		s.mu.RLock()
		handler := s.logHandler
		s.mu.RUnlock()
		if handler != nil {
			handler(line)
		}
	}
}

// Terminate asks our child to stop. It does nothing when the helper is
// not running.
func (s *Supervisor) Terminate() error {
	s.mu.RLock()
	cmd := s.cmd
	s.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	// The helper runs in its own process group; signal all of it.
	common.LogInfo("Helper %s: terminating PID %d", s.cfg.Role, cmd.Process.Pid)
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return errors.Wrapf(err, "terminating %s helper", s.cfg.Role)
	}
	return nil
}

// TerminateIfRunning stops our child, or a helper with the same name that
// was started elsewhere.
func (s *Supervisor) TerminateIfRunning() error {
	s.mu.RLock()
	own := s.cmd != nil
	s.mu.RUnlock()
	if own {
		return s.Terminate()
	}

	p, err := findProcess(s.processName())
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}

	common.LogInfo("Helper %s: terminating external PID %d", s.cfg.Role, p.Pid)
	if err := p.Terminate(); err != nil {
		return errors.Wrapf(err, "terminating external %s helper", s.cfg.Role)
	}
	return nil
}

// Wait blocks until our child exits or the timeout elapses. It reports
// whether the helper is stopped.
func (s *Supervisor) Wait(timeout time.Duration) bool {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Supervisor) processName() string {
	return filepath.Base(s.cfg.Binary)
}

// findProcess returns a running process named name, ignoring ourselves.
func findProcess(name string) (*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, errors.Wrap(err, "listing processes")
	}

	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		n, err := p.Name()
		if err != nil || n != name {
			continue
		}
		if running, err := p.IsRunning(); err == nil && running {
			return p, nil
		}
	}
	return nil, nil
}
