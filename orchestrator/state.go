package orchestrator

import "github.com/yllada/ncconnect/common"

// TaskKind identifies a background task.
type TaskKind int

const (
	// TaskConnect loads the portal's start page.
	TaskConnect TaskKind = iota
	// TaskFetchRealms reads the realm choices of the login page.
	TaskFetchRealms
	// TaskLogin submits username, password and realm.
	TaskLogin
	// TaskSubmitPin submits the one-time PIN.
	TaskSubmitPin
	// TaskSubmitConfirm accepts the portal's continue-session page.
	TaskSubmitConfirm
)

// String returns the task name used in logs.
func (k TaskKind) String() string {
	switch k {
	case TaskConnect:
		return "connect"
	case TaskFetchRealms:
		return "fetch-realms"
	case TaskLogin:
		return "login"
	case TaskSubmitPin:
		return "submit-pin"
	case TaskSubmitConfirm:
		return "submit-confirm"
	default:
		return "unknown"
	}
}

// guarded reports whether the task is a user-initiated handshake step.
// At most one guarded task is in flight at a time.
func (k TaskKind) guarded() bool {
	return k == TaskConnect || k == TaskLogin || k == TaskSubmitPin
}

// TaskResult is delivered to the mailbox when a background task ends.
type TaskResult struct {
	ID   string
	Kind TaskKind
	// Epoch is the session epoch the task was started in.
	Epoch  uint64
	Realms []string
	Err    error
}

type taskSet uint8

func (s taskSet) has(k TaskKind) bool       { return s&(1<<uint(k)) != 0 }
func (s taskSet) with(k TaskKind) taskSet    { return s | 1<<uint(k) }
func (s taskSet) without(k TaskKind) taskSet { return s &^ (1 << uint(k)) }

// State is the workflow state owned by the dispatch goroutine.
type State struct {
	// View is the connect dialog view last requested.
	View common.DialogView
	// Connected mirrors the tray: true while the ui helper runs.
	Connected bool
	// SessionActive is set once a DSID has been propagated and cleared
	// when the portal session is dropped.
	SessionActive bool
	// Exiting is set once the exit sequence has started.
	Exiting bool

	inFlight taskSet
	// epoch advances every time the portal session is dropped. Results
	// of tasks started in an earlier epoch are ignored.
	epoch uint64
}

// Busy reports whether a guarded handshake task is in flight.
func (s State) Busy() bool {
	for _, k := range []TaskKind{TaskConnect, TaskLogin, TaskSubmitPin} {
		if s.inFlight.has(k) {
			return true
		}
	}
	return false
}

// Epoch returns the current session epoch.
func (s State) Epoch() uint64 {
	return s.epoch
}

// Running reports whether a task of kind k is in flight.
func (s State) Running(k TaskKind) bool {
	return s.inFlight.has(k)
}
