package history

import (
	"context"
	"fmt"

	"github.com/yllada/ncconnect/common"
)

// Recorder turns a stream of status snapshots into history entries.
type Recorder struct {
	store *Store
	host  func() string
	prev  common.Status
}

// NewRecorder creates a recorder writing to store. host, if set, names
// the portal in entry details.
func NewRecorder(store *Store, host func() string) *Recorder {
	return &Recorder{store: store, host: host}
}

// Run consumes statuses until the channel closes or ctx is done.
func (r *Recorder) Run(ctx context.Context, statuses <-chan common.Status) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-statuses:
			if !ok {
				return nil
			}
			r.observe(ctx, s)
		}
	}
}

func (r *Recorder) observe(ctx context.Context, s common.Status) {
	for _, kind := range transitions(r.prev, s) {
		if err := r.store.RecordAt(ctx, s.At, kind, r.detail()); err != nil {
			common.LogWarn("History: %v", err)
		}
	}
	r.prev = s
}

func (r *Recorder) detail() string {
	if r.host == nil {
		return ""
	}
	if h := r.host(); h != "" {
		return fmt.Sprintf("host=%s", h)
	}
	return ""
}

// transitions lists the entries implied by moving from prev to cur, in
// the order they happened.
func transitions(prev, cur common.Status) []Kind {
	var kinds []Kind
	if !prev.SessionActive && cur.SessionActive {
		kinds = append(kinds, KindSessionStarted)
	}
	if !prev.Connected && cur.Connected {
		kinds = append(kinds, KindTunnelUp)
	}
	if prev.Connected && !cur.Connected {
		kinds = append(kinds, KindTunnelDown)
	}
	if prev.SessionActive && !cur.SessionActive {
		kinds = append(kinds, KindSessionEnded)
	}
	return kinds
}
