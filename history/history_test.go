package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ncconnect/common"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", common.HistoryFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordAt(ctx, base, KindSessionStarted, "host=a"))
	require.NoError(t, s.RecordAt(ctx, base.Add(time.Second), KindTunnelUp, ""))
	require.NoError(t, s.RecordAt(ctx, base.Add(2*time.Second), KindTunnelDown, ""))

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, KindTunnelDown, got[0].Kind)
	assert.Equal(t, KindTunnelUp, got[1].Kind)
	assert.True(t, got[1].At.Equal(base.Add(time.Second)))

	all, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "host=a", all[2].Detail)

	none, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), common.HistoryFileName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), KindSessionStarted, ""))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur common.Status
		want      []Kind
	}{
		{"no change", common.Status{}, common.Status{Busy: true}, nil},
		{"login", common.Status{}, common.Status{SessionActive: true}, []Kind{KindSessionStarted}},
		{"tunnel up", common.Status{SessionActive: true}, common.Status{SessionActive: true, Connected: true}, []Kind{KindTunnelUp}},
		{
			"disconnect",
			common.Status{SessionActive: true, Connected: true},
			common.Status{},
			[]Kind{KindTunnelDown, KindSessionEnded},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transitions(tt.prev, tt.cur))
		})
	}
}

func TestRecorder_Run(t *testing.T) {
	s := openStore(t)
	r := NewRecorder(s, func() string { return "vpn.example.com" })

	now := time.Now()
	ch := make(chan common.Status, 4)
	ch <- common.Status{View: common.ViewConnecting, At: now}
	ch <- common.Status{SessionActive: true, At: now.Add(time.Second)}
	ch <- common.Status{SessionActive: true, Connected: true, At: now.Add(2 * time.Second)}
	ch <- common.Status{At: now.Add(3 * time.Second)}
	close(ch)

	require.NoError(t, r.Run(context.Background(), ch))

	got, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	var kinds []Kind
	for _, e := range got {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, "host=vpn.example.com", e.Detail)
	}
	assert.Equal(t, []Kind{KindSessionEnded, KindTunnelDown, KindTunnelUp, KindSessionStarted}, kinds)
}
