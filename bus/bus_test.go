package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ncconnect/common"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	want := []common.Status{
		{Page: common.PageLogin, View: common.ViewLogin, Busy: true},
		{Page: common.PageLoginComplete, Connected: true, SessionActive: true},
	}
	for _, s := range want {
		require.NoError(t, b.Publish(s))
	}

	for _, w := range want {
		select {
		case got := <-ch:
			assert.True(t, w.SameAs(got), "got %+v, want %+v", got, w)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for status")
		}
	}
}

func TestSubscribe_ClosedOnCancel(t *testing.T) {
	b := New()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDecodeStatus_RejectsOtherTypes(t *testing.T) {
	_, err := decodeStatus([]byte(`{"type":"other","payload":{}}`))
	assert.Error(t, err)

	_, err = decodeStatus([]byte(`not json`))
	assert.Error(t, err)
}

func TestPublish_PreservesOrder(t *testing.T) {
	b := New()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	const n = 1000
	received := make(chan []time.Time, 1)
	go func() {
		var got []time.Time
		for s := range ch {
			got = append(got, s.At)
			if len(got) == n {
				break
			}
		}
		received <- got
	}()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(common.Status{At: base.Add(time.Duration(i) * time.Millisecond), Busy: i%2 == 0}))
	}

	select {
	case got := <-received:
		require.Len(t, got, n)
		for i := 1; i < n; i++ {
			if !got[i].After(got[i-1]) {
				t.Fatalf("status %d delivered out of order: %v after %v", i, got[i], got[i-1])
			}
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for statuses")
	}
}
