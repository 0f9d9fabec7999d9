package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyAndSpacingBounds(t *testing.T) {
	const (
		spacing  = 50 * time.Millisecond
		numTasks = 6
	)

	q := New(2, spacing, clock.New())
	defer q.Close()

	var (
		running int32
		peak    int32
		mu      sync.Mutex
		starts  []time.Time
	)

	ctx := context.Background()
	handles := make([]*Handle, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		handles = append(handles, q.Submit(ctx, func(ctx context.Context) (any, error) {
			now := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}))
	}

	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}

	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	require.Len(t, starts, numTasks)
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// Small tolerance for scheduling jitter between Take() returning
		// and the task recording its start time.
		require.GreaterOrEqual(t, gap, spacing-10*time.Millisecond,
			"tasks %d and %d started %v apart", i-1, i, gap)
	}
}

func TestHandleReceivesOwnOutcome(t *testing.T) {
	q := New(2, time.Millisecond, clock.New())
	defer q.Close()

	ctx := context.Background()
	boom := errors.New("boom")

	okHandle := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	failHandle := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, boom
	})

	res, err := okHandle.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", res)

	_, err = failHandle.Wait(ctx)
	require.ErrorIs(t, err, boom)
}

func TestFIFOAdmission(t *testing.T) {
	q := New(1, time.Millisecond, clock.New())
	defer q.Close()

	ctx := context.Background()
	var (
		mu    sync.Mutex
		order []int
	)

	handles := make([]*Handle, 0, 5)
	for i := 0; i < 5; i++ {
		handles = append(handles, q.Submit(ctx, func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}))
	}
	for _, h := range handles {
		_, err := h.Wait(ctx)
		require.NoError(t, err)
	}

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDoReturnsTypedResult(t *testing.T) {
	q := New(2, time.Millisecond, clock.New())
	defer q.Close()

	names, err := Do(context.Background(), q, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}
