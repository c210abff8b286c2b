package wait

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
)

func TestPoll_SucceedsOnThirdTick(t *testing.T) {
	attempts := 0
	res, err := PollResult(context.Background(), Options{
		Description: "third tick",
		Timeout:     2 * time.Second,
		Interval:    200 * time.Millisecond,
	}, func(context.Context) (string, bool, error) {
		attempts++
		if attempts < 3 {
			return "", false, nil
		}
		return "located", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "located", res.Value)
	assert.Equal(t, attempts, res.Attempts)
	assert.GreaterOrEqual(t, res.Attempts, 3)
	assert.LessOrEqual(t, res.Attempts, 11)
}

func TestPoll_DelayedConditionSucceeds(t *testing.T) {
	ready := time.Now().Add(450 * time.Millisecond)
	v, err := Poll(context.Background(), Options{Description: "delayed", Timeout: 2 * time.Second},
		func(context.Context) (int, bool, error) {
			return 42, time.Now().After(ready), nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPoll_TimeoutFidelity(t *testing.T) {
	timeout := 600 * time.Millisecond
	start := time.Now()
	res, err := PollResult(context.Background(), Options{Description: "never", Timeout: timeout},
		func(context.Context) (struct{}, bool, error) {
			return struct{}{}, false, nil
		})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "never")
	assert.Contains(t, err.Error(), timeout.String())
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+400*time.Millisecond)
	assert.LessOrEqual(t, res.Attempts, int(timeout/MinInterval)+2)
}

func TestPoll_ZeroTimeoutEvaluatesOnce(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), Options{Description: "once"}, func(context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPoll_StaleIsRetried(t *testing.T) {
	calls := 0
	v, err := Poll(context.Background(), Options{Description: "stale", Timeout: time.Second},
		func(context.Context) (string, bool, error) {
			calls++
			if calls == 1 {
				return "", false, fmt.Errorf("read row: %w", browser.ErrStale)
			}
			return "fresh", true, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 2, calls)
}

func TestPoll_OtherErrorsAbort(t *testing.T) {
	boom := errors.New("session deleted")
	calls := 0
	_, err := Poll(context.Background(), Options{Description: "boom", Timeout: time.Second},
		func(context.Context) (int, bool, error) {
			calls++
			return 0, false, boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPoll_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Until(ctx, Options{Description: "cancelled", Timeout: 5 * time.Second}, func(context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOptions_IntervalAlwaysClamped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := time.Duration(rapid.Int64Range(0, int64(5*time.Second)).Draw(t, "interval"))
		got := Options{Interval: d}.interval()
		if got < MinInterval || got > MaxInterval {
			t.Fatalf("interval(%v) = %v, outside [%v, %v]", d, got, MinInterval, MaxInterval)
		}
		if d >= MinInterval && d <= MaxInterval && got != d {
			t.Fatalf("interval(%v) = %v, in-range value was altered", d, got)
		}
	})
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
