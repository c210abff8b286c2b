// Package wait provides the polling primitive every wait-style helper is
// built on: evaluate a condition until it succeeds or a deadline passes.
package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/browser"
	"github.com/pookie-qa/pookie-runner/pkg/core"
)

// Interval bounds. Anything outside is clamped.
const (
	DefaultInterval = 200 * time.Millisecond
	MinInterval     = 150 * time.Millisecond
	MaxInterval     = 300 * time.Millisecond
)

// Options configures a single poll.
type Options struct {
	Description string        // Used verbatim in the NotFound error
	Timeout     time.Duration // Total budget; <= 0 evaluates the condition once
	Interval    time.Duration // Pause between attempts; 0 means DefaultInterval
}

func (o Options) interval() time.Duration {
	switch {
	case o.Interval == 0:
		return DefaultInterval
	case o.Interval < MinInterval:
		return MinInterval
	case o.Interval > MaxInterval:
		return MaxInterval
	default:
		return o.Interval
	}
}

// Condition reports (value, true, nil) on success and (_, false, nil) for
// "not yet". A stale-element error is treated as "not yet"; any other error
// aborts the poll.
type Condition[T any] func(ctx context.Context) (T, bool, error)

// Result is the outcome of a poll.
type Result[T any] struct {
	Value    T
	Attempts int
	Elapsed  time.Duration
}

// Poll runs cond until it succeeds, returning its value.
func Poll[T any](ctx context.Context, opts Options, cond Condition[T]) (T, error) {
	res, err := PollResult(ctx, opts, cond)
	return res.Value, err
}

// PollResult is Poll with attempt accounting.
func PollResult[T any](ctx context.Context, opts Options, cond Condition[T]) (Result[T], error) {
	var res Result[T]
	interval := opts.interval()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	for {
		res.Attempts++
		v, ok, err := cond(ctx)
		if err != nil && !browser.IsStale(err) {
			res.Elapsed = time.Since(start)
			return res, err
		}
		if ok && err == nil {
			res.Value = v
			res.Elapsed = time.Since(start)
			return res, nil
		}

		now := time.Now()
		if !now.Before(deadline) {
			res.Elapsed = now.Sub(start)
			return res, core.NotFound(opts.Description, opts.Timeout)
		}

		pause := interval
		if remaining := deadline.Sub(now); remaining < pause {
			pause = remaining
		}
		if err := Sleep(ctx, pause); err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("waiting for '%s': %w", opts.Description, err)
		}
	}
}

// Until polls a boolean condition.
func Until(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	_, err := Poll(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
