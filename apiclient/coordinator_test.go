/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type admitResult struct {
	gen uint64
	err error
}

func TestCallQueue(t *testing.T) {
	q := newCallQueue()
	a, b, c := newQueuedCall(PendingAdmission), newQueuedCall(PendingAdmission), newQueuedCall(PendingCredential)
	q.pushBack(a)
	q.pushBack(b)
	q.pushFront(c)
	require.Equal(t, 3, q.len())

	q.abandon(b)
	q.abandon(b)
	require.Equal(t, 2, q.len())

	got, ok := q.popFront()
	require.True(t, ok)
	require.Same(t, c, got)
	require.True(t, got.settled)

	rest := q.drainAll()
	require.Len(t, rest, 1)
	require.Same(t, a, rest[0])
	require.Equal(t, 0, q.len())

	_, ok = q.popFront()
	require.False(t, ok)
}

func TestCallKind_String(t *testing.T) {
	require.Equal(t, "pending admission", PendingAdmission.String())
	require.Equal(t, "pending credential", PendingCredential.String())
	require.Equal(t, "unknown", CallKind(42).String())
}

func TestCoordinator_AdmitUpToLimit(t *testing.T) {
	c := newCoordinator(coordinatorOpts{limit: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.admit(ctx)
		require.NoError(t, err)
	}

	admitted := make(chan admitResult, 1)
	go func() {
		gen, err := c.admit(ctx)
		admitted <- admitResult{gen, err}
	}()
	require.Eventually(t, func() bool { return c.stats().queued == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 2, c.stats().inFlight)

	c.release()
	res := <-admitted
	require.NoError(t, res.err)
	require.Equal(t, coordinatorStats{inFlight: 2}, c.stats())

	c.release()
	c.release()
	c.release()
	require.Equal(t, coordinatorStats{}, c.stats())
}

func TestCoordinator_RefreshSingleFlight(t *testing.T) {
	refreshCalls := atomic.NewInt32(0)
	gate := make(chan struct{})
	c := newCoordinator(coordinatorOpts{
		limit: 3,
		refresh: func(ctx context.Context) error {
			refreshCalls.Inc()
			<-gate
			return nil
		},
	})
	ctx := context.Background()

	gens := make([]uint64, 3)
	for i := range gens {
		gen, err := c.admit(ctx)
		require.NoError(t, err)
		gens[i] = gen
	}

	results := make(chan admitResult, 3)
	unauthorized := func(gen uint64) {
		newGen, err := c.unauthorized(ctx, gen)
		results <- admitResult{newGen, err}
	}
	go unauthorized(gens[0])
	require.Eventually(t, func() bool { return c.stats().refreshing }, time.Second, time.Millisecond)
	go unauthorized(gens[1])
	go unauthorized(gens[2])
	require.Eventually(t, func() bool { return c.stats().queued == 3 }, time.Second, time.Millisecond)
	require.Equal(t, 0, c.stats().inFlight)

	// Admission is closed while refreshing even though there is headroom.
	blocked := make(chan admitResult, 1)
	go func() {
		gen, err := c.admit(ctx)
		blocked <- admitResult{gen, err}
	}()
	require.Eventually(t, func() bool { return c.stats().queued == 4 }, time.Second, time.Millisecond)

	close(gate)
	for i := 0; i < 3; i++ {
		res := <-results
		require.NoError(t, res.err)
		require.Greater(t, res.gen, gens[0])
	}
	require.EqualValues(t, 1, refreshCalls.Load())

	c.release()
	res := <-blocked
	require.NoError(t, res.err)
	require.Equal(t, coordinatorStats{inFlight: 3}, c.stats())
}

func TestCoordinator_RefreshFailureDiscardsQueue(t *testing.T) {
	refreshErr := errors.New("refresh rejected")
	gate := make(chan struct{})
	failures := atomic.NewInt32(0)
	failureErr := atomic.NewError(nil)
	c := newCoordinator(coordinatorOpts{
		limit: 2,
		refresh: func(ctx context.Context) error {
			<-gate
			return refreshErr
		},
		onRefreshFailure: func(err error) {
			failureErr.Store(err)
			failures.Inc()
		},
	})
	ctx := context.Background()

	gen, err := c.admit(ctx)
	require.NoError(t, err)

	results := make(chan admitResult, 3)
	go func() {
		newGen, err := c.unauthorized(ctx, gen)
		results <- admitResult{newGen, err}
	}()
	require.Eventually(t, func() bool { return c.stats().refreshing }, time.Second, time.Millisecond)
	for i := 0; i < 2; i++ {
		go func() {
			newGen, err := c.admit(ctx)
			results <- admitResult{newGen, err}
		}()
	}
	require.Eventually(t, func() bool { return c.stats().queued == 3 }, time.Second, time.Millisecond)

	close(gate)
	for i := 0; i < 3; i++ {
		res := <-results
		var refreshFailureErr *RefreshFailureError
		require.ErrorAs(t, res.err, &refreshFailureErr)
		require.ErrorIs(t, res.err, refreshErr)
	}
	require.EqualValues(t, 1, failures.Load())
	require.ErrorIs(t, failureErr.Load(), refreshErr)
	require.Equal(t, coordinatorStats{}, c.stats())
}

func TestCoordinator_UnauthorizedAfterRefreshFailure(t *testing.T) {
	refreshErr := errors.New("refresh rejected")
	refreshCalls := atomic.NewInt32(0)
	c := newCoordinator(coordinatorOpts{
		limit: 2,
		refresh: func(ctx context.Context) error {
			refreshCalls.Inc()
			return refreshErr
		},
	})
	ctx := context.Background()

	first, err := c.admit(ctx)
	require.NoError(t, err)
	second, err := c.admit(ctx)
	require.NoError(t, err)

	_, err = c.unauthorized(ctx, first)
	require.ErrorIs(t, err, refreshErr)

	// The second call was on the wire while the refresh failed.
	_, err = c.unauthorized(ctx, second)
	var refreshFailureErr *RefreshFailureError
	require.ErrorAs(t, err, &refreshFailureErr)
	require.ErrorIs(t, err, refreshErr)
	require.EqualValues(t, 1, refreshCalls.Load())
	require.Equal(t, coordinatorStats{}, c.stats())

	// A new credential allows refreshing again.
	c.credentialChanged()
	gen, err := c.admit(ctx)
	require.NoError(t, err)
	_, err = c.unauthorized(ctx, gen)
	require.ErrorIs(t, err, refreshErr)
	require.EqualValues(t, 2, refreshCalls.Load())
}

func TestCoordinator_StaleUnauthorized(t *testing.T) {
	refreshCalls := atomic.NewInt32(0)
	c := newCoordinator(coordinatorOpts{
		limit: 1,
		refresh: func(ctx context.Context) error {
			refreshCalls.Inc()
			return nil
		},
	})
	ctx := context.Background()

	gen, err := c.admit(ctx)
	require.NoError(t, err)
	c.credentialChanged()

	newGen, err := c.unauthorized(ctx, gen)
	require.NoError(t, err)
	require.Equal(t, gen+1, newGen)
	require.EqualValues(t, 0, refreshCalls.Load())
	require.Equal(t, coordinatorStats{inFlight: 1}, c.stats())
}

func TestCoordinator_QueueWaitTimeout(t *testing.T) {
	c := newCoordinator(coordinatorOpts{limit: 1, queueWaitTimeout: 30 * time.Millisecond})
	ctx := context.Background()

	_, err := c.admit(ctx)
	require.NoError(t, err)

	startTime := time.Now()
	_, err = c.admit(ctx)
	var timeoutErr *QueueWaitTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, PendingAdmission, timeoutErr.Kind)
	require.GreaterOrEqual(t, time.Since(startTime), 30*time.Millisecond)
	require.Equal(t, coordinatorStats{inFlight: 1}, c.stats())

	c.release()
	require.Equal(t, coordinatorStats{}, c.stats())
	_, err = c.admit(ctx)
	require.NoError(t, err)
}

func TestCoordinator_ContextCanceledWhileQueued(t *testing.T) {
	c := newCoordinator(coordinatorOpts{limit: 1})

	_, err := c.admit(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.admit(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.stats().queued == 1 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, coordinatorStats{inFlight: 1}, c.stats())

	c.release()
	require.Equal(t, coordinatorStats{}, c.stats())
}
