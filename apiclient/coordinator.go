/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"
	"sync"
	"time"

	"github.com/acronis/go-adminclient/log"
)

// Default values of the coordinator timeouts.
const (
	DefaultQueueWaitTimeout = 30 * time.Second
	DefaultRefreshTimeout   = 10 * time.Second
)

// RefreshFunc obtains a new credential pair and stores it.
type RefreshFunc func(ctx context.Context) error

type coordinatorOpts struct {
	limit            int
	queueWaitTimeout time.Duration
	refreshTimeout   time.Duration
	refresh          RefreshFunc
	onRefreshFailure func(err error)
	metrics          MetricsCollector
	logger           log.FieldLogger
}

// coordinator owns admission, the call queue and the refresh state.
// All of them are guarded by mu, so every check-and-mutate is a single critical section.
type coordinator struct {
	mu         sync.Mutex
	adm        admission
	queue      *callQueue
	refreshing bool
	generation uint64

	// terminated holds the failure of the last refresh until the credential changes again.
	terminated error

	opts coordinatorOpts
}

func newCoordinator(opts coordinatorOpts) *coordinator {
	if opts.metrics == nil {
		opts.metrics = disabledMetrics{}
	}
	if opts.logger == nil {
		opts.logger = log.NewDisabledLogger()
	}
	if opts.onRefreshFailure == nil {
		opts.onRefreshFailure = func(error) {}
	}
	if opts.refreshTimeout <= 0 {
		opts.refreshTimeout = DefaultRefreshTimeout
	}
	return &coordinator{adm: newAdmission(opts.limit), queue: newCallQueue(), opts: opts}
}

// admit blocks until the call holds an in-flight slot.
// It returns the credential generation the call must be dispatched with.
func (c *coordinator) admit(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if !c.refreshing && c.queue.len() == 0 && c.adm.hasHeadroom() {
		c.adm.acquire()
		gen := c.generation
		c.reportLocked()
		c.mu.Unlock()
		return gen, nil
	}
	qc := newQueuedCall(PendingAdmission)
	c.queue.pushBack(qc)
	c.reportLocked()
	c.mu.Unlock()

	return c.wait(ctx, qc)
}

// release gives back the slot of a finished call and resumes parked calls while there is headroom.
func (c *coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adm.release()
	c.drainLocked()
	c.reportLocked()
}

// unauthorized is called by an admitted call that got 401 with the credential of generation gen.
// The call's slot is released and the call is parked until a fresh credential is available.
// Only the first 401 of a window starts a refresh, its call goes to the head of the queue.
// After a failed refresh the call fails at once until the credential changes.
func (c *coordinator) unauthorized(ctx context.Context, gen uint64) (uint64, error) {
	qc := newQueuedCall(PendingCredential)

	c.mu.Lock()
	c.adm.release()
	if c.terminated != nil {
		err := c.terminated
		c.drainLocked()
		c.reportLocked()
		c.mu.Unlock()
		return 0, err
	}
	switch {
	case c.refreshing:
		c.queue.pushBack(qc)
	case gen != c.generation:
		// The credential was rotated while the call was on the wire.
		c.queue.pushFront(qc)
	default:
		c.refreshing = true
		c.queue.pushFront(qc)
		go c.runRefresh()
	}
	c.drainLocked()
	c.reportLocked()
	c.mu.Unlock()

	return c.wait(ctx, qc)
}

// credentialChanged marks the current credential generation as outdated.
// A new credential also ends the terminated state left by a failed refresh.
func (c *coordinator) credentialChanged() {
	c.mu.Lock()
	c.generation++
	c.terminated = nil
	c.mu.Unlock()
}

func (c *coordinator) wait(ctx context.Context, qc *queuedCall) (uint64, error) {
	var timeout <-chan time.Time
	if c.opts.queueWaitTimeout > 0 {
		t := time.NewTimer(c.opts.queueWaitTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case g := <-qc.grantCh:
		return g.generation, g.err
	case <-ctx.Done():
		return 0, c.giveUp(qc, ctx.Err())
	case <-timeout:
		return 0, c.giveUp(qc, &QueueWaitTimeoutError{Kind: qc.kind, Waited: time.Since(qc.enqueuedAt)})
	}
}

// giveUp removes a parked call whose caller stopped waiting.
// If the call was settled concurrently, an admission is handed back and a discard error wins.
func (c *coordinator) giveUp(qc *queuedCall, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !qc.settled {
		c.queue.abandon(qc)
		c.reportLocked()
		return err
	}
	g := <-qc.grantCh
	if g.err != nil {
		return g.err
	}
	c.adm.release()
	c.drainLocked()
	c.reportLocked()
	return err
}

// drainLocked admits parked calls in FIFO order while there is headroom and no refresh is active.
func (c *coordinator) drainLocked() {
	if c.refreshing {
		return
	}
	for c.adm.hasHeadroom() {
		qc, ok := c.queue.popFront()
		if !ok {
			return
		}
		c.adm.acquire()
		c.opts.metrics.ObserveQueueWait(qc.kind, time.Since(qc.enqueuedAt))
		qc.grantCh <- grant{generation: c.generation}
	}
}

func (c *coordinator) runRefresh() {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.refreshTimeout)
	defer cancel()

	if err := c.opts.refresh(ctx); err != nil {
		c.opts.metrics.IncRefreshes(RefreshResultFailure)
		c.opts.logger.Warn("credential refresh failed, discarding queued calls",
			log.Error(err), log.DurationIn(time.Since(startTime), time.Millisecond))
		c.opts.onRefreshFailure(err)

		failure := &RefreshFailureError{Inner: err}
		c.mu.Lock()
		c.refreshing = false
		c.generation++
		c.terminated = failure
		for _, qc := range c.queue.drainAll() {
			qc.grantCh <- grant{err: failure}
		}
		c.reportLocked()
		c.mu.Unlock()
		return
	}

	c.opts.metrics.IncRefreshes(RefreshResultSuccess)
	c.mu.Lock()
	c.refreshing = false
	c.generation++
	queued := c.queue.len()
	c.drainLocked()
	c.reportLocked()
	c.mu.Unlock()

	c.opts.logger.Info("credential refreshed",
		log.Int("queued", queued), log.DurationIn(time.Since(startTime), time.Millisecond))
}

func (c *coordinator) reportLocked() {
	c.opts.metrics.SetInFlight(c.adm.inFlight)
	c.opts.metrics.SetQueued(c.queue.len())
}

type coordinatorStats struct {
	inFlight   int
	queued     int
	refreshing bool
}

func (c *coordinator) stats() coordinatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return coordinatorStats{inFlight: c.adm.inFlight, queued: c.queue.len(), refreshing: c.refreshing}
}
