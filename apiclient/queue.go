/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// CallKind tells why a call is parked.
type CallKind int

// Kinds of parked calls.
const (
	// PendingAdmission is a call that has not been dispatched yet: the in-flight limit is reached
	// or a credential refresh is in progress.
	PendingAdmission CallKind = iota
	// PendingCredential is a call that was rejected with 401 and waits for a fresh credential.
	PendingCredential
)

func (k CallKind) String() string {
	switch k {
	case PendingAdmission:
		return "pending admission"
	case PendingCredential:
		return "pending credential"
	}
	return "unknown"
}

// grant is delivered exactly once to a parked call.
// A nil err means the call was admitted and holds an in-flight slot,
// generation is the credential generation at admission.
type grant struct {
	generation uint64
	err        error
}

// queuedCall is a parked call. It's owned by the queue while resident.
// settled is guarded by the coordinator mutex and set once the call leaves the queue
// (granted, discarded, or abandoned by its caller).
type queuedCall struct {
	kind       CallKind
	enqueuedAt time.Time
	grantCh    chan grant
	settled    bool
}

func newQueuedCall(kind CallKind) *queuedCall {
	return &queuedCall{kind: kind, enqueuedAt: time.Now(), grantCh: make(chan grant, 1)}
}

// callQueue is a FIFO of parked calls. Abandoned calls stay in the list and are skipped when popped.
// It's not safe for concurrent use, the coordinator guards it.
type callQueue struct {
	list *doublylinkedlist.List
	live int
}

func newCallQueue() *callQueue {
	return &callQueue{list: doublylinkedlist.New()}
}

// pushBack parks qc at the tail.
func (q *callQueue) pushBack(qc *queuedCall) {
	q.list.Append(qc)
	q.live++
}

// pushFront parks qc at the head, ahead of everything already waiting.
func (q *callQueue) pushFront(qc *queuedCall) {
	q.list.Prepend(qc)
	q.live++
}

// popFront removes the oldest call that is still waiting, marks it as settled and returns it.
func (q *callQueue) popFront() (*queuedCall, bool) {
	for !q.list.Empty() {
		v, _ := q.list.Get(0)
		q.list.Remove(0)
		qc := v.(*queuedCall)
		if qc.settled {
			continue
		}
		qc.settled = true
		q.live--
		return qc, true
	}
	return nil, false
}

// abandon marks qc as settled so it's skipped by popFront.
func (q *callQueue) abandon(qc *queuedCall) {
	if qc.settled {
		return
	}
	qc.settled = true
	q.live--
}

// drainAll removes and settles all waiting calls and returns them in FIFO order.
func (q *callQueue) drainAll() []*queuedCall {
	calls := make([]*queuedCall, 0, q.live)
	for {
		qc, ok := q.popFront()
		if !ok {
			return calls
		}
		calls = append(calls, qc)
	}
}

// len returns the number of calls that are still waiting.
func (q *callQueue) len() int {
	return q.live
}
