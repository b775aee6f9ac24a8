/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

// DefaultLimit is the default maximum number of requests in flight.
const DefaultLimit = 5

// admission tracks requests in flight against a fixed limit.
// It has no lock of its own, every method must be called with the coordinator mutex held.
type admission struct {
	limit    int
	inFlight int
}

func newAdmission(limit int) admission {
	return admission{limit: limit}
}

func (a *admission) hasHeadroom() bool {
	return a.inFlight < a.limit
}

// acquire takes a slot. The caller must check hasHeadroom in the same critical section.
func (a *admission) acquire() {
	a.inFlight++
}

func (a *admission) release() {
	if a.inFlight > 0 {
		a.inFlight--
	}
}
