/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy creates backoff strategies for retries. A new BackOff is created per request.
type BackoffPolicy interface {
	NewBackOff() backoff.BackOff
}

// The BackoffPolicyFunc type is an adapter to allow the use of ordinary functions as BackoffPolicy.
type BackoffPolicyFunc func() backoff.BackOff

// NewBackOff implements BackoffPolicy.
func (f BackoffPolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// NewExponentialBackoffPolicy returns a policy with exponentially growing delays.
func NewExponentialBackoffPolicy(initialInterval time.Duration, multiplier float64) BackoffPolicy {
	return BackoffPolicyFunc(func() backoff.BackOff {
		bf := backoff.NewExponentialBackOff()
		bf.InitialInterval = initialInterval
		bf.Multiplier = multiplier
		bf.MaxElapsedTime = 0
		bf.Reset()
		return bf
	})
}

// NewConstantBackoffPolicy returns a policy with constant delays.
func NewConstantBackoffPolicy(interval time.Duration) BackoffPolicy {
	return BackoffPolicyFunc(func() backoff.BackOff {
		return backoff.NewConstantBackOff(interval)
	})
}

// DefaultBackoffPolicy is used by RetryableRoundTripper when no policy is specified.
var DefaultBackoffPolicy = NewExponentialBackoffPolicy(
	DefaultExponentialBackoffInitialInterval, DefaultExponentialBackoffMultiplier)
