/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoRefreshToken is wrapped into RefreshFailureError when there is no refresh credential to use.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// ErrEmptyAccessToken is wrapped into RefreshFailureError when the refresh response carries no access token.
var ErrEmptyAccessToken = errors.New("refresh response has no access token")

// TransportError is returned when the backend is unreachable or responds with a non-2xx status other than 401.
type TransportError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Inner      error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: %v", e.Inner)
	}
	if e.Inner == nil {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %v", e.StatusCode, e.Inner)
}

// Unwrap returns the next error in the error chain.
func (e *TransportError) Unwrap() error {
	return e.Inner
}

// AuthExpiredError is returned when the backend keeps rejecting the access credential
// even after it was refreshed.
type AuthExpiredError struct {
	StatusCode int
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("access credential rejected (status %d)", e.StatusCode)
}

// SessionForbiddenError is returned when the response envelope reports the session as forbidden.
type SessionForbiddenError struct {
	Message string
}

func (e *SessionForbiddenError) Error() string {
	if e.Message == "" {
		return "session forbidden"
	}
	return "session forbidden: " + e.Message
}

// RefreshFailureError is returned to every call parked on a credential refresh that failed.
// The session is terminated: credentials are cleared and the user is redirected to log in.
type RefreshFailureError struct {
	Inner error
}

func (e *RefreshFailureError) Error() string {
	return fmt.Sprintf("refresh credential: %v", e.Inner)
}

// Unwrap returns the next error in the error chain.
func (e *RefreshFailureError) Unwrap() error {
	return e.Inner
}

// QueueWaitTimeoutError is returned when a parked call was not resumed within the queue wait timeout.
type QueueWaitTimeoutError struct {
	Kind   CallKind
	Waited time.Duration
}

func (e *QueueWaitTimeoutError) Error() string {
	return fmt.Sprintf("call waited in queue (%s) for %s", e.Kind, e.Waited)
}

// DecodeError is returned when a 2xx response body cannot be decoded.
type DecodeError struct {
	Inner error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Inner)
}

// Unwrap returns the next error in the error chain.
func (e *DecodeError) Unwrap() error {
	return e.Inner
}
