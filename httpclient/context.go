/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import "context"

type ctxKey int

const (
	ctxKeyRequestType ctxKey = iota
	ctxKeyIdempotentHint
	ctxKeyRetriesDisabled
	ctxKeyRequestID
)

func getStringFromContext(ctx context.Context, key ctxKey) string {
	value, _ := ctx.Value(key).(string)
	return value
}

func getBoolFromContext(ctx context.Context, key ctxKey) bool {
	value, _ := ctx.Value(key).(bool)
	return value
}

// NewContextWithRequestType creates a new context with request type (e.g. "refresh", "query").
// The type is used in logs and as the "type" metric label instead of the client-wide one.
func NewContextWithRequestType(ctx context.Context, requestType string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestType, requestType)
}

// GetRequestTypeFromContext extracts request type from the context.
func GetRequestTypeFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyRequestType)
}

// NewContextWithIdempotentHint returns a derived context that carries an "idempotent request" hint.
// When set to true, RetryableRoundTripper may retry unsafe methods like POST and PATCH.
func NewContextWithIdempotentHint(ctx context.Context, isIdempotent bool) context.Context {
	return context.WithValue(ctx, ctxKeyIdempotentHint, isIdempotent)
}

// GetIdempotentHintFromContext extracts the "idempotent request" hint from context.
// Returns false when the key is not present.
func GetIdempotentHintFromContext(ctx context.Context) bool {
	return getBoolFromContext(ctx, ctxKeyIdempotentHint)
}

// NewContextWithRetriesDisabled returns a derived context with which RetryableRoundTripper does exactly one attempt.
func NewContextWithRetriesDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRetriesDisabled, true)
}

// IsRetriesDisabledInContext reports whether retries were disabled with NewContextWithRetriesDisabled.
func IsRetriesDisabledInContext(ctx context.Context) bool {
	return getBoolFromContext(ctx, ctxKeyRetriesDisabled)
}

// NewContextWithRequestID creates a new context with the request ID that is sent in the X-Request-ID header.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// GetRequestIDFromContext extracts request ID from the context.
func GetRequestIDFromContext(ctx context.Context) string {
	return getStringFromContext(ctx, ctxKeyRequestID)
}
