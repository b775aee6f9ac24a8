/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient builds the HTTP transport used by the admin API client.
//
// The transport is a fixed chain of round trippers (from the innermost to the outermost):
// logging, metrics, rate limiting, user agent, request ID and retries.
// Retries are done only for idempotent requests on 429/502/503/504 statuses and temporary network errors,
// 401 responses are left to the API client which refreshes credentials.
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-adminclient/log"
)

// DefaultClientType is used in logs and metrics when no client type is specified.
const DefaultClientType = "admin-api"

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// UserAgent is a user agent string.
	UserAgent string

	// ClientType is a type of client, it's used in logs and metrics as request type
	// unless the context carries one (see NewContextWithRequestType).
	ClientType string

	// Delegate is the innermost RoundTripper in the chain. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	RequestIDProvider func(ctx context.Context) string

	// Collector is a metrics collector.
	Collector MetricsCollector
}

// New creates an HTTP client with the transport chain configured by cfg.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must creates an HTTP client with the transport chain configured by cfg and panics if any error occurs.
func Must(cfg *Config) *http.Client {
	return MustWithOpts(cfg, Opts{})
}

// NewWithOpts creates an HTTP client with the transport chain configured by cfg and opts.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	transport, err := NewTransport(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

// MustWithOpts creates an HTTP client with the transport chain configured by cfg and opts
// and panics if any error occurs.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}

// NewTransport builds the round tripper chain configured by cfg and opts.
func NewTransport(cfg *Config, opts Opts) (http.RoundTripper, error) {
	var err error
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.ClientType == "" {
		opts.ClientType = DefaultClientType
	}

	if cfg.Log.Enabled {
		logOpts := cfg.Log.TransportOpts()
		logOpts.LoggerProvider = opts.LoggerProvider
		logOpts.ClientType = opts.ClientType
		delegate = NewLoggingRoundTripperWithOpts(delegate, logOpts)
	}

	if cfg.Metrics.Enabled && opts.Collector != nil {
		delegate = NewMetricsRoundTripperWithOpts(delegate, MetricsRoundTripperOpts{
			ClientType: opts.ClientType,
			Collector:  opts.Collector,
		})
	}

	if cfg.RateLimits.Enabled {
		if delegate, err = NewRateLimitingRoundTripperWithOpts(
			delegate, cfg.RateLimits.Limit, cfg.RateLimits.TransportOpts(),
		); err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}

	if opts.UserAgent != "" {
		delegate = NewUserAgentRoundTripper(delegate, opts.UserAgent)
	}

	delegate = NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	if cfg.Retries.Enabled {
		retryOpts := cfg.Retries.TransportOpts()
		retryOpts.LoggerProvider = opts.LoggerProvider
		if delegate, err = NewRetryableRoundTripperWithOpts(delegate, retryOpts); err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	return delegate, nil
}
