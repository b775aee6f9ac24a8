/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"errors"
	"time"

	"github.com/acronis/go-adminclient/config"
)

// Default configuration values.
const (
	DefaultClientWaitTimeout    = 10 * time.Second
	DefaultSlowRequestThreshold = time.Second
)

// Retry policy strategies.
const (
	RetryPolicyExponential = "exponential"
	RetryPolicyConstant    = "constant"
)

const (
	cfgKeyTimeout                       = "timeout"
	cfgKeyRetriesEnabled                = "retries.enabled"
	cfgKeyRetriesMaxAttempts            = "retries.maxAttempts"
	cfgKeyRetriesPolicyStrategy         = "retries.policy.strategy"
	cfgKeyRetriesPolicyInitialInterval  = "retries.policy.exponentialBackoffInitialInterval"
	cfgKeyRetriesPolicyMultiplier       = "retries.policy.exponentialBackoffMultiplier"
	cfgKeyRetriesPolicyConstantInterval = "retries.policy.constantBackoffInterval"
	cfgKeyRateLimitsEnabled             = "rateLimits.enabled"
	cfgKeyRateLimitsLimit               = "rateLimits.limit"
	cfgKeyRateLimitsBurst               = "rateLimits.burst"
	cfgKeyRateLimitsWaitTimeout         = "rateLimits.waitTimeout"
	cfgKeyLogEnabled                    = "log.enabled"
	cfgKeyLogMode                       = "log.mode"
	cfgKeyLogSlowRequestThreshold       = "log.slowRequestThreshold"
	cfgKeyMetricsEnabled                = "metrics.enabled"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// RetriesPolicyConfig represents configuration options for the backoff policy of retries.
type RetriesPolicyConfig struct {
	Strategy                          string
	ExponentialBackoffInitialInterval time.Duration
	ExponentialBackoffMultiplier      float64
	ConstantBackoffInterval           time.Duration
}

// RetriesConfig represents configuration options for HTTP client retries.
type RetriesConfig struct {
	Enabled     bool
	MaxAttempts int
	Policy      RetriesPolicyConfig
}

// BackoffPolicy returns the backoff policy built from the configuration.
func (c *RetriesConfig) BackoffPolicy() BackoffPolicy {
	if c.Policy.Strategy == RetryPolicyConstant {
		return NewConstantBackoffPolicy(c.Policy.ConstantBackoffInterval)
	}
	return NewExponentialBackoffPolicy(c.Policy.ExponentialBackoffInitialInterval, c.Policy.ExponentialBackoffMultiplier)
}

// TransportOpts returns transport options.
func (c *RetriesConfig) TransportOpts() RetryableRoundTripperOpts {
	return RetryableRoundTripperOpts{MaxRetryAttempts: c.MaxAttempts, BackoffPolicy: c.BackoffPolicy()}
}

func (c *RetriesConfig) set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyRetriesEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if c.MaxAttempts, err = dp.GetInt(cfgKeyRetriesMaxAttempts); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMaxAttempts, errors.New("must be non-negative"))
	}
	if c.Policy.Strategy, err = dp.GetStringFromSet(
		cfgKeyRetriesPolicyStrategy, []string{RetryPolicyExponential, RetryPolicyConstant}, true,
	); err != nil {
		return err
	}
	if c.Policy.Strategy == RetryPolicyConstant {
		if c.Policy.ConstantBackoffInterval, err = dp.GetDuration(cfgKeyRetriesPolicyConstantInterval); err != nil {
			return err
		}
		if c.Policy.ConstantBackoffInterval < 0 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyConstantInterval, errors.New("must be non-negative"))
		}
		return nil
	}
	if c.Policy.ExponentialBackoffInitialInterval, err = dp.GetDuration(cfgKeyRetriesPolicyInitialInterval); err != nil {
		return err
	}
	if c.Policy.ExponentialBackoffInitialInterval < 0 {
		return dp.WrapKeyErr(cfgKeyRetriesPolicyInitialInterval, errors.New("must be non-negative"))
	}
	if c.Policy.ExponentialBackoffMultiplier, err = dp.GetFloat64(cfgKeyRetriesPolicyMultiplier); err != nil {
		return err
	}
	if c.Policy.ExponentialBackoffMultiplier <= 1 {
		return dp.WrapKeyErr(cfgKeyRetriesPolicyMultiplier, errors.New("must be greater than 1"))
	}
	return nil
}

// RateLimitsConfig represents configuration options for HTTP client rate limits.
type RateLimitsConfig struct {
	Enabled     bool
	Limit       int
	Burst       int
	WaitTimeout time.Duration
}

// TransportOpts returns transport options.
func (c *RateLimitsConfig) TransportOpts() RateLimitingRoundTripperOpts {
	return RateLimitingRoundTripperOpts{Burst: c.Burst, WaitTimeout: c.WaitTimeout}
}

func (c *RateLimitsConfig) set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyRateLimitsEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}
	if c.Limit, err = dp.GetInt(cfgKeyRateLimitsLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsLimit, errors.New("must be positive"))
	}
	if c.Burst, err = dp.GetInt(cfgKeyRateLimitsBurst); err != nil {
		return err
	}
	if c.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsBurst, errors.New("must be non-negative"))
	}
	if c.WaitTimeout, err = dp.GetDuration(cfgKeyRateLimitsWaitTimeout); err != nil {
		return err
	}
	if c.WaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsWaitTimeout, errors.New("must be non-negative"))
	}
	return nil
}

// LogConfig represents configuration options for HTTP client logs.
type LogConfig struct {
	Enabled              bool
	Mode                 LoggingMode
	SlowRequestThreshold time.Duration
}

// TransportOpts returns transport options.
func (c *LogConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{Mode: c.Mode, SlowRequestThreshold: c.SlowRequestThreshold}
}

func (c *LogConfig) set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyLogEnabled); err != nil {
		return err
	}
	mode, err := dp.GetStringFromSet(cfgKeyLogMode,
		[]string{string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed)}, true)
	if err != nil {
		return err
	}
	c.Mode = LoggingMode(mode)
	if c.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLogSlowRequestThreshold); err != nil {
		return err
	}
	if c.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLogSlowRequestThreshold, errors.New("must be non-negative"))
	}
	return nil
}

// MetricsConfig represents configuration options for HTTP client metrics.
type MetricsConfig struct {
	Enabled bool
}

// Config represents options for HTTP client configuration.
type Config struct {
	// Timeout is the maximum time of a request including retries.
	Timeout time.Duration

	Retries    RetriesConfig
	RateLimits RateLimitsConfig
	Log        LogConfig
	Metrics    MetricsConfig

	keyPrefix string
}

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Timeout: DefaultClientWaitTimeout,
		Retries: RetriesConfig{
			Enabled:     true,
			MaxAttempts: DefaultMaxRetryAttempts,
			Policy: RetriesPolicyConfig{
				Strategy:                          RetryPolicyExponential,
				ExponentialBackoffInitialInterval: DefaultExponentialBackoffInitialInterval,
				ExponentialBackoffMultiplier:      DefaultExponentialBackoffMultiplier,
			},
		},
		Log:     LogConfig{Enabled: true, Mode: LoggingModeFailed, SlowRequestThreshold: DefaultSlowRequestThreshold},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout.String())
	dp.SetDefault(cfgKeyRetriesEnabled, true)
	dp.SetDefault(cfgKeyRetriesMaxAttempts, DefaultMaxRetryAttempts)
	dp.SetDefault(cfgKeyRetriesPolicyStrategy, RetryPolicyExponential)
	dp.SetDefault(cfgKeyRetriesPolicyInitialInterval, DefaultExponentialBackoffInitialInterval.String())
	dp.SetDefault(cfgKeyRetriesPolicyMultiplier, DefaultExponentialBackoffMultiplier)
	dp.SetDefault(cfgKeyRateLimitsWaitTimeout, DefaultRateLimitingWaitTimeout.String())
	dp.SetDefault(cfgKeyLogEnabled, true)
	dp.SetDefault(cfgKeyLogMode, string(LoggingModeFailed))
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, DefaultSlowRequestThreshold.String())
	dp.SetDefault(cfgKeyMetricsEnabled, true)
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, errors.New("must be non-negative"))
	}
	if err = c.Retries.set(dp); err != nil {
		return err
	}
	if err = c.RateLimits.set(dp); err != nil {
		return err
	}
	if err = c.Log.set(dp); err != nil {
		return err
	}
	c.Metrics.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled)
	return err
}
