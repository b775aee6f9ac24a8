/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"errors"
	"net/url"
	"time"

	"github.com/acronis/go-adminclient/config"
	"github.com/acronis/go-adminclient/httpclient"
	"github.com/acronis/go-adminclient/notify"
)

// Default configuration values.
const (
	DefaultKeyPrefix   = "client"
	DefaultRefreshPath = "/user/refresh-token"
)

const (
	cfgKeyBaseURL          = "baseURL"
	cfgKeyLimit            = "limit"
	cfgKeyRefreshPath      = "refreshPath"
	cfgKeyAuthScheme       = "authScheme"
	cfgKeyQueueWaitTimeout = "queueWaitTimeout"
	cfgKeyRefreshTimeout   = "refreshTimeout"
	cfgKeyNotifyDebounce   = "notify.debounce"
	cfgKeyNotifyLock       = "notify.lock"
	cfgKeyTransport        = "transport"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NotifyConfig represents configuration options of the error classifier.
type NotifyConfig struct {
	Debounce time.Duration
	Lock     time.Duration
}

// Config represents options of the admin API client.
type Config struct {
	// BaseURL is the root of the admin API, request paths are resolved against it.
	BaseURL string

	// Limit is the maximum number of requests in flight.
	Limit int

	// RefreshPath is the path of the credential refresh endpoint.
	RefreshPath string

	// AuthScheme is put before the credential in the Authorization header ("Bearer" for example).
	// The credential is sent as is when empty.
	AuthScheme string

	// QueueWaitTimeout bounds the time a call may wait in the queue. Zero disables the bound.
	QueueWaitTimeout time.Duration

	// RefreshTimeout bounds the refresh request.
	RefreshTimeout time.Duration

	Notify NotifyConfig

	// Transport configures the HTTP transport chain.
	Transport *httpclient.Config

	keyPrefix string
}

// NewConfig creates a new instance of the Config with the default key prefix.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(DefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{Transport: httpclient.NewConfig(), keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:          baseURL,
		Limit:            DefaultLimit,
		RefreshPath:      DefaultRefreshPath,
		QueueWaitTimeout: DefaultQueueWaitTimeout,
		RefreshTimeout:   DefaultRefreshTimeout,
		Notify:           NotifyConfig{Debounce: notify.DefaultDebounce, Lock: notify.DefaultLock},
		Transport:        httpclient.NewDefaultConfig(),
		keyPrefix:        DefaultKeyPrefix,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLimit, DefaultLimit)
	dp.SetDefault(cfgKeyRefreshPath, DefaultRefreshPath)
	dp.SetDefault(cfgKeyQueueWaitTimeout, DefaultQueueWaitTimeout.String())
	dp.SetDefault(cfgKeyRefreshTimeout, DefaultRefreshTimeout.String())
	dp.SetDefault(cfgKeyNotifyDebounce, notify.DefaultDebounce.String())
	dp.SetDefault(cfgKeyNotifyLock, notify.DefaultLock.String())
	c.transportConfig().SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyTransport))
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.BaseURL, err = dp.GetString(cfgKeyBaseURL); err != nil {
		return err
	}
	if err = validateBaseURL(c.BaseURL); err != nil {
		return dp.WrapKeyErr(cfgKeyBaseURL, err)
	}
	if c.Limit, err = dp.GetInt(cfgKeyLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyLimit, errors.New("must be positive"))
	}
	if c.RefreshPath, err = dp.GetString(cfgKeyRefreshPath); err != nil {
		return err
	}
	if c.RefreshPath == "" {
		return dp.WrapKeyErr(cfgKeyRefreshPath, errors.New("must not be empty"))
	}
	if c.AuthScheme, err = dp.GetString(cfgKeyAuthScheme); err != nil {
		return err
	}
	if c.QueueWaitTimeout, err = dp.GetDuration(cfgKeyQueueWaitTimeout); err != nil {
		return err
	}
	if c.QueueWaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyQueueWaitTimeout, errors.New("must be non-negative"))
	}
	if c.RefreshTimeout, err = dp.GetDuration(cfgKeyRefreshTimeout); err != nil {
		return err
	}
	if c.RefreshTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyRefreshTimeout, errors.New("must be positive"))
	}
	if c.Notify.Debounce, err = dp.GetDuration(cfgKeyNotifyDebounce); err != nil {
		return err
	}
	if c.Notify.Debounce < 0 {
		return dp.WrapKeyErr(cfgKeyNotifyDebounce, errors.New("must be non-negative"))
	}
	if c.Notify.Lock, err = dp.GetDuration(cfgKeyNotifyLock); err != nil {
		return err
	}
	if c.Notify.Lock < 0 {
		return dp.WrapKeyErr(cfgKeyNotifyLock, errors.New("must be non-negative"))
	}
	return c.transportConfig().Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyTransport))
}

func (c *Config) transportConfig() *httpclient.Config {
	if c.Transport == nil {
		c.Transport = httpclient.NewConfig()
	}
	return c.Transport
}

func validateBaseURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host must not be empty")
	}
	return nil
}
