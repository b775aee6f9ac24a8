/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads configuration objects from files, readers, .env files and environment variables.
//
// Every configuration object implements the Config interface: SetProviderDefaults registers default values
// in the DataProvider, and Set reads (and validates) the final values from it.
// Objects that implement KeyPrefixProvider receive a DataProvider that resolves keys relative to their prefix,
// so a client section may live under "client." in a shared file.
package config

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// dataProviderFor returns a DataProvider that resolves keys of the given Config.
func dataProviderFor(dp DataProvider, cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}
