/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"

	"github.com/acronis/go-adminclient/config"
)

const cfgDefaultKeyPrefix = "log"

const (
	cfgKeyLevel          = "level"
	cfgKeyFormat         = "format"
	cfgKeyOutput         = "output"
	cfgKeyNoColor        = "nocolor"
	cfgKeyAddCaller      = "addCaller"
	cfgKeyMasking        = "masking"
	cfgKeyFilePath       = "file.path"
	cfgKeyFileMaxSize    = "file.rotation.maxSize"
	cfgKeyFileMaxBackups = "file.rotation.maxBackups"
	cfgKeyFileMaxAgeDays = "file.rotation.maxAgeDays"
	cfgKeyFileCompress   = "file.rotation.compress"
)

// Default and restriction values.
const (
	DefaultFileRotationMaxSizeBytes = 1024 * 1024 * 100
	MinFileRotationMaxSizeBytes     = 1024 * 1024
	DefaultFileRotationMaxBackups   = 5
)

// Level defines possible values for log levels.
type Level string

// Logging levels.
const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Format defines possible values for log formats.
type Format string

// Logging formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output defines possible values for log outputs.
type Output string

// Logging outputs.
const (
	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
	OutputFile   Output = "file"
)

// FileConfig is a configuration for the file output and its rotation.
type FileConfig struct {
	Path         string
	MaxSizeBytes uint64
	MaxBackups   int
	MaxAgeDays   int
	Compress     bool
}

// Config represents a set of configuration parameters for logging.
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	NoColor   bool
	AddCaller bool

	// Masking hides credentials (Authorization headers, tokens, passwords) in messages and fields.
	Masking bool

	File FileConfig

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config that is loaded from the "log" section.
func NewConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix}
}

// NewDefaultConfig creates a new Config with default values (info level, JSON to stdout, masking on).
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix: cfgDefaultKeyPrefix,
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    OutputStdout,
		Masking:   true,
		File: FileConfig{
			MaxSizeBytes: DefaultFileRotationMaxSizeBytes,
			MaxBackups:   DefaultFileRotationMaxBackups,
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for logger in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLevel, string(LevelInfo))
	dp.SetDefault(cfgKeyFormat, string(FormatJSON))
	dp.SetDefault(cfgKeyOutput, string(OutputStdout))
	dp.SetDefault(cfgKeyMasking, true)
	dp.SetDefault(cfgKeyFileMaxSize, bytefmt.ByteSize(DefaultFileRotationMaxSizeBytes))
	dp.SetDefault(cfgKeyFileMaxBackups, DefaultFileRotationMaxBackups)
}

// Set sets logger configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	levelStr, err := dp.GetStringFromSet(cfgKeyLevel,
		[]string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}, true)
	if err != nil {
		return err
	}
	c.Level = Level(levelStr)

	formatStr, err := dp.GetStringFromSet(cfgKeyFormat, []string{string(FormatJSON), string(FormatText)}, true)
	if err != nil {
		return err
	}
	c.Format = Format(formatStr)

	outputStr, err := dp.GetStringFromSet(cfgKeyOutput,
		[]string{string(OutputStdout), string(OutputStderr), string(OutputFile)}, true)
	if err != nil {
		return err
	}
	c.Output = Output(outputStr)

	if c.NoColor, err = dp.GetBool(cfgKeyNoColor); err != nil {
		return err
	}
	if c.AddCaller, err = dp.GetBool(cfgKeyAddCaller); err != nil {
		return err
	}
	if c.Masking, err = dp.GetBool(cfgKeyMasking); err != nil {
		return err
	}
	return c.setFileConfig(dp)
}

func (c *Config) setFileConfig(dp config.DataProvider) error {
	var err error
	if c.File.Path, err = dp.GetString(cfgKeyFilePath); err != nil {
		return err
	}
	if c.File.Path == "" && c.Output == OutputFile {
		return dp.WrapKeyErr(cfgKeyFilePath, fmt.Errorf("cannot be empty when %q output is used", OutputFile))
	}
	if c.File.MaxSizeBytes, err = dp.GetSizeInBytes(cfgKeyFileMaxSize); err != nil {
		return err
	}
	if c.File.MaxSizeBytes < MinFileRotationMaxSizeBytes {
		return dp.WrapKeyErr(cfgKeyFileMaxSize,
			fmt.Errorf("should be >= %s", bytefmt.ByteSize(MinFileRotationMaxSizeBytes)))
	}
	if c.File.MaxBackups, err = dp.GetInt(cfgKeyFileMaxBackups); err != nil {
		return err
	}
	if c.File.MaxAgeDays, err = dp.GetInt(cfgKeyFileMaxAgeDays); err != nil {
		return err
	}
	if c.File.MaxAgeDays < 0 {
		return dp.WrapKeyErr(cfgKeyFileMaxAgeDays, fmt.Errorf("should be >= 0"))
	}
	c.File.Compress, err = dp.GetBool(cfgKeyFileCompress)
	return err
}
