/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    *Config
		wantErr string
	}{
		{
			name: "defaults",
			data: `{}`,
			want: &Config{
				keyPrefix: cfgDefaultKeyPrefix,
				Level:     LevelInfo,
				Format:    FormatJSON,
				Output:    OutputStdout,
				Masking:   true,
				File:      FileConfig{MaxSizeBytes: DefaultFileRotationMaxSizeBytes, MaxBackups: DefaultFileRotationMaxBackups},
			},
		},
		{
			name: "file output",
			data: `{"log":{"level":"DEBUG","format":"text","output":"file","masking":false,
"file":{"path":"/tmp/adminctl.log","rotation":{"maxSize":"10M","maxBackups":3,"compress":true}}}}`,
			want: &Config{
				keyPrefix: cfgDefaultKeyPrefix,
				Level:     LevelDebug,
				Format:    FormatText,
				Output:    OutputFile,
				File: FileConfig{
					Path: "/tmp/adminctl.log", MaxSizeBytes: 10 * 1024 * 1024, MaxBackups: 3, Compress: true,
				},
			},
		},
		{
			name:    "file output without path",
			data:    `{"log":{"output":"file"}}`,
			wantErr: `log.file.path: cannot be empty when "file" output is used`,
		},
		{
			name:    "too small rotation size",
			data:    `{"log":{"file":{"rotation":{"maxSize":"1K"}}}}`,
			wantErr: "log.file.rotation.maxSize: should be >= 1M",
		},
		{
			name:    "unknown level",
			data:    `{"log":{"level":"trace"}}`,
			wantErr: "log.level: unknown value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.data), config.DataTypeJSON, cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputStderr
	cfg.Level = LevelWarn
	logger, closeFn := NewLogger(cfg)
	defer closeFn()

	_, isMasking := logger.(MaskingLogger)
	require.True(t, isMasking)
	logger.Warn("refresh failed", String("authorization", "Bearer x"))
}
