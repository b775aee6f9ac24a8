/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"testing"
	"time"

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
			want: NewDefaultConfig(),
		},
		{
			name: "constant retries and rate limits",
			data: `
timeout: 5s
retries:
  maxAttempts: 2
  policy:
    strategy: constant
    constantBackoffInterval: 100ms
rateLimits:
  enabled: true
  limit: 50
  burst: 10
log:
  mode: all
metrics:
  enabled: false
`,
			want: &Config{
				Timeout: 5 * time.Second,
				Retries: RetriesConfig{
					Enabled: true, MaxAttempts: 2,
					Policy: RetriesPolicyConfig{Strategy: RetryPolicyConstant, ConstantBackoffInterval: 100 * time.Millisecond},
				},
				RateLimits: RateLimitsConfig{
					Enabled: true, Limit: 50, Burst: 10, WaitTimeout: DefaultRateLimitingWaitTimeout,
				},
				Log: LogConfig{Enabled: true, Mode: LoggingModeAll, SlowRequestThreshold: DefaultSlowRequestThreshold},
			},
		},
		{
			name:    "unknown retry strategy",
			data:    `{"retries":{"policy":{"strategy":"linear"}}}`,
			wantErr: "retries.policy.strategy: unknown value",
		},
		{
			name:    "bad multiplier",
			data:    `{"retries":{"policy":{"exponentialBackoffMultiplier":1}}}`,
			wantErr: "retries.policy.exponentialBackoffMultiplier: must be greater than 1",
		},
		{
			name:    "rate limits without limit",
			data:    `{"rateLimits":{"enabled":true}}`,
			wantErr: "rateLimits.limit: must be positive",
		},
		{
			name:    "unknown log mode",
			data:    `{"log":{"mode":"verbose"}}`,
			wantErr: "log.mode: unknown value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.data), config.DataTypeYAML, cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, cfg)
		})
	}
}

func TestConfig_KeyPrefix(t *testing.T) {
	cfg := NewConfigWithKeyPrefix("transport")
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{"transport":{"timeout":"2s","retries":{"enabled":false}}}`), config.DataTypeJSON, cfg)
	require.NoError(t, err)
	require.Equal(t, "transport", cfg.KeyPrefix())
	require.Equal(t, 2*time.Second, cfg.Timeout)
	require.False(t, cfg.Retries.Enabled)
}

func TestNewDefaultConfig_Timeout(t *testing.T) {
	require.Equal(t, 10*time.Second, NewDefaultConfig().Timeout)

	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(`{}`), config.DataTypeJSON, cfg)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.Timeout)
}
