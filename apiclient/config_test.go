/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/config"
	"github.com/acronis/go-adminclient/httpclient"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    func() *Config
		wantErr string
	}{
		{
			name: "defaults",
			data: `{"client":{"baseURL":"https://admin.example.com/api"}}`,
			want: func() *Config { return NewDefaultConfig("https://admin.example.com/api") },
		},
		{
			name: "custom",
			data: `
client:
  baseURL: http://localhost:8080
  limit: 2
  refreshPath: /auth/refresh
  authScheme: Bearer
  queueWaitTimeout: 0
  refreshTimeout: 3s
  notify:
    debounce: 100ms
    lock: 1s
  transport:
    timeout: 5s
    retries:
      enabled: false
    log:
      mode: all
`,
			want: func() *Config {
				cfg := NewDefaultConfig("http://localhost:8080")
				cfg.Limit = 2
				cfg.RefreshPath = "/auth/refresh"
				cfg.AuthScheme = "Bearer"
				cfg.QueueWaitTimeout = 0
				cfg.RefreshTimeout = 3 * time.Second
				cfg.Notify = NotifyConfig{Debounce: 100 * time.Millisecond, Lock: time.Second}
				cfg.Transport.Timeout = 5 * time.Second
				cfg.Transport.Retries = httpclient.RetriesConfig{}
				cfg.Transport.Log.Mode = httpclient.LoggingModeAll
				return cfg
			},
		},
		{
			name:    "missing base URL",
			data:    `{}`,
			wantErr: "client.baseURL: must not be empty",
		},
		{
			name:    "bad base URL scheme",
			data:    `{"client":{"baseURL":"admin.example.com"}}`,
			wantErr: "client.baseURL: scheme must be http or https",
		},
		{
			name:    "zero limit",
			data:    `{"client":{"baseURL":"http://localhost","limit":0}}`,
			wantErr: "client.limit: must be positive",
		},
		{
			name:    "negative queue wait timeout",
			data:    `{"client":{"baseURL":"http://localhost","queueWaitTimeout":"-1s"}}`,
			wantErr: "client.queueWaitTimeout: must be non-negative",
		},
		{
			name:    "bad transport config",
			data:    `{"client":{"baseURL":"http://localhost","transport":{"log":{"mode":"verbose"}}}}`,
			wantErr: "client.transport.log.mode: unknown value",
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
			require.Equal(t, tt.want(), cfg)
		})
	}
}
