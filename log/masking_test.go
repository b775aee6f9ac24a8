/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/log"
	"github.com/acronis/go-adminclient/log/logtest"
)

func TestCredentialMasker(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "authorization header with scheme",
			in:   "GET /user/query\r\nAuthorization: Bearer eyJhbGciOi.x.y\r\n",
			want: "GET /user/query\r\nAuthorization: ***\r\n",
		},
		{
			name: "raw authorization header",
			in:   "authorization=abc123, status=401",
			want: "authorization=***, status=401",
		},
		{
			name: "json credential pair",
			in:   `{"meta":{"code":200},"data":{"token":"aaa","refreshToken":"bbb","username":"admin"}}`,
			want: `{"meta":{"code":200},"data":{"token":"***","refreshToken":"***","username":"admin"}}`,
		},
		{
			name: "url encoded password",
			in:   "PUT /user/login?username=admin&password=s3cr3t",
			want: "PUT /user/login?username=admin&password=***",
		},
		{
			name: "nothing to mask",
			in:   "client http request GET /user/department/ status 200",
			want: "client http request GET /user/department/ status 200",
		},
	}
	m := log.NewCredentialMasker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, m.Mask(tt.in))
		})
	}
}

func TestMaskingLogger(t *testing.T) {
	rec := logtest.NewRecorder()
	logger := log.NewMaskingLogger(rec, log.NewCredentialMasker())

	logger.Info("login PUT /user/login?password=qwerty",
		log.String("body", `{"token":"t1"}`),
		log.Error(errors.New("refresh failed: Authorization: Bearer zzz")),
		log.Int("status", 200),
	)

	entry, ok := rec.FindEntry("login PUT /user/login?password=***")
	require.True(t, ok)
	body, ok := entry.FindField("body")
	require.True(t, ok)
	require.Equal(t, `{"token":"***"}`, string(body.Bytes))
	errField, ok := entry.FindField("error")
	require.True(t, ok)
	require.EqualError(t, errField.Any.(error), "refresh failed: Authorization: ***")
}
