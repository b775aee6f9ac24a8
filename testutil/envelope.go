/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

type envelopeMeta struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type envelope struct {
	Meta envelopeMeta    `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// RequireEnvelopeInRecorder asserts that passing httptest.ResponseRecorder contains
// a {"meta":{"code":..},"data":..} envelope with the given codes and decodes its data into dest (if not nil).
// It returns the envelope message.
func RequireEnvelopeInRecorder(
	t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode, wantMetaCode int, dest interface{},
) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireEnvelope(t, resp.Code, resp.Header(), resp.Body, wantHTTPCode, wantMetaCode, dest)
}

// RequireEnvelopeInResponse asserts that passing http.Response contains
// a {"meta":{"code":..},"data":..} envelope with the given codes and decodes its data into dest (if not nil).
// It returns the envelope message.
func RequireEnvelopeInResponse(t require.TestingT, resp *http.Response, wantHTTPCode, wantMetaCode int, dest interface{}) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return requireEnvelope(t, resp.StatusCode, resp.Header, resp.Body, wantHTTPCode, wantMetaCode, dest)
}

func requireEnvelope(
	t require.TestingT, code int, header http.Header, body io.Reader, wantHTTPCode, wantMetaCode int, dest interface{},
) string {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, code)
	require.Equal(t, contentTypeAppJSON, header.Get("Content-Type"))
	var env envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	require.Equal(t, wantMetaCode, env.Meta.Code)
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env.Meta.Msg
}
