/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

var errInvalidJSON = errors.New("body is not valid JSON")

// EnvelopeCodeForbidden is the envelope code reporting that the session is forbidden.
const EnvelopeCodeForbidden = 403

// Meta is the application-level result reported by the backend.
type Meta struct {
	// Success is true when the envelope code is 0 or 2xx, or when the body has no envelope.
	Success bool
	Message string
	Code    int
}

// Outcome is the result of a call. Callers branch on Failed only,
// Err carries the typed cause for errors.As.
type Outcome[T any] struct {
	Failed  bool
	Payload T
	Meta    Meta
	Err     error
}

func failedOutcome[T any](err error) Outcome[T] {
	return Outcome[T]{Failed: true, Err: err}
}

type envelopeMeta struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type envelope struct {
	Meta *envelopeMeta   `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// decodeEnvelope parses a {"meta":{"code":..,"msg":..},"data":..} body.
// A JSON body without meta is returned as the payload as is.
func decodeEnvelope(body []byte) (json.RawMessage, Meta, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, Meta{Success: true}, nil
	}
	if !json.Valid(trimmed) {
		return nil, Meta{}, errInvalidJSON
	}
	var env envelope
	if trimmed[0] != '{' || json.Unmarshal(trimmed, &env) != nil || env.Meta == nil {
		return json.RawMessage(trimmed), Meta{Success: true}, nil
	}
	meta := Meta{
		Success: env.Meta.Code == 0 || (env.Meta.Code >= http.StatusOK && env.Meta.Code < http.StatusMultipleChoices),
		Message: env.Meta.Msg,
		Code:    env.Meta.Code,
	}
	return env.Data, meta, nil
}

// envelopeMessage returns the envelope message of an error response body, if any.
func envelopeMessage(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) != nil || env.Meta == nil {
		return ""
	}
	return env.Meta.Msg
}
