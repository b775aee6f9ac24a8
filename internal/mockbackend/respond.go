/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package mockbackend

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/acronis/go-adminclient/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// Envelope codes used by the backend.
const (
	CodeOK           = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
)

// Meta is the application-level result of a response.
type Meta struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Envelope is the body of every response.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// Does JSON marshaling with disabled HTML escaping
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}

// respondEnvelope sends the envelope with the passed HTTP status code.
func respondEnvelope(rw http.ResponseWriter, statusCode int, meta Meta, data interface{}, logger log.FieldLogger) {
	rw.Header().Set("Content-Type", ContentTypeAppJSON)

	respJSON, err := jsonMarshal(Envelope{Meta: meta, Data: data})
	if err != nil {
		logger.Error("error while marshaling json for response body", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(statusCode)
	if _, err = rw.Write(respJSON); err != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

func respondOK(rw http.ResponseWriter, data interface{}, logger log.FieldLogger) {
	respondEnvelope(rw, http.StatusOK, Meta{Code: CodeOK, Msg: "ok"}, data, logger)
}

func respondError(rw http.ResponseWriter, statusCode int, msg string, logger log.FieldLogger) {
	respondEnvelope(rw, statusCode, Meta{Code: statusCode, Msg: msg}, nil, logger)
}
