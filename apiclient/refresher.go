/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/acronis/go-adminclient/credential"
	"github.com/acronis/go-adminclient/httpclient"
	"github.com/acronis/go-adminclient/log"
)

type refreshData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// refreshCredential exchanges the stored refresh credential for a new pair and stores it.
// The request bypasses admission and is never retried by the transport.
func (c *Client) refreshCredential(ctx context.Context) error {
	cred, ok := c.store.Get()
	if !ok || cred.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	ctx = httpclient.NewContextWithRetriesDisabled(ctx)
	ctx = httpclient.NewContextWithRequestType(ctx, RequestTypeRefresh)
	req := Request{Method: http.MethodGet, Path: c.refreshPath}
	if cred.UserID != "" {
		req.Params = StaticParams(url.Values{"userId": {cred.UserID}})
	}
	resp, err := c.send(ctx, req, cred.RefreshToken)
	if err != nil {
		return &TransportError{Inner: err}
	}
	if resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices {
		return &TransportError{StatusCode: resp.status}
	}

	payload, meta, err := decodeEnvelope(resp.body)
	if err != nil {
		return &DecodeError{Inner: err}
	}
	if !meta.Success {
		return fmt.Errorf("refresh rejected with code %d: %s", meta.Code, meta.Message)
	}
	var data refreshData
	if len(payload) != 0 {
		if err = json.Unmarshal(payload, &data); err != nil {
			return &DecodeError{Inner: err}
		}
	}
	if data.Token == "" {
		return ErrEmptyAccessToken
	}

	newCred := credential.Credential{AccessToken: data.Token, RefreshToken: data.RefreshToken, UserID: cred.UserID}
	if newCred.RefreshToken == "" {
		newCred.RefreshToken = cred.RefreshToken
	}
	if err = c.store.Set(newCred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	c.coord.credentialChanged()
	return nil
}

// doRefreshPath performs an explicit call of the refresh endpoint.
// It carries the refresh credential and bypasses admission, the stored credential is left untouched.
func (c *Client) doRefreshPath(ctx context.Context, req Request) Outcome[json.RawMessage] {
	cred, _ := c.store.Get()
	if cred.RefreshToken == "" {
		return failedOutcome[json.RawMessage](&RefreshFailureError{Inner: ErrNoRefreshToken})
	}
	resp, err := c.send(httpclient.NewContextWithRetriesDisabled(ctx), req, cred.RefreshToken)
	if err != nil {
		c.logger.Warn("refresh endpoint call failed", log.Error(err))
		c.classifier.Classify(0)
		return failedOutcome[json.RawMessage](&TransportError{Inner: err})
	}
	return c.handleResponse(req, resp)
}
