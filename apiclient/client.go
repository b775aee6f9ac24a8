/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package apiclient provides the client of the admin backend API.
//
// Every call goes through admission: at most Config.Limit calls are in flight, the rest wait in a FIFO queue.
// When the backend rejects the access credential with 401, a single refresh request is made,
// the call that hit 401 is retried first and then the queue is drained in arrival order.
// A failed refresh terminates the session: queued calls fail, credentials are cleared
// and the user is redirected to the login page.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"
	"github.com/spf13/cast"
	"go.uber.org/atomic"

	"github.com/acronis/go-adminclient/credential"
	"github.com/acronis/go-adminclient/httpclient"
	"github.com/acronis/go-adminclient/internal/libinfo"
	"github.com/acronis/go-adminclient/log"
	"github.com/acronis/go-adminclient/notify"
)

// Request types used in logs and metrics.
const (
	RequestTypeRefresh = "refresh"
	RequestTypeLogin   = "login"
)

const headerAuthorization = "Authorization"

// Navigator changes the UI location on session events.
type Navigator interface {
	RedirectToLogin()
	ResetRoutes()
}

type nopNavigator struct{}

func (nopNavigator) RedirectToLogin() {}
func (nopNavigator) ResetRoutes()     {}

// Request describes a call of the admin API.
type Request struct {
	Method string

	// Path is resolved against Config.BaseURL.
	Path string

	Params ParamsSource

	// Body is sent as JSON. []byte and json.RawMessage are sent as is.
	Body interface{}

	Header http.Header

	// Type is used as the request type in logs and metrics.
	Type string

	// Idempotent allows transport retries for non-idempotent methods.
	Idempotent bool

	// ShowSuccess enables the success notification, SuccessMessage overrides its text.
	ShowSuccess    bool
	SuccessMessage string
}

// Opts provides options for NewWithOpts.
type Opts struct {
	// Bus receives credential events. The client subscribes to it and publishes EventInvalidated.
	// It should be the bus the Store publishes to. A new bus is created if nil.
	Bus *credential.Bus

	Navigator Navigator

	// Sink receives notifications of the error classifier. Notifications are logged if nil.
	Sink notify.Sink

	// HTTPClientOpts are passed to httpclient.NewWithOpts.
	HTTPClientOpts httpclient.Opts

	Logger  log.FieldLogger
	Metrics MetricsCollector
}

// Client is the admin API client.
type Client struct {
	baseURL     *url.URL
	refreshPath string
	authScheme  string
	httpClient  *http.Client
	store       credential.Store
	bus         *credential.Bus
	navigator   Navigator
	classifier  *notify.Classifier
	coord       *coordinator
	logger      log.FieldLogger

	// forbiddenArmed is reset after a forbidden session is handled and set again by Navigated.
	forbiddenArmed *atomic.Bool
	unsubscribe    func()
}

// New creates a new Client.
// The client tracks its own credential writes. Pass the bus of the store in Opts.Bus
// to follow writes made by other parties too.
func New(cfg *Config, store credential.Store) (*Client, error) {
	return NewWithOpts(cfg, store, Opts{})
}

// NewWithOpts creates a new Client with the given options.
func NewWithOpts(cfg *Config, store credential.Store, opts Opts) (*Client, error) {
	if store == nil {
		return nil, errors.New("credential store must be provided")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	baseURL, _ := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))

	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.Bus == nil {
		opts.Bus = credential.NewBus()
	}
	if opts.Navigator == nil {
		opts.Navigator = nopNavigator{}
	}
	if opts.Sink == nil {
		opts.Sink = notify.NewLogSink(opts.Logger)
	}
	if opts.HTTPClientOpts.UserAgent == "" {
		opts.HTTPClientOpts.UserAgent = libinfo.UserAgent()
	}
	if opts.HTTPClientOpts.LoggerProvider == nil {
		logger := opts.Logger
		opts.HTTPClientOpts.LoggerProvider = func(ctx context.Context) log.FieldLogger { return logger }
	}

	transportCfg := cfg.Transport
	if transportCfg == nil {
		transportCfg = httpclient.NewDefaultConfig()
	}
	httpClient, err := httpclient.NewWithOpts(transportCfg, opts.HTTPClientOpts)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}

	classifier := notify.NewClassifierWithOpts(opts.Sink, notify.ClassifierOpts{
		Debounce: cfg.Notify.Debounce,
		Lock:     cfg.Notify.Lock,
	})
	c := &Client{
		baseURL:        baseURL,
		refreshPath:    refreshPath,
		authScheme:     cfg.AuthScheme,
		httpClient:     httpClient,
		store:          store,
		bus:            opts.Bus,
		navigator:      opts.Navigator,
		classifier:     classifier,
		logger:         opts.Logger,
		forbiddenArmed: atomic.NewBool(true),
	}
	c.coord = newCoordinator(coordinatorOpts{
		limit:            cfg.Limit,
		queueWaitTimeout: cfg.QueueWaitTimeout,
		refreshTimeout:   cfg.RefreshTimeout,
		refresh:          c.refreshCredential,
		onRefreshFailure: c.terminateSession,
		metrics:          opts.Metrics,
		logger:           opts.Logger,
	})
	c.unsubscribe = c.bus.Subscribe(func(e credential.Event) {
		if e.Kind == credential.EventUpdated || e.Kind == credential.EventCleared {
			c.coord.credentialChanged()
		}
	})
	return c, nil
}

// Close unsubscribes the client from the bus and cancels pending notifications.
func (c *Client) Close() {
	c.unsubscribe()
	c.classifier.Stop()
}

// Do performs the call and returns its outcome with the raw envelope data as the payload.
func (c *Client) Do(ctx context.Context, req Request) Outcome[json.RawMessage] {
	ctx = c.callContext(ctx, req)
	if c.isRefreshPath(req.Path) {
		return c.doRefreshPath(ctx, req)
	}

	gen, err := c.coord.admit(ctx)
	if err != nil {
		c.logger.Warn("call was not admitted", log.String("path", req.Path), log.Error(err))
		return failedOutcome[json.RawMessage](err)
	}

	retried := false
	for {
		cred, _ := c.store.Get()
		resp, err := c.send(ctx, req, cred.AccessToken)
		if err != nil {
			c.coord.release()
			c.classifier.Classify(0)
			return failedOutcome[json.RawMessage](&TransportError{Inner: err})
		}
		if resp.status != http.StatusUnauthorized {
			c.coord.release()
			return c.handleResponse(req, resp)
		}
		if retried {
			c.coord.release()
			c.classifier.Classify(http.StatusUnauthorized)
			return failedOutcome[json.RawMessage](&AuthExpiredError{StatusCode: resp.status})
		}
		retried = true
		if gen, err = c.coord.unauthorized(ctx, gen); err != nil {
			return failedOutcome[json.RawMessage](err)
		}
	}
}

// Perform performs the call and decodes the payload into T.
func Perform[T any](ctx context.Context, c *Client, req Request) Outcome[T] {
	raw := c.Do(ctx, req)
	out := Outcome[T]{Failed: raw.Failed, Meta: raw.Meta, Err: raw.Err}
	if raw.Failed || len(raw.Payload) == 0 || bytes.Equal(raw.Payload, []byte("null")) {
		return out
	}
	if err := json.Unmarshal(raw.Payload, &out.Payload); err != nil {
		return Outcome[T]{Failed: true, Meta: raw.Meta, Err: &DecodeError{Inner: err}}
	}
	return out
}

// Get performs a GET call.
func (c *Client) Get(ctx context.Context, path string, params ParamsSource) Outcome[json.RawMessage] {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Params: params})
}

// Post performs a POST call with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) Outcome[json.RawMessage] {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT call with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) Outcome[json.RawMessage] {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH call with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) Outcome[json.RawMessage] {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE call.
func (c *Client) Delete(ctx context.Context, path string, params ParamsSource) Outcome[json.RawMessage] {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Params: params})
}

type loginData struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	UserID       interface{} `json:"userId"`
	ID           interface{} `json:"id"`
}

// Login performs a login call and stores the credential pair from its payload.
// The call is admitted like any other but carries no credential, and 401 fails it without a refresh.
func (c *Client) Login(ctx context.Context, req Request) Outcome[json.RawMessage] {
	if req.Method == "" {
		req.Method = http.MethodPut
	}
	if req.Type == "" {
		req.Type = RequestTypeLogin
	}
	ctx = c.callContext(ctx, req)

	if _, err := c.coord.admit(ctx); err != nil {
		return failedOutcome[json.RawMessage](err)
	}
	resp, err := c.send(ctx, req, "")
	c.coord.release()
	if err != nil {
		c.classifier.Classify(0)
		return failedOutcome[json.RawMessage](&TransportError{Inner: err})
	}
	out := c.handleResponse(req, resp)
	if out.Failed || !out.Meta.Success {
		return out
	}

	var data loginData
	if err = json.Unmarshal(out.Payload, &data); err != nil {
		return Outcome[json.RawMessage]{Failed: true, Meta: out.Meta, Err: &DecodeError{Inner: err}}
	}
	if data.Token == "" {
		return Outcome[json.RawMessage]{Failed: true, Meta: out.Meta, Err: &DecodeError{Inner: ErrEmptyAccessToken}}
	}
	userID := data.UserID
	if userID == nil {
		userID = data.ID
	}
	cred := credential.Credential{AccessToken: data.Token, RefreshToken: data.RefreshToken}
	if userID != nil {
		cred.UserID = cast.ToString(userID)
	}
	if err = c.store.Set(cred); err != nil {
		return Outcome[json.RawMessage]{Failed: true, Meta: out.Meta, Err: fmt.Errorf("store credential: %w", err)}
	}
	c.coord.credentialChanged()
	c.forbiddenArmed.Store(true)
	c.logger.Info("logged in", log.String("user_id", cred.UserID))
	return out
}

// Logout clears the stored credentials and resets routing state.
func (c *Client) Logout() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	c.coord.credentialChanged()
	c.navigator.ResetRoutes()
	return nil
}

// Navigated re-arms handling of a forbidden session. It's called after a navigation completes.
func (c *Client) Navigated() {
	c.forbiddenArmed.Store(true)
}

func (c *Client) callContext(ctx context.Context, req Request) context.Context {
	if httpclient.GetRequestIDFromContext(ctx) == "" {
		ctx = httpclient.NewContextWithRequestID(ctx, xid.New().String())
	}
	if req.Type != "" {
		ctx = httpclient.NewContextWithRequestType(ctx, req.Type)
	}
	if req.Idempotent {
		ctx = httpclient.NewContextWithIdempotentHint(ctx, true)
	}
	return ctx
}

func (c *Client) handleResponse(req Request, resp response) Outcome[json.RawMessage] {
	if resp.status < http.StatusOK || resp.status >= http.StatusMultipleChoices {
		msg := envelopeMessage(resp.body)
		c.classifier.ClassifyWithOpts(resp.status, notify.ClassifyOpts{Message: msg})
		var inner error
		if msg != "" {
			inner = errors.New(msg)
		}
		return failedOutcome[json.RawMessage](&TransportError{StatusCode: resp.status, Inner: inner})
	}

	payload, meta, err := decodeEnvelope(resp.body)
	if err != nil {
		return failedOutcome[json.RawMessage](&DecodeError{Inner: err})
	}
	if meta.Code == EnvelopeCodeForbidden {
		c.handleForbidden(meta.Message)
		return Outcome[json.RawMessage]{Failed: true, Payload: payload, Meta: meta, Err: &SessionForbiddenError{Message: meta.Message}}
	}
	if req.ShowSuccess && meta.Success {
		msg := req.SuccessMessage
		if msg == "" {
			msg = meta.Message
		}
		c.classifier.ClassifyWithOpts(resp.status, notify.ClassifyOpts{Message: msg, ShowSuccess: true})
	}
	return Outcome[json.RawMessage]{Payload: payload, Meta: meta}
}

// handleForbidden invalidates the session once per navigation.
func (c *Client) handleForbidden(msg string) {
	if !c.forbiddenArmed.CompareAndSwap(true, false) {
		return
	}
	c.logger.Warn("session is forbidden, invalidating access credential", log.String("message", msg))
	c.classifier.ClassifyWithOpts(http.StatusForbidden, notify.ClassifyOpts{Message: msg, Immediate: true})
	if cred, ok := c.store.Get(); ok && cred.AccessToken != "" {
		cred.AccessToken = ""
		if err := c.store.Set(cred); err != nil {
			c.logger.Error("failed to invalidate access credential", log.Error(err))
		}
		c.coord.credentialChanged()
	}
	c.bus.Publish(credential.Event{Kind: credential.EventInvalidated})
	c.navigator.ResetRoutes()
	c.navigator.RedirectToLogin()
}

// terminateSession is called once per failed refresh.
func (c *Client) terminateSession(error) {
	if clearErr := c.store.Clear(); clearErr != nil {
		c.logger.Error("failed to clear credential", log.Error(clearErr))
	}
	c.coord.credentialChanged()
	c.classifier.Classify(http.StatusUnauthorized)
	c.navigator.RedirectToLogin()
}

type response struct {
	status int
	body   []byte
}

// send makes a single HTTP request. The response body is read fully and closed.
func (c *Client) send(ctx context.Context, req Request, token string) (response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u := c.resolveURL(req.Path, resolveParams(req.Params))

	body, err := encodeBody(req.Body)
	if err != nil {
		return response{}, fmt.Errorf("encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return response{}, err
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set(headerAuthorization, c.authorizationValue(token))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}

func (c *Client) authorizationValue(token string) string {
	if c.authScheme == "" {
		return token
	}
	return c.authScheme + " " + token
}

func (c *Client) resolveURL(path string, params url.Values) string {
	u := *c.baseURL
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path = c.baseURL.Path + path
	if len(params) != 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) isRefreshPath(path string) bool {
	p, _, _ := strings.Cut(path, "?")
	return p == c.refreshPath
}

func encodeBody(body interface{}) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}
