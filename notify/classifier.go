/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package notify

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Default presentation policy.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultLock     = 3 * time.Second
)

// Messages shown when the caller does not provide one.
const (
	MessageSuccess     = "operation succeeded"
	MessageUnreachable = "cannot reach server"
)

// StatusMessages maps HTTP status codes to human-readable messages.
var StatusMessages = map[int]string{
	http.StatusBadRequest:              "bad request",
	http.StatusUnauthorized:            "unauthorized, please log in again",
	http.StatusForbidden:               "access denied",
	http.StatusNotFound:                "resource not found",
	http.StatusMethodNotAllowed:        "request method not allowed",
	http.StatusRequestTimeout:          "request timeout",
	http.StatusInternalServerError:     "internal server error",
	http.StatusNotImplemented:          "not implemented",
	http.StatusBadGateway:              "bad gateway",
	http.StatusServiceUnavailable:      "service unavailable",
	http.StatusGatewayTimeout:          "gateway timeout",
	http.StatusHTTPVersionNotSupported: "HTTP version not supported",
}

// MessageForStatus returns the message for a status code that has no explicit message.
func MessageForStatus(status int) string {
	if status == 0 {
		return MessageUnreachable
	}
	if msg, ok := StatusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("other connection error --%d", status)
}

// ClassifyOpts represents options for Classifier.ClassifyWithOpts.
type ClassifyOpts struct {
	// Message overrides the message from the status table.
	Message string
	// ShowSuccess makes a 2xx status produce a success notification.
	ShowSuccess bool
	// Immediate shows the error at once, skipping the lock and the debounce.
	Immediate bool
}

// ClassifierOpts represents options for NewClassifierWithOpts.
type ClassifierOpts struct {
	// Debounce is the window in which non-immediate errors are coalesced. Default is 500ms.
	Debounce time.Duration
	// Lock is the cool-down after a shown error during which non-immediate errors are suppressed. Default is 3s.
	Lock time.Duration
}

// Classifier maps statuses to notifications.
// It is safe for concurrent use.
type Classifier struct {
	sink     Sink
	debounce time.Duration
	lock     time.Duration

	mu            sync.Mutex
	locked        bool
	lastShown     time.Time
	debounceTimer *time.Timer
	debounceSeq   uint64
	pending       string
	lockTimer     *time.Timer
	stopped       bool
}

// NewClassifier creates a new Classifier with default presentation policy.
func NewClassifier(sink Sink) *Classifier {
	return NewClassifierWithOpts(sink, ClassifierOpts{})
}

// NewClassifierWithOpts creates a new Classifier with the given options.
func NewClassifierWithOpts(sink Sink, opts ClassifierOpts) *Classifier {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Lock <= 0 {
		opts.Lock = DefaultLock
	}
	return &Classifier{sink: sink, debounce: opts.Debounce, lock: opts.Lock}
}

// Classify notifies the user about the status if needed.
// Status 0 means the server could not be reached.
func (c *Classifier) Classify(status int) {
	c.ClassifyWithOpts(status, ClassifyOpts{})
}

// ClassifyWithOpts notifies the user about the status if needed.
func (c *Classifier) ClassifyWithOpts(status int, opts ClassifyOpts) {
	if status >= 200 && status < 300 {
		if opts.ShowSuccess {
			c.sink.Notify(KindSuccess, messageOr(opts.Message, MessageSuccess))
		}
		return
	}

	if status == http.StatusUnauthorized {
		c.sink.Notify(KindError, messageOr(opts.Message, StatusMessages[http.StatusUnauthorized]))
		return
	}

	msg := messageOr(opts.Message, MessageForStatus(status))

	c.mu.Lock()
	if c.stopped || (c.locked && !opts.Immediate) {
		c.mu.Unlock()
		return
	}
	if opts.Immediate {
		c.markShownLocked()
		c.mu.Unlock()
		c.sink.Notify(KindError, msg)
		return
	}
	c.pending = msg
	c.debounceSeq++
	seq := c.debounceSeq
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.debounce, func() { c.fireDebounced(seq) })
	c.mu.Unlock()
}

// Stop cancels pending timers. No notifications are shown after Stop except for 2xx and 401 statuses.
func (c *Classifier) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.lockTimer != nil {
		c.lockTimer.Stop()
		c.lockTimer = nil
	}
}

func (c *Classifier) fireDebounced(seq uint64) {
	c.mu.Lock()
	if c.stopped || seq != c.debounceSeq {
		c.mu.Unlock()
		return
	}
	c.debounceTimer = nil
	if !c.lastShown.IsZero() && time.Since(c.lastShown) <= c.lock {
		c.mu.Unlock()
		return
	}
	msg := c.pending
	c.markShownLocked()
	c.mu.Unlock()
	c.sink.Notify(KindError, msg)
}

func (c *Classifier) markShownLocked() {
	c.locked = true
	c.lastShown = time.Now()
	if c.lockTimer != nil {
		c.lockTimer.Stop()
	}
	c.lockTimer = time.AfterFunc(c.lock, c.unlock)
}

func (c *Classifier) unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastShown) >= c.lock {
		c.locked = false
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
