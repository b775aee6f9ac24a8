/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package notify turns response statuses into user-facing notifications.
// The Classifier debounces and locks error notifications so a burst of failing requests
// produces a single visible message.
package notify

import (
	"github.com/acronis/go-adminclient/log"
)

// Kind is a kind of notification.
type Kind int

// Notification kinds.
const (
	KindSuccess Kind = iota
	KindError
)

func (k Kind) String() string {
	if k == KindSuccess {
		return "success"
	}
	return "error"
}

// Sink shows notifications to the user.
type Sink interface {
	Notify(kind Kind, message string)
}

// SinkFunc is an adapter to allow the use of ordinary functions as Sink.
type SinkFunc func(kind Kind, message string)

// Notify calls f(kind, message).
func (f SinkFunc) Notify(kind Kind, message string) {
	f(kind, message)
}

type logSink struct {
	logger log.FieldLogger
}

// NewLogSink returns a Sink that writes notifications to logger.
// Errors are logged at "warn" level, successes at "info".
func NewLogSink(logger log.FieldLogger) Sink {
	return logSink{logger: logger}
}

func (s logSink) Notify(kind Kind, message string) {
	if kind == KindError {
		s.logger.Warn(message, log.String("notification", kind.String()))
		return
	}
	s.logger.Info(message, log.String("notification", kind.String()))
}
