/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ssgreg/logf"
)

const maskedValue = "***"

// StringMasker masks secrets in strings.
type StringMasker interface {
	Mask(s string) string
}

type maskRule struct {
	hint string // lowercase substring that must be present for the rule to run
	re   *regexp.Regexp
	repl string
}

// Masker replaces credential values with "***".
type Masker struct {
	rules []maskRule
}

// credentialFields are the names used by the admin backend for secrets in bodies and query strings.
var credentialFields = []string{"token", "refreshToken", "accessToken", "password"}

// NewCredentialMasker returns a Masker for Authorization headers and credential fields
// in JSON and URL-encoded form.
func NewCredentialMasker() *Masker {
	m := &Masker{}
	m.rules = append(m.rules, maskRule{
		hint: "authorization",
		re:   regexp.MustCompile(`(?i)(authorization"?\s*[:=]\s*"?)(?:bearer\s+)?[^"\s,}\]]+`),
		repl: "${1}" + maskedValue,
	})
	for _, field := range credentialFields {
		m.rules = append(m.rules,
			maskRule{
				hint: strings.ToLower(field),
				re:   regexp.MustCompile(`(?i)("` + field + `"\s*:\s*")(?:[^"\\]|\\.)*(")`),
				repl: "${1}" + maskedValue + "${2}",
			},
			maskRule{
				hint: strings.ToLower(field),
				re:   regexp.MustCompile(`(?i)((?:^|[?&\s])` + field + `=)[^&\s]+`),
				repl: "${1}" + maskedValue,
			},
		)
	}
	return m
}

// Mask returns s with all known secrets replaced.
func (m *Masker) Mask(s string) string {
	lower := strings.ToLower(s)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.hint) {
			s = rule.re.ReplaceAllString(s, rule.repl)
		}
	}
	return s
}

// MaskingLogger masks secrets in messages, string fields and error fields before delegating.
type MaskingLogger struct {
	log    FieldLogger
	masker StringMasker
}

// NewMaskingLogger wraps l with masking.
func NewMaskingLogger(l FieldLogger, m StringMasker) FieldLogger {
	return MaskingLogger{l, m}
}

// With returns a new logger with the given additional fields.
func (l MaskingLogger) With(fs ...Field) FieldLogger {
	return MaskingLogger{l.log.With(l.maskFields(fs)...), l.masker}
}

// Debug logs message at "debug" level.
func (l MaskingLogger) Debug(text string, fs ...Field) {
	l.log.Debug(l.masker.Mask(text), l.maskFields(fs)...)
}

// Info logs message at "info" level.
func (l MaskingLogger) Info(text string, fs ...Field) {
	l.log.Info(l.masker.Mask(text), l.maskFields(fs)...)
}

// Warn logs message at "warn" level.
func (l MaskingLogger) Warn(text string, fs ...Field) {
	l.log.Warn(l.masker.Mask(text), l.maskFields(fs)...)
}

// Error logs message at "error" level.
func (l MaskingLogger) Error(text string, fs ...Field) {
	l.log.Error(l.masker.Mask(text), l.maskFields(fs)...)
}

// Debugf logs a formatted message at "debug" level.
func (l MaskingLogger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at "info" level.
func (l MaskingLogger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at "warn" level.
func (l MaskingLogger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at "error" level.
func (l MaskingLogger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// AtLevel calls fn with a masking LogFunc if the level is enabled.
func (l MaskingLogger) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.log.AtLevel(level, func(logFunc LogFunc) {
		fn(func(msg string, fs ...Field) {
			logFunc(l.masker.Mask(msg), l.maskFields(fs)...)
		})
	})
}

// WithLevel returns a new logger with additional level check.
func (l MaskingLogger) WithLevel(level Level) FieldLogger {
	return MaskingLogger{l.log.WithLevel(level), l.masker}
}

func (l MaskingLogger) maskFields(fields []Field) []Field {
	var masked []Field
	for i, field := range fields {
		var replacement *Field
		switch field.Type {
		case logf.FieldTypeBytesToString:
			s := string(field.Bytes)
			if m := l.masker.Mask(s); m != s {
				f := String(field.Key, m)
				replacement = &f
			}
		case logf.FieldTypeError:
			if err, ok := field.Any.(error); ok && err != nil {
				s := err.Error()
				if m := l.masker.Mask(s); m != s {
					f := NamedError(field.Key, errors.New(m))
					replacement = &f
				}
			}
		}
		if replacement == nil {
			continue
		}
		if masked == nil {
			masked = make([]Field, len(fields))
			copy(masked, fields)
		}
		masked[i] = *replacement
	}
	if masked == nil {
		return fields
	}
	return masked
}
