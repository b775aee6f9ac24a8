/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package notify

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-adminclient/log"
	"github.com/acronis/go-adminclient/log/logtest"
)

type notification struct {
	kind Kind
	msg  string
}

type recordingSink struct {
	mu    sync.Mutex
	items []notification
}

func (s *recordingSink) Notify(kind Kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, notification{kind, message})
}

func (s *recordingSink) all() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification(nil), s.items...)
}

func (s *recordingSink) count() int {
	return len(s.all())
}

const (
	testDebounce = 30 * time.Millisecond
	testLock     = 150 * time.Millisecond
)

func newTestClassifier(t *testing.T) (*Classifier, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	c := NewClassifierWithOpts(sink, ClassifierOpts{Debounce: testDebounce, Lock: testLock})
	t.Cleanup(c.Stop)
	return c, sink
}

func TestMessageForStatus(t *testing.T) {
	require.Equal(t, MessageUnreachable, MessageForStatus(0))
	require.Equal(t, "service unavailable", MessageForStatus(http.StatusServiceUnavailable))
	require.Equal(t, "other connection error --418", MessageForStatus(http.StatusTeapot))
}

func TestClassifier_Success(t *testing.T) {
	c, sink := newTestClassifier(t)

	c.Classify(http.StatusOK)
	c.ClassifyWithOpts(http.StatusCreated, ClassifyOpts{ShowSuccess: true})
	c.ClassifyWithOpts(http.StatusOK, ClassifyOpts{ShowSuccess: true, Message: "saved"})

	require.Equal(t, []notification{{KindSuccess, MessageSuccess}, {KindSuccess, "saved"}}, sink.all())
}

func TestClassifier_UnauthorizedIsImmediate(t *testing.T) {
	c, sink := newTestClassifier(t)

	c.Classify(http.StatusUnauthorized)
	c.Classify(http.StatusUnauthorized)
	c.ClassifyWithOpts(http.StatusUnauthorized, ClassifyOpts{Message: "session expired"})

	require.Equal(t, []notification{
		{KindError, StatusMessages[http.StatusUnauthorized]},
		{KindError, StatusMessages[http.StatusUnauthorized]},
		{KindError, "session expired"},
	}, sink.all())
}

func TestClassifier_DebounceCoalesces(t *testing.T) {
	c, sink := newTestClassifier(t)

	c.Classify(http.StatusInternalServerError)
	c.Classify(http.StatusInternalServerError)
	c.Classify(http.StatusBadGateway)
	require.Zero(t, sink.count())

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	require.Equal(t, []notification{{KindError, "bad gateway"}}, sink.all())
}

func TestClassifier_LockSuppressesErrors(t *testing.T) {
	c, sink := newTestClassifier(t)

	c.ClassifyWithOpts(http.StatusInternalServerError, ClassifyOpts{Immediate: true})
	require.Equal(t, 1, sink.count())

	c.Classify(http.StatusNotFound)
	time.Sleep(3 * testDebounce)
	require.Equal(t, 1, sink.count())

	// Immediate errors bypass the lock.
	c.ClassifyWithOpts(0, ClassifyOpts{Immediate: true})
	require.Equal(t, []notification{
		{KindError, "internal server error"},
		{KindError, MessageUnreachable},
	}, sink.all())

	time.Sleep(testLock + testDebounce)
	c.ClassifyWithOpts(http.StatusNotFound, ClassifyOpts{Message: "no such user"})
	require.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, notification{KindError, "no such user"}, sink.all()[2])
}

func TestClassifier_Stop(t *testing.T) {
	c, sink := newTestClassifier(t)

	c.Classify(http.StatusServiceUnavailable)
	c.Stop()
	c.Classify(http.StatusServiceUnavailable)
	time.Sleep(3 * testDebounce)
	require.Zero(t, sink.count())
}

func TestLogSink(t *testing.T) {
	rec := logtest.NewRecorder()
	sink := NewLogSink(rec)
	sink.Notify(KindError, "gateway timeout")
	sink.Notify(KindSuccess, MessageSuccess)

	entry, ok := rec.FindEntry("gateway timeout")
	require.True(t, ok)
	require.Equal(t, log.LevelWarn, entry.Level)
	entry, ok = rec.FindEntry(MessageSuccess)
	require.True(t, ok)
	require.Equal(t, log.LevelInfo, entry.Level)
}
