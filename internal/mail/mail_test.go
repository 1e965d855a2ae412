package mail

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDispatcherDeliversBeforeShutdown(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(DispatcherConfig{MaxConcurrent: 2, From: "noreply@example.com", Logger: quietLogger()}, sender)

	require.ErrorIs(t, d.Send(Message{To: []string{"a@example.com"}}), ErrDispatcherStopped)

	require.NoError(t, d.Start(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Send(Message{To: []string{"a@example.com"}, Subject: "hi"}))
	}
	d.Shutdown()

	sent := sender.messages()
	require.Len(t, sent, 5)
	assert.Equal(t, "noreply@example.com", sent[0].From)

	assert.ErrorIs(t, d.Send(Message{To: []string{"a@example.com"}}), ErrDispatcherStopped)
}

func TestDispatcherSurvivesCancelledParent(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()}, sender)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()

	require.NoError(t, d.Send(Message{To: []string{"a@example.com"}}))
	d.Shutdown()
	assert.Len(t, sender.messages(), 1)
}

func TestDispatcherFailureIsNotFatal(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()}, sender)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Send(Message{To: []string{"a@example.com"}}))
	d.Shutdown()
	assert.Len(t, sender.messages(), 1)
}

func TestErrorHookMailsAdmins(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger(), SendTimeout: time.Second}, sender)
	require.NoError(t, d.Start(context.Background()))

	logger := quietLogger()
	logger.AddHook(NewErrorHook(d, []string{"admin@example.com"}, "Microblog Failure"))

	logger.Info("ignored")
	logger.WithField("path", "/index").Error("boom")
	d.Shutdown()

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"admin@example.com"}, sent[0].To)
	assert.Equal(t, "Microblog Failure", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "boom")
	assert.Contains(t, sent[0].Text, "/index")
}

func TestPasswordResetMessage(t *testing.T) {
	msg, err := PasswordReset("noreply@example.com", "john@example.com", "john", "http://localhost/reset_password/abc")
	require.NoError(t, err)

	assert.Equal(t, []string{"john@example.com"}, msg.To)
	assert.Contains(t, msg.Text, "Dear john")
	assert.Contains(t, msg.Text, "http://localhost/reset_password/abc")
	assert.Contains(t, msg.HTML, `href="http://localhost/reset_password/abc"`)

	raw, err := msg.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "multipart/alternative")
	assert.Contains(t, string(raw), "To: john@example.com")
}
