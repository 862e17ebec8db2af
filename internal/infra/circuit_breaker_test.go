package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSMTP = errors.New("dial tcp: connection refused")

type fakeSender struct {
	calls int
	err   error
}

func (f *fakeSender) Send(context.Context, Message) error {
	f.calls++
	return f.err
}

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker("smtp", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	fail := func() error { return errSMTP }
	assert.ErrorIs(t, cb.Execute(fail), errSMTP)
	assert.Equal(t, CBClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errSMTP)
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)
	fail := func() error { return errSMTP }
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	require.Equal(t, CBOpen, cb.State())

	clock = clock.Add(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	// Failed probe reopens.
	assert.ErrorIs(t, cb.Execute(fail), errSMTP)
	assert.Equal(t, CBOpen, cb.State())

	clock = clock.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestGuardedMailer(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next := &fakeSender{err: errSMTP}
	m := NewGuardedMailer(next, newTestBreaker(&clock))

	_ = m.Send(context.Background(), Message{})
	_ = m.Send(context.Background(), Message{})
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrCircuitOpen)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, CBOpen, m.Breaker().State())
}

func TestGuardedMailer_DisabledIsNotAFailure(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next := &fakeSender{err: ErrMailerDisabled}
	m := NewGuardedMailer(next, newTestBreaker(&clock))

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrMailerDisabled)
	}
	assert.Equal(t, CBClosed, m.Breaker().State())
	assert.Equal(t, 5, next.calls)
}

func TestMailer_DisabledWithoutHost(t *testing.T) {
	m := &Mailer{}
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.Send(context.Background(), Message{To: []string{"a@b.c"}}), ErrMailerDisabled)
}
