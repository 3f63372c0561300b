package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventSessionRevoked, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.UserID)
		return nil
	})
	d.Subscribe(EventSessionRevoked, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventEmailVerified, func(context.Context, Event) error {
		t.Fatal("unrelated subscriber invoked")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventSessionRevoked, "u1", SessionRevokedPayload{TokenVersion: 2}))
	require.NoError(t, err)
	assert.Equal(t, []string{"first:u1", "second:u1"}, got)
}

func TestDispatcherJoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")

	calls := 0
	d.Subscribe(EventSessionIssued, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventSessionIssued, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventSessionIssued, "u1", nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestNewEventStampsIdentity(t *testing.T) {
	a := NewEvent(EventEmailVerified, "u1", EmailVerifiedPayload{Email: "a@b.com"})
	b := NewEvent(EventEmailVerified, "u1", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, "u1", a.UserID)
}
