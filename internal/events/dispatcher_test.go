package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string

	d.Subscribe(EventStatusPersisted, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.TicketID)
		return errors.New("boom")
	})
	d.Subscribe(EventStatusPersisted, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventEmailQueued, func(_ context.Context, e Event) error {
		got = append(got, "email")
		return nil
	})

	err := d.Publish(context.Background(), New(EventStatusPersisted, "T1", StatusPersistedPayload{}))
	assert.NoError(t, err)
	assert.Equal(t, []string{"first:T1", "second:T1"}, got)
}

func TestNewStampsEvent(t *testing.T) {
	e := New(EventAuditRecorded, "T9", AuditRecordedPayload{Changes: 2})
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, EventAuditRecorded, e.Type)
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	reached := false
	d.Subscribe(EventHandoffQueued, func(context.Context, Event) error {
		panic("bad handler")
	})
	d.Subscribe(EventHandoffQueued, func(context.Context, Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		assert.NoError(t, d.Publish(context.Background(), New(EventHandoffQueued, "T1", nil)))
	})
	assert.True(t, reached)
}
