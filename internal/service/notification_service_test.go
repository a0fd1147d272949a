package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/events"
)

func TestNotificationServiceLogsBusEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bus := events.NewInMemoryDispatcher(nil)
	NewNotificationService(bus, zap.New(core)).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.New(events.EventStatusPersisted, "T1", events.StatusPersistedPayload{
		Status: domain.StatusForwarded, Reason: "handoff",
	})))
	require.NoError(t, bus.Publish(ctx, events.New(events.EventTicketResolved, "T2", nil)))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "TicketStatusPersisted", entries[0].Message)
	assert.Equal(t, string(domain.StatusForwarded), entries[0].ContextMap()["status"])
	assert.Equal(t, string(events.EventTicketResolved), entries[1].Message)
	assert.Equal(t, "T2", entries[1].ContextMap()["ticket_id"])
}

func TestNotificationServiceWithoutBus(t *testing.T) {
	assert.NotPanics(t, func() { NewNotificationService(nil, nil).RegisterHandlers() })
}
