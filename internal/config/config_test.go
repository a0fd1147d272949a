package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://primary/db")
	t.Setenv("POSTGRES_REPLICA_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://primary/db", cfg.Postgres.ReplicaDSN)
	assert.Equal(t, 600*time.Second, cfg.Poller.LockStaleAfter)
	assert.Equal(t, 5*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 1, cfg.Poller.BatchSize)
	assert.Equal(t, []string{"AI Nhỡ", "AI BlockCard", "AI Resetpass"}, cfg.Poller.SystemActors)
	assert.Equal(t, "Ticket_API", cfg.Queue.APIQueue)
	assert.Equal(t, "Ticket_Mail", cfg.Queue.MailQueue)
	assert.Equal(t, 5, cfg.Queue.ConnectRetries)
	assert.Equal(t, 5*time.Minute, cfg.TicketAPI.TokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLLER_INTERVAL", "30s")
	t.Setenv("POLLER_SYSTEM_ACTORS", "bot-a, ,bot-b")
	t.Setenv("POLLER_BATCH_SIZE", "0")
	t.Setenv("POLLER_LOCK_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.Equal(t, []string{"bot-a", "bot-b"}, cfg.Poller.SystemActors)
	assert.Equal(t, 1, cfg.Poller.BatchSize)
	assert.Equal(t, "redis", cfg.Poller.LockBackend)
}

func TestLoadRejectsUnknownLockBackend(t *testing.T) {
	t.Setenv("POLLER_LOCK_BACKEND", "zookeeper")

	_, err := Load()
	assert.Error(t, err)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, AppConfig{TimeZone: "Not/AZone"}.Location())
}
