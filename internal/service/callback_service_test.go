package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/auth"
	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

type fakeResolutions struct {
	tickets  map[string]*domain.Ticket
	resolved map[string]domain.Resolution
}

func (f *fakeResolutions) GetByRef(_ context.Context, ref string) (*domain.Ticket, error) {
	if t, ok := f.tickets[ref]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeResolutions) MarkResolved(_ context.Context, id string, r domain.Resolution) error {
	if f.resolved == nil {
		f.resolved = map[string]domain.Resolution{}
	}
	f.resolved[id] = r
	return nil
}

func TestCallbackResolvesTicket(t *testing.T) {
	store := &fakeResolutions{tickets: map[string]*domain.Ticket{
		"REQ-2": {ID: "ticket-1", Code: "T001", RefNo: "REQ-1;REQ-2"},
	}}
	broker := &spyBroker{}
	svc := NewCallbackService(CallbackDependencies{
		Tickets:   store,
		ImageHost: "https://its.example.com/",
		Publisher: broker,
		LogQueue:  "Ticket_APILog",
	})

	ticket, err := svc.Resolve(context.Background(), CallbackInput{
		RefNo:       "REQ-2",
		Content:     `<p>Đã xử lý</p><img src="/files/a.png"><script>alert(1)</script>`,
		Handler:     "its.agent",
		Attachments: []string{"http://10.0.0.1/files/b.pdf", "files/c.png", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, ticket.Status)

	got := store.resolved["ticket-1"]
	assert.Equal(t, `<p>Đã xử lý</p><img src="https://its.example.com/files/a.png">`, got.Content)
	assert.Equal(t, "its.agent", got.Handler)
	assert.Equal(t, "https://its.example.com/files/b.pdf;https://its.example.com/files/c.png", got.Files)

	var entry domain.APICallLog
	broker.decode(t, "Ticket_APILog", 0, &entry)
	assert.Equal(t, "/api/v1/its/REQ-2", entry.Path)
	assert.Equal(t, 200, entry.StatusCode)
}

func TestCallbackUnknownReference(t *testing.T) {
	svc := NewCallbackService(CallbackDependencies{Tickets: &fakeResolutions{}})

	_, err := svc.Resolve(context.Background(), CallbackInput{RefNo: "nope"})
	de := apperrors.ToDomainError(err)
	assert.Equal(t, 404, de.HTTPStatus)

	_, err = svc.Resolve(context.Background(), CallbackInput{})
	assert.Equal(t, apperrors.KindMalformed, apperrors.Classify(err))
}

func TestOperatorLogin(t *testing.T) {
	hash, err := auth.HashPassword("s3cret", 4)
	require.NoError(t, err)
	tokens := auth.NewTokenManager("secret", 30)
	svc := NewAuthService(config.AuthConfig{OperatorUsername: "cskh", OperatorPasswordHash: hash}, tokens)

	token, exp, err := svc.Login(context.Background(), "cskh", "s3cret")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(auth.RoleCallback))

	_, _, err = svc.Login(context.Background(), "cskh", "bad")
	assert.Equal(t, 401, apperrors.ToDomainError(err).HTTPStatus)
	_, _, err = svc.Login(context.Background(), "other", "s3cret")
	assert.Error(t, err)
}
