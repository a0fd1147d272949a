package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/queue"
	"github.com/thnhpht/ITS/internal/ticketapi"
)

const consumerTarget = "C1+Dịch vụ thẻ;SC01+SC01.Cards;I1+Khóa thẻ"

type fakeRefStore struct {
	tickets map[string]*domain.Ticket
	err     error
	refs    map[string]string
}

func (f *fakeRefStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeRefStore) UpdateRefNo(_ context.Context, id, refNo string) error {
	if f.refs == nil {
		f.refs = map[string]string{}
	}
	f.refs[id] = refNo
	return nil
}

type fakeAPI struct {
	creates   []ticketapi.CreateRequest
	updates   []ticketapi.UpdateRequest
	updateRef string
	systems   []string
	templates []ticketapi.Template
	out       ticketapi.Outcome
	err       error
}

func (f *fakeAPI) Create(_ context.Context, system string, req ticketapi.CreateRequest) (ticketapi.Outcome, error) {
	f.systems = append(f.systems, system)
	f.creates = append(f.creates, req)
	return f.out, f.err
}

func (f *fakeAPI) Update(_ context.Context, system, refID string, req ticketapi.UpdateRequest) (ticketapi.Outcome, error) {
	f.systems = append(f.systems, system)
	f.updateRef = refID
	f.updates = append(f.updates, req)
	return f.out, f.err
}

func (f *fakeAPI) Templates(context.Context, string) ([]ticketapi.Template, error) {
	return f.templates, nil
}

func apiConfig() config.TicketAPIConfig {
	return config.TicketAPIConfig{
		CRMFileHost: "https://files.example",
		CRMTextHost: "https://crm.internal",
	}
}

func handoffPayload(t *testing.T, msg domain.HandoffMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func newConsumer(store *fakeRefStore, api *fakeAPI, cfg config.TicketAPIConfig) *HandoffConsumer {
	return NewHandoffConsumer(HandoffConsumerDependencies{
		Queue:   "Ticket_API",
		Tickets: store,
		API:     api,
		Config:  cfg,
	})
}

func baseHandoff() domain.HandoffMessage {
	return domain.HandoffMessage{
		Type:        domain.APIITS,
		Ticket:      "T1",
		Message:     consumerTarget,
		Attachments: "a.png;b.pdf",
		Subject:     "[Tổng đài CSKH - TK001]",
		Description: `<img src="https://crm.internal/x.png">`,
		PhoneNumber: "0900000000",
	}
}

func TestHandleCreatesExternalTicket(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{"T1": {ID: "T1", Code: "TK001"}}}
	api := &fakeAPI{
		out:       ticketapi.Outcome{RequestID: "9001"},
		templates: []ticketapi.Template{{ID: "77", Name: "SC01 - Thẻ"}},
	}
	c := newConsumer(store, api, apiConfig())

	got := c.Handle(context.Background(), handoffPayload(t, baseHandoff()))
	assert.Equal(t, OutcomeCreated, got)

	require.Len(t, api.creates, 1)
	req := api.creates[0]
	assert.Equal(t, "C1", req.CatID)
	assert.Equal(t, "SC01", req.SubCatID)
	assert.Equal(t, "I1", req.ItemID)
	assert.Equal(t, "77", req.TemplateID)
	assert.Equal(t, "TK001", req.ComplainID)
	assert.Equal(t, []string{"https://files.example/T1/a.png", "https://files.example/T1/b.pdf"}, req.Attachments)
	assert.Equal(t, `<img src="https://files.example/x.png">`, req.Description)
	assert.Equal(t, []string{domain.APIITS}, api.systems)
	assert.Equal(t, "9001", store.refs["T1"])
}

func TestHandleUpdatesForwardedTicket(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{
		"T1": {ID: "T1", Code: "TK001", RefNo: "100;200", Status: domain.StatusForwarded},
	}}
	api := &fakeAPI{out: ticketapi.Outcome{RequestID: "300"}}
	msg := baseHandoff()
	msg.Type = domain.APIHOSupport
	c := newConsumer(store, api, apiConfig())

	got := c.Handle(context.Background(), handoffPayload(t, msg))
	assert.Equal(t, OutcomeUpdated, got)
	assert.Empty(t, api.creates)
	require.Len(t, api.updates, 1)
	assert.Equal(t, "200", api.updateRef)
	assert.Equal(t, []string{domain.APIHO}, api.systems)
	assert.Equal(t, "100;200;300", store.refs["T1"])
}

func TestHandleSkipsAlreadyHandedOffTicket(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{
		"T1": {ID: "T1", RefNo: "100", Status: domain.StatusOpen},
	}}
	api := &fakeAPI{}
	c := newConsumer(store, api, apiConfig())

	assert.Equal(t, OutcomeDuplicate, c.Handle(context.Background(), handoffPayload(t, baseHandoff())))
	assert.Empty(t, api.creates)
	assert.Empty(t, api.updates)
	assert.Empty(t, store.refs)
}

func TestHandleRejectsBadMessages(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{"T1": {ID: "T1"}}}
	api := &fakeAPI{}
	c := newConsumer(store, api, apiConfig())

	assert.Equal(t, OutcomeMalformed, c.Handle(context.Background(), []byte("{not json")))

	missing := baseHandoff()
	missing.Ticket = ""
	assert.Equal(t, OutcomeSkipped, c.Handle(context.Background(), handoffPayload(t, missing)))

	badTarget := baseHandoff()
	badTarget.Message = "only;two"
	assert.Equal(t, OutcomeMalformed, c.Handle(context.Background(), handoffPayload(t, badTarget)))

	unknown := baseHandoff()
	unknown.Ticket = "T404"
	assert.Equal(t, OutcomeSkipped, c.Handle(context.Background(), handoffPayload(t, unknown)))

	assert.Empty(t, api.creates)
}

func TestHandleDryRunSkipsAPI(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{"T1": {ID: "T1"}}}
	api := &fakeAPI{}
	cfg := apiConfig()
	cfg.DryRun = true
	c := newConsumer(store, api, cfg)

	assert.Equal(t, OutcomeDryRun, c.Handle(context.Background(), handoffPayload(t, baseHandoff())))
	assert.Empty(t, api.creates)
}

func TestHandleAPIFailureKeepsRefUnchanged(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{"T1": {ID: "T1"}}}
	api := &fakeAPI{err: errors.New("502")}
	c := newConsumer(store, api, apiConfig())

	assert.Equal(t, OutcomeFailed, c.Handle(context.Background(), handoffPayload(t, baseHandoff())))
	assert.Empty(t, store.refs)

	api.err = nil
	api.out = ticketapi.Outcome{}
	assert.Equal(t, OutcomeFailed, c.Handle(context.Background(), handoffPayload(t, baseHandoff())))
	assert.Empty(t, store.refs)
}

func TestHandleRecoversPanics(t *testing.T) {
	c := NewHandoffConsumer(HandoffConsumerDependencies{Tickets: nil, API: &fakeAPI{}, Config: apiConfig()})
	assert.Equal(t, OutcomeFailed, c.Handle(context.Background(), handoffPayload(t, baseHandoff())))
}

type scriptedQueue struct {
	mu       sync.Mutex
	payloads [][]byte
	cancel   context.CancelFunc
}

func (q *scriptedQueue) Pop(ctx context.Context, _ string) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.payloads) == 0 {
		q.cancel()
		return nil, queue.ErrEmpty
	}
	p := q.payloads[0]
	q.payloads = q.payloads[1:]
	return p, nil
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	store := &fakeRefStore{tickets: map[string]*domain.Ticket{"T1": {ID: "T1"}}}
	api := &fakeAPI{out: ticketapi.Outcome{RequestID: "1"}}
	ctx, cancel := context.WithCancel(context.Background())
	q := &scriptedQueue{payloads: [][]byte{handoffPayload(t, baseHandoff())}, cancel: cancel}

	c := NewHandoffConsumer(HandoffConsumerDependencies{
		Consumer: q, Queue: "Ticket_API", Tickets: store, API: api,
		Config: apiConfig(), Retry: time.Millisecond,
	})
	require.NoError(t, c.Run(ctx))
	assert.Len(t, api.creates, 1)
	assert.Equal(t, "1", store.refs["T1"])
}
